package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/pkg/pipeline"
)

func quiz(q, answer string) models.QuizItem {
	return models.QuizItem{
		Question:      q,
		Options:       []string{answer, "b", "c", "d"},
		CorrectAnswer: answer,
		Difficulty:    models.QuizMedium,
	}
}

func TestMerge(t *testing.T) {
	partials := []*models.PartialDocument{
		{
			Summary:    []string{"Cells are alive.", "DNA stores information."},
			Flashcards: []models.Flashcard{{Question: "What is DNA?", Answer: "A molecule"}},
			Quiz:       []models.QuizItem{quiz("Q1", "a")},
			Hashtags:   []string{"#Biology", " cells "},
		},
		nil,
		{
			Summary:            []string{"DNA stores information.", "RNA copies it."},
			Flashcards:         []models.Flashcard{{Question: "What is DNA?", Answer: "Different answer"}, {Question: "what is DNA?", Answer: "Case differs"}},
			Quiz:               []models.QuizItem{quiz("Q1", "x"), quiz("Q2", "a")},
			Hashtags:           []string{"#biology", "Genetics"},
			DifficultyLevel:    models.LevelIntermediate,
			EstimatedStudyTime: "20 minutes",
		},
		{
			DifficultyLevel:    models.LevelAdvanced,
			EstimatedStudyTime: "1 hour",
		},
	}

	doc := pipeline.Merge(partials)
	assert.Equal(t, []string{"Cells are alive.", "DNA stores information.", "RNA copies it."}, doc.Summary)
	assert.Equal(t, []models.Flashcard{
		{Question: "What is DNA?", Answer: "A molecule"},
		{Question: "what is DNA?", Answer: "Case differs"},
	}, doc.Flashcards)
	assert.Equal(t, []models.QuizItem{quiz("Q1", "a"), quiz("Q2", "a")}, doc.Quiz)
	assert.Equal(t, []string{"#biology", "cells", "genetics"}, doc.Hashtags)
	assert.Equal(t, models.LevelIntermediate, doc.DifficultyLevel)
	assert.Equal(t, "20 minutes", doc.EstimatedStudyTime)
}

func TestMerge_HashtagCap(t *testing.T) {
	var tags []string
	for i := 0; i < 12; i++ {
		tags = append(tags, fmt.Sprintf("tag%d", i))
	}
	doc := pipeline.Merge([]*models.PartialDocument{{Hashtags: tags}})
	assert.Len(t, doc.Hashtags, pipeline.MaxHashtags)
	assert.Equal(t, "tag0", doc.Hashtags[0])
	assert.Equal(t, "tag7", doc.Hashtags[7])
}

func TestMerge_Empty(t *testing.T) {
	doc := pipeline.Merge(nil)
	assert.NotNil(t, doc.Summary)
	assert.NotNil(t, doc.Flashcards)
	assert.NotNil(t, doc.Quiz)
	assert.Empty(t, doc.Summary)
	assert.Nil(t, doc.Hashtags)
}

func TestMerge_Idempotent(t *testing.T) {
	p := &models.PartialDocument{
		Summary:    []string{"a", "a", "b"},
		Flashcards: []models.Flashcard{{Question: "q", Answer: "1"}},
		Quiz:       []models.QuizItem{quiz("q", "a")},
	}
	once := pipeline.Merge([]*models.PartialDocument{p})
	twice := pipeline.Merge([]*models.PartialDocument{(*models.PartialDocument)(once), (*models.PartialDocument)(once)})
	assert.Equal(t, once, twice)
}
