package pipeline

import (
	"strings"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

const MaxHashtags = 8

// Merge folds per-chunk partials, in order, into one StudyDocument.
//
// Summary points dedupe on exact text; flashcards and quiz items on exact
// question text. The first occurrence wins. Hashtags are lower-cased and
// capped at MaxHashtags. Difficulty level and study time come from the first
// partial that sets them. Nil partials are skipped.
func Merge(partials []*models.PartialDocument) *models.StudyDocument {
	doc := &models.StudyDocument{
		Summary:    []string{},
		Flashcards: []models.Flashcard{},
		Quiz:       []models.QuizItem{},
	}

	seenSummary := make(map[string]bool)
	seenCard := make(map[string]bool)
	seenQuiz := make(map[string]bool)
	seenTag := make(map[string]bool)

	for _, p := range partials {
		if p == nil {
			continue
		}
		for _, s := range p.Summary {
			if !seenSummary[s] {
				seenSummary[s] = true
				doc.Summary = append(doc.Summary, s)
			}
		}
		for _, fc := range p.Flashcards {
			if !seenCard[fc.Question] {
				seenCard[fc.Question] = true
				doc.Flashcards = append(doc.Flashcards, fc)
			}
		}
		for _, q := range p.Quiz {
			if !seenQuiz[q.Question] {
				seenQuiz[q.Question] = true
				doc.Quiz = append(doc.Quiz, q)
			}
		}
		for _, h := range p.Hashtags {
			tag := strings.ToLower(strings.TrimSpace(h))
			if tag == "" || seenTag[tag] || len(doc.Hashtags) >= MaxHashtags {
				continue
			}
			seenTag[tag] = true
			doc.Hashtags = append(doc.Hashtags, tag)
		}
		if doc.DifficultyLevel == "" && p.DifficultyLevel != "" {
			doc.DifficultyLevel = p.DifficultyLevel
		}
		if doc.EstimatedStudyTime == "" && p.EstimatedStudyTime != "" {
			doc.EstimatedStudyTime = p.EstimatedStudyTime
		}
	}

	return doc
}
