package models

import "time"

// Chunk is a contiguous slice of the source content sent as one generation request.
type Chunk struct {
	Index int
	Text  string
}

// Batch is a group of chunks generated concurrently.
type Batch []Chunk

type QuizDifficulty string

const (
	QuizEasy    QuizDifficulty = "easy"
	QuizMedium  QuizDifficulty = "medium"
	QuizHard    QuizDifficulty = "hard"
	QuizExtreme QuizDifficulty = "extreme"
)

func (d QuizDifficulty) Valid() bool {
	switch d {
	case QuizEasy, QuizMedium, QuizHard, QuizExtreme:
		return true
	}
	return false
}

type DifficultyLevel string

const (
	LevelBeginner     DifficultyLevel = "beginner"
	LevelIntermediate DifficultyLevel = "intermediate"
	LevelAdvanced     DifficultyLevel = "advanced"
)

func (d DifficultyLevel) Valid() bool {
	switch d {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QuizItem struct {
	Question      string         `json:"question"`
	Options       []string       `json:"options" jsonschema:"minItems=4,maxItems=4"`
	CorrectAnswer string         `json:"correctAnswer" jsonschema:"description=must be exactly one of options"`
	Difficulty    QuizDifficulty `json:"difficulty" jsonschema:"enum=easy,enum=medium,enum=hard,enum=extreme"`
	Explanation   string         `json:"explanation,omitempty"`
}

// StudyDocument is the merged study material for one source.
type StudyDocument struct {
	Summary            []string        `json:"summary"`
	Flashcards         []Flashcard     `json:"flashcards"`
	Quiz               []QuizItem      `json:"quiz"`
	Hashtags           []string        `json:"hashtags,omitempty"`
	DifficultyLevel    DifficultyLevel `json:"difficultyLevel,omitempty" jsonschema:"enum=beginner,enum=intermediate,enum=advanced"`
	EstimatedStudyTime string          `json:"estimatedStudyTime,omitempty"`
}

// PartialDocument is the study material decoded from a single chunk's response.
type PartialDocument StudyDocument

// Material is a persisted StudyDocument.
type Material struct {
	ID        string
	UserID    string
	SourceURL string
	Title     string
	Thumbnail *string
	Document  StudyDocument
	CreatedAt time.Time
}
