package repair

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

// Accepted spellings per field, canonical first. The rest are legacy shapes
// older prompts produced.
var (
	summaryKeys     = []string{"summary"}
	flashcardKeys   = []string{"flashcards", "flash_cards", "flashCards"}
	quizKeys        = []string{"quiz", "quizzes", "questions"}
	hashtagKeys     = []string{"hashtags", "tags"}
	levelKeys       = []string{"difficultyLevel", "difficulty_level"}
	studyTimeKeys   = []string{"estimatedStudyTime", "estimated_study_time", "studyTime"}
	questionKeys    = []string{"question", "front", "term"}
	answerKeys      = []string{"answer", "back", "definition"}
	optionKeys      = []string{"options", "choices"}
	correctKeys     = []string{"correctAnswer", "correct_answer", "answer"}
	explanationKeys = []string{"explanation", "rationale"}
)

func lookup(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := obj.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func stringField(obj gjson.Result, keys ...string) (string, bool) {
	r := lookup(obj, keys...)
	if r.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(r.String())
	return s, s != ""
}

// decode validates text against the study document schema. It fails when text
// is not a JSON object or when summary, flashcards or quiz is not an array.
// Entries that fail their own checks are dropped.
func decode(text string) (*models.PartialDocument, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !gjson.Valid(text) {
		return nil, false
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, false
	}
	root = unwrap(root)

	summary := lookup(root, summaryKeys...)
	flashcards := lookup(root, flashcardKeys...)
	quiz := lookup(root, quizKeys...)
	if !summary.IsArray() || !flashcards.IsArray() || !quiz.IsArray() {
		return nil, false
	}

	doc := &models.PartialDocument{
		Summary:    []string{},
		Flashcards: []models.Flashcard{},
		Quiz:       []models.QuizItem{},
	}
	for _, s := range summary.Array() {
		if s.Type != gjson.String {
			continue
		}
		if text := strings.TrimSpace(s.String()); text != "" {
			doc.Summary = append(doc.Summary, text)
		}
	}
	for _, fc := range flashcards.Array() {
		if card, ok := decodeFlashcard(fc); ok {
			doc.Flashcards = append(doc.Flashcards, card)
		}
	}
	for _, q := range quiz.Array() {
		if item, ok := decodeQuizItem(q); ok {
			doc.Quiz = append(doc.Quiz, item)
		}
	}

	doc.Hashtags = decodeHashtags(lookup(root, hashtagKeys...))
	if level, ok := stringField(root, levelKeys...); ok {
		if l := models.DifficultyLevel(strings.ToLower(level)); l.Valid() {
			doc.DifficultyLevel = l
		}
	}
	if st := lookup(root, studyTimeKeys...); st.Type == gjson.String || st.Type == gjson.Number {
		doc.EstimatedStudyTime = strings.TrimSpace(st.String())
	}

	return doc, true
}

// unwrap descends into a single wrapper object such as {"studyMaterial": {...}}.
func unwrap(root gjson.Result) gjson.Result {
	if lookup(root, summaryKeys...).Exists() {
		return root
	}
	inner := root
	root.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() && lookup(value, summaryKeys...).Exists() {
			inner = value
			return false
		}
		return true
	})
	return inner
}

func decodeFlashcard(r gjson.Result) (models.Flashcard, bool) {
	if !r.IsObject() {
		return models.Flashcard{}, false
	}
	q, ok := stringField(r, questionKeys...)
	if !ok {
		return models.Flashcard{}, false
	}
	a, ok := stringField(r, answerKeys...)
	if !ok {
		return models.Flashcard{}, false
	}
	return models.Flashcard{Question: q, Answer: a}, true
}

func decodeQuizItem(r gjson.Result) (models.QuizItem, bool) {
	if !r.IsObject() {
		return models.QuizItem{}, false
	}
	q, ok := stringField(r, "question")
	if !ok {
		return models.QuizItem{}, false
	}

	opts := lookup(r, optionKeys...)
	if !opts.IsArray() {
		return models.QuizItem{}, false
	}
	raw := opts.Array()
	if len(raw) != 4 {
		return models.QuizItem{}, false
	}
	options := make([]string, 0, 4)
	for _, o := range raw {
		if o.Type != gjson.String {
			return models.QuizItem{}, false
		}
		options = append(options, strings.TrimSpace(o.String()))
	}

	correct, ok := stringField(r, correctKeys...)
	if !ok || !contains(options, correct) {
		return models.QuizItem{}, false
	}

	difficulty := models.QuizMedium
	if d, ok := stringField(r, "difficulty"); ok {
		if qd := models.QuizDifficulty(strings.ToLower(d)); qd.Valid() {
			difficulty = qd
		}
	}
	explanation, _ := stringField(r, explanationKeys...)

	return models.QuizItem{
		Question:      q,
		Options:       options,
		CorrectAnswer: correct,
		Difficulty:    difficulty,
		Explanation:   explanation,
	}, true
}

func decodeHashtags(r gjson.Result) []string {
	var raw []string
	switch {
	case r.IsArray():
		for _, h := range r.Array() {
			if h.Type == gjson.String {
				raw = append(raw, h.String())
			}
		}
	case r.Type == gjson.String:
		raw = strings.FieldsFunc(r.String(), func(c rune) bool {
			return c == ',' || c == ' ' || c == '\n'
		})
	}

	var tags []string
	for _, h := range raw {
		if h = strings.TrimSpace(h); h != "" {
			tags = append(tags, h)
		}
	}
	return tags
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
