package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enchanted-Dev-stack/we-study/internal/mock"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/pkg/store"
)

var columns = []string{"id", "user_id", "source_url", "title", "thumbnail", "document", "created_at"}

func testDocument() *models.StudyDocument {
	return &models.StudyDocument{
		Summary:    []string{"Mitochondria produce ATP.", "Cells need energy."},
		Flashcards: []models.Flashcard{{Question: "What produces ATP?", Answer: "Mitochondria"}},
		Quiz: []models.QuizItem{{
			Question:      "Which organelle produces ATP?",
			Options:       []string{"Nucleus", "Mitochondria", "Ribosome", "Golgi"},
			CorrectAnswer: "Mitochondria",
			Difficulty:    models.QuizEasy,
		}},
		Hashtags:        []string{"#biology"},
		DifficultyLevel: models.LevelBeginner,
	}
}

func expectSchema(m pgxmock.PgxPoolIface) {
	m.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	m.ExpectExec("CREATE TABLE IF NOT EXISTS study_materials").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	m.ExpectExec("CREATE INDEX IF NOT EXISTS study_materials_embedding_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	m.ExpectExec("CREATE INDEX IF NOT EXISTS study_materials_user_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func newStore(t *testing.T, embedder *mock.MockEmbedder) (*store.MaterialStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	expectSchema(mockPool)
	var s *store.MaterialStore
	if embedder != nil {
		s, err = store.New(context.Background(), mockPool, store.MaterialStoreConfig{}, embedder, nil)
	} else {
		s, err = store.New(context.Background(), mockPool, store.MaterialStoreConfig{}, nil, nil)
	}
	require.NoError(t, err)
	return s, mockPool
}

func TestNew_SchemaFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnError(errors.New("permission denied"))
	_, err = store.New(context.Background(), mockPool, store.MaterialStoreConfig{}, nil, nil)
	assert.ErrorContains(t, err, "failed to create vector extension")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStore(t *testing.T) {
	s, mockPool := newStore(t, mock.NewMockEmbedder(3))
	doc := testDocument()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	thumb := "https://img.example.com/t.jpg"

	mockPool.ExpectExec("INSERT INTO study_materials").
		WithArgs(pgxmock.AnyArg(), "user-1", "https://youtu.be/dQw4w9WgXcQ", "Mitochondria produce ATP.", thumb, body, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.Store(context.Background(), "user-1", "https://youtu.be/dQw4w9WgXcQ", doc, &thumb)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStore_EmbedsSummaryAndHashtags(t *testing.T) {
	var embedded []string
	embedder := mock.NewMockEmbedder(3)
	embedder.CreateEmbeddingFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		embedded = texts
		return [][]float32{{0.1, 0.2, 0.3}}, nil
	}
	s, mockPool := newStore(t, embedder)

	mockPool.ExpectExec("INSERT INTO study_materials").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := s.Store(context.Background(), "user-1", "https://example.com", testDocument(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mitochondria produce ATP.\nCells need energy.\n#biology"}, embedded)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStore_WithoutThumbnailOrEmbedder(t *testing.T) {
	s, mockPool := newStore(t, nil)
	doc := testDocument()
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	mockPool.ExpectExec("INSERT INTO study_materials").
		WithArgs(pgxmock.AnyArg(), "user-1", "https://example.com", "Mitochondria produce ATP.", "", body, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err = s.Store(context.Background(), "user-1", "https://example.com", doc, nil)
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStore_InsertFailure(t *testing.T) {
	s, mockPool := newStore(t, nil)
	mockPool.ExpectExec("INSERT INTO study_materials").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Store(context.Background(), "user-1", "https://example.com", testDocument(), nil)
	assert.ErrorContains(t, err, "failed to insert material")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	s, mockPool := newStore(t, nil)
	doc := testDocument()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := mockPool.NewRows(columns).
		AddRow("m-1", "user-1", "https://example.com", "Mitochondria produce ATP.", "https://img/t.jpg", body, now)
	mockPool.ExpectQuery("SELECT (.+) FROM study_materials WHERE id = \\$1").
		WithArgs("m-1").
		WillReturnRows(rows)

	m, err := s.Get(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, "user-1", m.UserID)
	require.NotNil(t, m.Thumbnail)
	assert.Equal(t, "https://img/t.jpg", *m.Thumbnail)
	assert.Equal(t, *doc, m.Document)
	assert.Equal(t, now, m.CreatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	s, mockPool := newStore(t, nil)
	mockPool.ExpectQuery("SELECT (.+) FROM study_materials WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(mockPool.NewRows(columns))

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSimilar(t *testing.T) {
	embedder := mock.NewMockEmbedder(3)
	s, mockPool := newStore(t, embedder)
	body, err := json.Marshal(testDocument())
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := mockPool.NewRows(columns).
		AddRow("m-1", "user-1", "https://a.example.com", "A", "", body, now).
		AddRow("m-2", "user-2", "https://b.example.com", "B", "", body, now)
	mockPool.ExpectQuery("SELECT (.+)\\s+FROM study_materials\\s+WHERE embedding IS NOT NULL\\s+ORDER BY embedding <=> \\$1").
		WithArgs(pgxmock.AnyArg(), 2).
		WillReturnRows(rows)

	materials, err := s.Similar(context.Background(), "cell energy", 2)
	require.NoError(t, err)
	require.Len(t, materials, 2)
	assert.Equal(t, "m-1", materials[0].ID)
	assert.Nil(t, materials[0].Thumbnail)
	assert.Equal(t, 1, embedder.CallCount())
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSimilar_NoEmbedder(t *testing.T) {
	s, _ := newStore(t, nil)
	_, err := s.Similar(context.Background(), "query", 3)
	assert.Error(t, err)
}

func TestListByUser(t *testing.T) {
	s, mockPool := newStore(t, nil)
	body, err := json.Marshal(testDocument())
	require.NoError(t, err)

	mockPool.ExpectQuery("SELECT (.+)\\s+FROM study_materials\\s+WHERE user_id = \\$1").
		WithArgs("user-1", 5).
		WillReturnRows(mockPool.NewRows(columns).AddRow("m-1", "user-1", "https://a", "A", "", body, time.Now()))

	materials, err := s.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, materials, 1)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "fallback", store.Title(&models.StudyDocument{}, "fallback"))
	assert.Equal(t, "First point", store.Title(&models.StudyDocument{Summary: []string{"  First point "}}, "x"))

	long := strings.Repeat("é", 200)
	title := store.Title(&models.StudyDocument{Summary: []string{long}}, "x")
	assert.Equal(t, 120, len([]rune(title)))
	assert.True(t, strings.HasSuffix(title, "…"))

	assert.Equal(t, "ok", store.Title(nil, "o\xffk"))
}
