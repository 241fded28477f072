package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/internal/types"
	"github.com/Enchanted-Dev-stack/we-study/pkg/llm"
)

const maxTitleRunes = 120

var ErrNotFound = errors.New("material not found")

// DB is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type MaterialStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	SearchLimit int
}

// MaterialStore persists study documents in Postgres. When an embedder is
// configured each document's summary is embedded for similarity search.
type MaterialStore struct {
	config   MaterialStoreConfig
	db       DB
	embedder types.Embedder
	log      *logger.Logger
}

// NewWithConfig connects to config.ConnString and prepares the schema.
func NewWithConfig(ctx context.Context, config MaterialStoreConfig, embedder types.Embedder, log *logger.Logger) (*MaterialStore, error) {
	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := New(ctx, pool, config, embedder, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New prepares the schema on db and returns a store using it.
func New(ctx context.Context, db DB, config MaterialStoreConfig, embedder types.Embedder, log *logger.Logger) (*MaterialStore, error) {
	if config.TableName == "" {
		config.TableName = "study_materials"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	s := &MaterialStore{
		config:   config,
		db:       db,
		embedder: embedder,
		log:      logger.OrNop(log),
	}
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MaterialStore) initialize(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source_url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			thumbnail TEXT NOT NULL DEFAULT '',
			document JSONB NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.TableName, s.config.VectorDim)
	if _, err = s.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndexes := []string{
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
			s.config.TableName, s.config.TableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_idx ON %s (user_id, created_at DESC)`,
			s.config.TableName, s.config.TableName),
	}
	for _, stmt := range createIndexes {
		if _, err = s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Store inserts doc and returns the new material id.
func (s *MaterialStore) Store(ctx context.Context, userID, sourceURL string, doc *models.StudyDocument, thumbnail *string) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document is required")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	var thumb string
	if thumbnail != nil {
		thumb = *thumbnail
	}

	id := uuid.NewString()
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, source_url, title, thumbnail, document, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.config.TableName)

	_, err = s.db.Exec(ctx, stmt,
		id,
		userID,
		sourceURL,
		Title(doc, sourceURL),
		thumb,
		body,
		s.embed(ctx, doc),
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert material: %w", err)
	}

	s.log.Info("material stored", "id", id, "user", userID, "source", sourceURL)
	return id, nil
}

// embed returns the embedding of llm.DocumentText(doc), or nil when there is
// no embedder or embedding failed. A missing embedding only excludes the row
// from Similar.
func (s *MaterialStore) embed(ctx context.Context, doc *models.StudyDocument) *pgvector.Vector {
	if s.embedder == nil || len(doc.Summary) == 0 {
		return nil
	}
	vectors, err := s.embedder.CreateEmbedding(ctx, []string{sanitizeUTF8(llm.DocumentText(doc))})
	if err != nil || len(vectors) == 0 {
		s.log.Warn("failed to embed summary", "error", err)
		return nil
	}
	v := pgvector.NewVector(vectors[0])
	return &v
}

const selectColumns = "id, user_id, source_url, title, thumbnail, document, created_at"

func (s *MaterialStore) Get(ctx context.Context, id string) (*models.Material, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.config.TableName)

	m, err := scanMaterial(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

// Similar returns the materials whose summaries are closest to query.
func (s *MaterialStore) Similar(ctx context.Context, query string, limit int) ([]models.Material, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("similarity search needs an embedder")
	}
	if limit <= 0 {
		limit = s.config.SearchLimit
	}

	vectors, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("failed to embed query: no vectors returned")
	}

	stmt := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		selectColumns, s.config.TableName)

	return s.queryMaterials(ctx, stmt, pgvector.NewVector(vectors[0]), limit)
}

// ListByUser returns a user's materials, newest first.
func (s *MaterialStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Material, error) {
	if limit <= 0 {
		limit = s.config.SearchLimit
	}
	stmt := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		selectColumns, s.config.TableName)

	return s.queryMaterials(ctx, stmt, userID, limit)
}

func (s *MaterialStore) queryMaterials(ctx context.Context, stmt string, args ...any) ([]models.Material, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read materials: %w", err)
	}
	return out, nil
}

func scanMaterial(row pgx.Row) (*models.Material, error) {
	var (
		m         models.Material
		thumbnail string
		body      []byte
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.SourceURL, &m.Title, &thumbnail, &body, &m.CreatedAt); err != nil {
		return nil, err
	}
	if thumbnail != "" {
		m.Thumbnail = &thumbnail
	}
	if err := json.Unmarshal(body, &m.Document); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", m.ID, err)
	}
	return &m, nil
}

func (s *MaterialStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Title is the first summary point cut to a readable length, or fallback.
func Title(doc *models.StudyDocument, fallback string) string {
	if doc == nil || len(doc.Summary) == 0 {
		return sanitizeUTF8(fallback)
	}
	title := sanitizeUTF8(strings.TrimSpace(doc.Summary[0]))
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes-1]) + "…"
	}
	return title
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
