package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/pkg/pipeline"
)

// Message types exchanged over /ws.
const (
	TypeGenerate = "generate"
	TypeSearch   = "search"
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeResults  = "results"
	TypeError    = "error"
)

const defaultSearchLimit = 5

// Request is a client message. Generate requests need URL; search requests
// need Query.
type Request struct {
	Type      string  `json:"type"`
	ID        string  `json:"id,omitempty"`
	UserID    string  `json:"userId,omitempty"`
	URL       string  `json:"url,omitempty"`
	Thumbnail *string `json:"thumbnail,omitempty"`
	Query     string  `json:"query,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// Message is a server reply. ID echoes the request it belongs to.
type Message struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Progress struct {
	Batch      int `json:"batch"`
	Batches    int `json:"batches"`
	ChunksDone int `json:"chunksDone"`
	Chunks     int `json:"chunks"`
}

type Complete struct {
	MaterialID string                `json:"materialId,omitempty"`
	Document   *models.StudyDocument `json:"document"`
	Chunks     int                   `json:"chunks"`
	ElapsedMS  int64                 `json:"elapsedMs"`
}

type Failure struct {
	Kind string `json:"kind"`
	// Document is set when generation succeeded but storing it failed.
	Document *models.StudyDocument `json:"document,omitempty"`
}

type MaterialView struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	SourceURL string               `json:"sourceUrl"`
	Thumbnail *string              `json:"thumbnail,omitempty"`
	Document  models.StudyDocument `json:"document"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Generator runs the study-material pipeline. *pipeline.Service implements it.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Searcher finds stored materials similar to a query.
type Searcher interface {
	Similar(ctx context.Context, query string, limit int) ([]models.Material, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
}

type WSServer struct {
	config    Config
	generator Generator
	searcher  Searcher
	upgrader  websocket.Upgrader
	log       *logger.Logger

	sessions sync.WaitGroup
}

// NewWSServer creates the websocket server. searcher may be nil, in which case
// search requests are answered with an error.
func NewWSServer(config Config, generator Generator, searcher Searcher, log *logger.Logger) (*WSServer, error) {
	if generator == nil {
		return nil, errs.Newf(errs.KindInvalidConfiguration, "new server", "generator is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}

	s := &WSServer{
		config:    config,
		generator: generator,
		searcher:  searcher,
		log:       logger.OrNop(log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Handler serves /ws and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. Sessions
// run under ctx, so their in-flight requests are canceled with it; Serve
// returns once they have finished or the shutdown timeout expires.
func (s *WSServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting websocket server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if drainErr := s.drain(shutdownCtx); err == nil {
			err = drainErr
		}
		return err
	}
}

// drain waits for open websocket sessions, which Shutdown does not track.
func (s *WSServer) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("websocket sessions still running after shutdown")
		return ctx.Err()
	}
}

func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(s.config.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// session serializes writes to one connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *logger.Logger
}

func (c *session) send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Debug("failed to send message", "type", msg.Type, "error", err)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.sessions.Add(1)
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Requests still running when the client leaves or the server stops are
	// canceled. Closing the connection unblocks the read loop.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := &session{conn: conn, log: s.log}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("error reading message", "error", err)
			}
			cancel()
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			sess.send(Message{Type: TypeError, Content: "invalid message", Data: Failure{Kind: errs.KindUnknown.String()}})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, sess, req)
		}()
	}
}

func (s *WSServer) handleMessage(ctx context.Context, sess *session, req Request) {
	switch req.Type {
	case TypeGenerate:
		s.handleGenerate(ctx, sess, req)
	case TypeSearch:
		s.handleSearch(ctx, sess, req)
	default:
		sess.send(Message{
			Type:    TypeError,
			ID:      req.ID,
			Content: "unknown message type: " + req.Type,
			Data:    Failure{Kind: errs.KindUnknown.String()},
		})
	}
}

func (s *WSServer) handleGenerate(ctx context.Context, sess *session, req Request) {
	if strings.TrimSpace(req.URL) == "" {
		sess.send(Message{
			Type:    TypeError,
			ID:      req.ID,
			Content: "url is required",
			Data:    Failure{Kind: errs.KindContentUnavailable.String()},
		})
		return
	}

	res, err := s.generator.Generate(ctx, pipeline.Request{
		UserID:    req.UserID,
		SourceURL: req.URL,
		Thumbnail: req.Thumbnail,
		OnProgress: func(p pipeline.BatchProgress) {
			sess.send(Message{
				Type: TypeProgress,
				ID:   req.ID,
				Data: Progress{Batch: p.Batch, Batches: p.Batches, ChunksDone: p.ChunksDone, Chunks: p.Chunks},
			})
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := errs.KindOf(err)
		s.log.Error("generation failed", "source", req.URL, "kind", kind.String(), "error", err)

		failure := Failure{Kind: kind.String()}
		if res != nil {
			failure.Document = res.Document
		}
		sess.send(Message{Type: TypeError, ID: req.ID, Content: errs.UserMessage(kind), Data: failure})
		return
	}

	sess.send(Message{
		Type: TypeComplete,
		ID:   req.ID,
		Data: Complete{
			MaterialID: res.MaterialID,
			Document:   res.Document,
			Chunks:     res.Chunks,
			ElapsedMS:  res.Elapsed.Milliseconds(),
		},
	})
}

func (s *WSServer) handleSearch(ctx context.Context, sess *session, req Request) {
	if s.searcher == nil {
		sess.send(Message{
			Type:    TypeError,
			ID:      req.ID,
			Content: "search is not available",
			Data:    Failure{Kind: errs.KindInvalidConfiguration.String()},
		})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	materials, err := s.searcher.Similar(ctx, req.Query, limit)
	if err != nil {
		s.log.Error("search failed", "query", req.Query, "error", err)
		sess.send(Message{
			Type:    TypeError,
			ID:      req.ID,
			Content: "search failed",
			Data:    Failure{Kind: errs.KindPersistence.String()},
		})
		return
	}

	views := make([]MaterialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, MaterialView{
			ID:        m.ID,
			Title:     m.Title,
			SourceURL: m.SourceURL,
			Thumbnail: m.Thumbnail,
			Document:  m.Document,
			CreatedAt: m.CreatedAt,
		})
	}
	sess.send(Message{Type: TypeResults, ID: req.ID, Data: views})
}
