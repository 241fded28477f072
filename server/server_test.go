package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/mock"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
	"github.com/Enchanted-Dev-stack/we-study/pkg/pipeline"
	"github.com/Enchanted-Dev-stack/we-study/server"
)

type reply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data"`
}

type generatorFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return f(ctx, req)
}

func newService(t *testing.T, source *mock.MockContentSource, store *mock.MockStore) *pipeline.Service {
	t.Helper()
	o, err := pipeline.NewOrchestrator(mock.NewMockGenerator(), pipeline.OrchestratorConfig{
		ChunkSize: 4,
		BatchSize: 2,
		Pacing:    time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(o.Release)
	return pipeline.NewService(source, o, store, nil)
}

func startServer(t *testing.T, config server.Config, gen server.Generator, searcher server.Searcher) *httptest.Server {
	t.Helper()
	s, err := server.NewWSServer(config, gen, searcher, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r reply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestHealth(t *testing.T) {
	ts := startServer(t, server.Config{}, newService(t, mock.NewMockContentSource("x"), mock.NewMockStore()), nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestNewWSServer_RequiresGenerator(t *testing.T) {
	_, err := server.NewWSServer(server.Config{}, nil, nil, nil)
	assert.True(t, errors.Is(err, errs.InvalidConfiguration))
}

func TestGenerate(t *testing.T) {
	store := mock.NewMockStore()
	ts := startServer(t, server.Config{}, newService(t, mock.NewMockContentSource("This is a transcript."), store), nil)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(server.Request{
		Type:   server.TypeGenerate,
		ID:     "req-1",
		UserID: "user-1",
		URL:    "https://youtu.be/dQw4w9WgXcQ",
	}))

	for i := 1; i <= 3; i++ {
		msg := read(t, conn)
		require.Equal(t, server.TypeProgress, msg.Type)
		assert.Equal(t, "req-1", msg.ID)

		var p server.Progress
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, i, p.Batch)
		assert.Equal(t, 3, p.Batches)
		assert.Equal(t, 6, p.Chunks)
	}

	msg := read(t, conn)
	require.Equal(t, server.TypeComplete, msg.Type)
	assert.Equal(t, "req-1", msg.ID)

	var done server.Complete
	require.NoError(t, json.Unmarshal(msg.Data, &done))
	assert.Equal(t, "material-1", done.MaterialID)
	assert.Equal(t, 6, done.Chunks)
	assert.Equal(t, []string{"This", " is ", "a tr", "ansc", "ript", "."}, done.Document.Summary)

	require.Len(t, store.Materials(), 1)
	assert.Equal(t, "user-1", store.Materials()[0].UserID)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		source   *mock.MockContentSource
		store    *mock.MockStore
		req      server.Request
		kind     errs.Kind
		content  string
		document bool
	}{
		{
			name:    "missing url",
			source:  mock.NewMockContentSource("text"),
			store:   mock.NewMockStore(),
			req:     server.Request{Type: server.TypeGenerate, ID: "a"},
			kind:    errs.KindContentUnavailable,
			content: "url is required",
		},
		{
			name:    "empty content",
			source:  mock.NewMockContentSource("   "),
			store:   mock.NewMockStore(),
			req:     server.Request{Type: server.TypeGenerate, ID: "b", URL: "https://example.com"},
			kind:    errs.KindContentUnavailable,
			content: errs.UserMessage(errs.KindContentUnavailable),
		},
		{
			name: "rate limited",
			source: &mock.MockContentSource{ExtractFunc: func(context.Context, string) (string, error) {
				return "", errs.Newf(errs.KindRateLimited, "extract", "429")
			}},
			store:   mock.NewMockStore(),
			req:     server.Request{Type: server.TypeGenerate, ID: "c", URL: "https://example.com"},
			kind:    errs.KindRateLimited,
			content: errs.UserMessage(errs.KindRateLimited),
		},
		{
			name:   "store failure keeps document",
			source: mock.NewMockContentSource("text"),
			store: &mock.MockStore{StoreFunc: func(context.Context, string, string, *models.StudyDocument, *string) (string, error) {
				return "", errors.New("connection refused")
			}},
			req:      server.Request{Type: server.TypeGenerate, ID: "d", URL: "https://example.com"},
			kind:     errs.KindPersistence,
			content:  errs.UserMessage(errs.KindPersistence),
			document: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := startServer(t, server.Config{}, newService(t, tt.source, tt.store), nil)
			conn := dial(t, ts)
			require.NoError(t, conn.WriteJSON(tt.req))

			msg := read(t, conn)
			for msg.Type == server.TypeProgress {
				msg = read(t, conn)
			}
			require.Equal(t, server.TypeError, msg.Type)
			assert.Equal(t, tt.req.ID, msg.ID)
			assert.Equal(t, tt.content, msg.Content)

			var failure server.Failure
			require.NoError(t, json.Unmarshal(msg.Data, &failure))
			assert.Equal(t, tt.kind.String(), failure.Kind)
			if tt.document {
				require.NotNil(t, failure.Document)
				assert.Equal(t, []string{"text"}, failure.Document.Summary)
			} else {
				assert.Nil(t, failure.Document)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	store := mock.NewMockStore()
	_, err := store.Store(context.Background(), "user-1", "https://example.com/a", &models.StudyDocument{Summary: []string{"a"}}, nil)
	require.NoError(t, err)
	_, err = store.Store(context.Background(), "user-1", "https://example.com/b", &models.StudyDocument{Summary: []string{"b"}}, nil)
	require.NoError(t, err)

	ts := startServer(t, server.Config{}, newService(t, mock.NewMockContentSource("x"), store), store)
	conn := dial(t, ts)
	require.NoError(t, conn.WriteJSON(server.Request{Type: server.TypeSearch, ID: "s", Query: "letters", Limit: 1}))

	msg := read(t, conn)
	require.Equal(t, server.TypeResults, msg.Type)
	var views []server.MaterialView
	require.NoError(t, json.Unmarshal(msg.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "material-2", views[0].ID)
	assert.Equal(t, "https://example.com/b", views[0].SourceURL)
}

func TestSearch_Unavailable(t *testing.T) {
	ts := startServer(t, server.Config{}, newService(t, mock.NewMockContentSource("x"), mock.NewMockStore()), nil)
	conn := dial(t, ts)
	require.NoError(t, conn.WriteJSON(server.Request{Type: server.TypeSearch, Query: "q"}))

	msg := read(t, conn)
	assert.Equal(t, server.TypeError, msg.Type)
	assert.Equal(t, "search is not available", msg.Content)
}

func TestInvalidMessages(t *testing.T) {
	ts := startServer(t, server.Config{}, newService(t, mock.NewMockContentSource("x"), mock.NewMockStore()), nil)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := read(t, conn)
	assert.Equal(t, server.TypeError, msg.Type)
	assert.Equal(t, "invalid message", msg.Content)

	require.NoError(t, conn.WriteJSON(server.Request{Type: "chat", ID: "x"}))
	msg = read(t, conn)
	assert.Equal(t, server.TypeError, msg.Type)
	assert.Equal(t, "unknown message type: chat", msg.Content)
}

func TestAllowedOrigins(t *testing.T) {
	ts := startServer(t, server.Config{AllowedOrigins: []string{"https://app.example.com"}},
		newService(t, mock.NewMockContentSource("x"), mock.NewMockStore()), nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestServe_ShutdownCancelsAndDrainsSessions(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	gen := generatorFunc(func(ctx context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return nil, ctx.Err()
	})
	s, err := server.NewWSServer(server.Config{}, gen, nil, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(server.Request{Type: server.TypeGenerate, ID: "g", URL: "https://example.com"}))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not start")
	}
	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
		assert.True(t, finished.Load(), "Serve returned before the running generation finished")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after its context was canceled")
	}
}
