package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cora "github.com/rayied/cora"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/index"
	"github.com/rayied/cora/model"
)

// flatEmbedder maps every text onto the same vector, making any indexed
// document an exact match.
type flatEmbedder struct{}

func (flatEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newTestServer(t *testing.T, docs ...core.IndexedDocument) (*Server, *model.MockModel) {
	t.Helper()
	idx := index.NewInMemoryIndex(flatEmbedder{})
	for _, doc := range docs {
		require.NoError(t, idx.Add(context.Background(), doc))
	}
	mock := model.NewMockModel("mock", "test")
	assistant := cora.New(mock, idx)
	t.Cleanup(assistant.Close)
	return New(assistant), mock
}

func articleDoc(id string) core.IndexedDocument {
	return core.IndexedDocument{
		ID:   "article_" + id + "_en",
		Text: "how to fix things",
		Metadata: core.DocumentMetadata{
			SourceType: core.SourceArticle,
			ArticleID:  id,
			AppName:    "rayied",
			Title:      "Fix things",
			Language:   "en",
		},
	}
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// requires, which httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
	srv.Handler().ServeHTTP(w, req)
	return w.ResponseRecorder
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestAskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, articleDoc("1"))

	w := postJSON(t, srv, "/ask", map[string]string{
		"question": "How do I fix things?",
		"language": "en",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var answer core.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, core.Answered, answer.Kind)
	assert.NotEmpty(t, answer.Answer)
	assert.NotEmpty(t, answer.SessionID)
	assert.Equal(t, core.ConfidenceHigh, answer.Confidence)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "1", answer.Sources[0].ArticleID)
}

func TestAskEndpointSessionReuse(t *testing.T) {
	srv, _ := newTestServer(t, articleDoc("1"))

	first := postJSON(t, srv, "/ask", map[string]string{"question": "q one", "language": "en"})
	require.Equal(t, http.StatusOK, first.Code)
	var a1 core.Answer
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a1))

	second := postJSON(t, srv, "/ask", map[string]string{
		"question":   "q two",
		"language":   "en",
		"session_id": a1.SessionID,
	})
	require.Equal(t, http.StatusOK, second.Code)
	var a2 core.Answer
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &a2))
	assert.Equal(t, a1.SessionID, a2.SessionID)
}

func TestAskEndpointMissingQuestion(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/ask", map[string]string{"language": "en"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskStreamEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, articleDoc("1"))

	w := postJSON(t, srv, "/ask/stream", map[string]string{
		"question": "How do I fix things?",
		"language": "en",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.NotEmpty(t, w.Header().Get("X-Session-ID"))

	body := w.Body.String()
	assert.Contains(t, body, "event:delta")
	assert.Contains(t, body, "event:done")
	// Terminal event arrives last.
	assert.Greater(t, strings.LastIndex(body, "event:done"), strings.LastIndex(body, "event:delta"))
}

func TestClassifyEndpoint(t *testing.T) {
	srv, mock := newTestServer(t, articleDoc("1"))
	mock.AddResponse("my phone is broken", `{
		"detected_language": "en",
		"category": "device",
		"issue_type": "hardware_failure",
		"routing_department": "device_support",
		"sentiment": "negative",
		"recommended_article_ids": ["1"]
	}`)

	w := postJSON(t, srv, "/classify", map[string]string{"text": "my phone is broken"})

	require.Equal(t, http.StatusOK, w.Code)
	var result cora.Classification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "device", result.Category)
	assert.Equal(t, []string{"1"}, result.RecommendedArticleIDs)
}

func TestClassifyEndpointMissingText(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/classify", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRootEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cora API")
}
