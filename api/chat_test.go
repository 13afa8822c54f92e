package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamlabs/siam/internal/rag"
	"github.com/siamlabs/siam/internal/testutil"
)

func chatBody(query string) string {
	return fmt.Sprintf(`{"organization":"acme","division":"it","application":"helpdesk","query":%q,"conversation_id":"conv-1"}`, query)
}

func TestChatSync(t *testing.T) {
	answerer := &fakeAnswerer{answer: rag.Answer{
		Text:       "Restart the ingest worker [1].",
		Intent:     rag.IntentTroubleshooting,
		ResponseID: "resp-1",
	}}
	srv := newTestServer(answerer, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody("worker crashed")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got rag.Answer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "Restart the ingest worker [1].", got.Text)
	assert.Equal(t, "resp-1", got.ResponseID)

	assert.Equal(t, "acme", answerer.gotReq.Tenancy.Organization)
	assert.Equal(t, "conv-1", answerer.gotReq.ConversationID)
}

func TestChatSyncInvalidBody(t *testing.T) {
	srv := newTestServer(&fakeAnswerer{}, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error)
}

func TestChatSyncInvalidQuery(t *testing.T) {
	answerer := &fakeAnswerer{err: fmt.Errorf("%w: empty query", rag.ErrInvalidQuery)}
	srv := newTestServer(answerer, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody("")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatSyncProviderDown(t *testing.T) {
	answerer := &fakeAnswerer{err: fmt.Errorf("generating answer: %w", rag.ErrProviderUnavailable)}
	srv := newTestServer(answerer, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody("anything")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChatStream(t *testing.T) {
	answerer := &fakeAnswerer{
		answer: rag.Answer{Text: "Hello world", ResponseID: "resp-2"},
		chunks: []string{"Hello ", "world"},
	}
	srv := newTestServer(answerer, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(chatBody("hi")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.Len(t, events, 3)

	assert.Equal(t, "chunk", events[0].Type)
	assert.JSONEq(t, `{"text":"Hello "}`, events[0].Data)
	assert.Equal(t, "chunk", events[1].Type)

	assert.Equal(t, "done", events[2].Type)
	var final rag.Answer
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &final))
	assert.Equal(t, "Hello world", final.Text)
	assert.Equal(t, "resp-2", final.ResponseID)
}

func TestChatStreamError(t *testing.T) {
	answerer := &fakeAnswerer{err: fmt.Errorf("generating answer: %w", rag.ErrProviderUnavailable)}
	srv := newTestServer(answerer, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(chatBody("hi")))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)

	var data SSEErrorData
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &data))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", data.Code)
}

func TestChatStreamInvalidBody(t *testing.T) {
	srv := newTestServer(&fakeAnswerer{}, &fakeStore{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader("{"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
}
