package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/rag"
	"github.com/siamlabs/siam/internal/tenant"
)

// Answerer runs the answering pipeline for one request.
type Answerer interface {
	Answer(ctx context.Context, req rag.Request, stream rag.StreamFunc) (rag.Answer, error)
}

// ChatHandler handles the answering endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous answer (JSON request/response)
//   - POST /api/chat/stream - streaming answer (SSE - Server-Sent Events)
//
// Both endpoints run the same pipeline; the streaming variant forwards
// generation chunks as they arrive.
type ChatHandler struct {
	pipeline Answerer
	logger   *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(pipeline Answerer, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.pipeline == nil {
		h.logger.Warn("ChatHandler: pipeline is nil, chat endpoints not registered")
		return
	}
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	Organization   string                 `json:"organization"`
	Division       string                 `json:"division"`
	Application    string                 `json:"application"`
	Query          string                 `json:"query"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	SourceTypes    []knowledge.SourceType `json:"source_types,omitempty"`
}

func (r ChatRequest) pipelineRequest() rag.Request {
	return rag.Request{
		Tenancy: tenant.Tenancy{
			Organization: r.Organization,
			Division:     r.Division,
			Application:  r.Application,
		},
		Query:          r.Query,
		ConversationID: r.ConversationID,
		SourceTypes:    r.SourceTypes,
	}
}

// handleChat handles the synchronous endpoint. The response body is the
// full pipeline answer, including citations and passages.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	answer, err := h.pipeline.Answer(r.Context(), req.pipelineRequest(), nil)
	if err != nil {
		status, code := errorStatus(err)
		h.logger.Error("chat request failed", "error", err, "status", status)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream handles the SSE streaming endpoint.
//
// Request body: same as POST /api/chat.
// Response: Server-Sent Events stream.
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  the full final answer (same shape as the sync response)
//   - error: error occurred {"code": "...", "message": "..."}
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx := r.Context()
	h.logger.Info("SSE stream started", "conversation_id", req.ConversationID)

	stream := func(ctx context.Context, chunk string) error {
		// A closed client connection surfaces here as ctx.Err and
		// aborts generation instead of wasting provider tokens.
		if err := ctx.Err(); err != nil {
			return err
		}
		h.writeSSEChunk(w, flusher, chunk)
		return nil
	}

	answer, err := h.pipeline.Answer(ctx, req.pipelineRequest(), stream)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "conversation_id", req.ConversationID)
			return
		}
		_, code := errorStatus(err)
		h.logger.Error("stream failed", "error", err, "conversation_id", req.ConversationID)
		h.writeSSEError(w, flusher, code, err.Error())
		return
	}

	h.writeSSEDone(w, flusher, answer)
	h.logger.Info("SSE stream completed",
		"conversation_id", req.ConversationID,
		"response_id", answer.ResponseID,
		"abstained", answer.Abstained)
}

// writeSSEChunk writes a chunk event to the SSE stream.
func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEDone writes a done event carrying the final answer.
func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, answer rag.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		h.writeSSEError(w, flusher, "INTERNAL", "encoding final answer failed")
		return
	}
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
