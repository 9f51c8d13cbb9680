package ws

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/analysis/quiz"
	"github.com/simply-study/backend/internal/handler/stream"
	"github.com/simply-study/backend/internal/model/study"
	"github.com/simply-study/backend/internal/store"
)

// Handler runs chat turns over a WebSocket connection, as an alternative to
// the SSE endpoint for clients that keep a persistent connection open.
type Handler struct {
	ai          stream.ChatStreamer
	store       *store.Store
	credentials stream.CredentialSource
	defaultKey  string
	log         *zap.Logger
	upgrader    websocket.Upgrader
}

// New creates the WebSocket chat handler.
func New(ai stream.ChatStreamer, st *store.Store, credentials stream.CredentialSource, defaultKey string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		ai:          ai,
		store:       st,
		credentials: credentials,
		defaultKey:  defaultKey,
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type inboundMessage struct {
	StudyID string `json:"studyId"`
	Message string `json:"message"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	StudyID string `json:"studyId,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleWebSocket serves chat turns until the client disconnects. Each
// inbound message runs one turn with the same transcript semantics as the
// SSE endpoint.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		if inbound.StudyID == "" || inbound.Message == "" {
			h.sendError(conn, "", "studyId and message are required")
			continue
		}

		h.runTurn(r.Context(), conn, inbound.StudyID, inbound.Message)
	}
}

func (h *Handler) runTurn(ctx context.Context, conn *websocket.Conn, studyID, userMessage string) {
	st, ok := h.store.Get(studyID)
	if !ok {
		h.sendError(conn, studyID, "study not found")
		return
	}

	credential, err := h.resolveCredential()
	if err != nil || credential == "" {
		h.sendError(conn, studyID, "api credential is not configured")
		return
	}

	h.store.AppendMessage(studyID, study.ChatMessage{Role: study.RoleUser, Content: userMessage})
	st, _ = h.store.Get(studyID)

	h.send(conn, outboundMessage{Type: "start", StudyID: studyID})

	h.store.StreamAppend(studyID, "")
	defer h.store.DiscardEmptyTrailingModelMessage(studyID)

	content, streamErr := h.consumeStream(ctx, conn, studyID, credential, st)
	if streamErr != nil {
		h.log.Warn("websocket chat turn failed", zap.String("study", studyID), zap.Error(streamErr))
		if content != "" {
			h.store.StreamAppend(studyID, stream.ErrorNote)
		}
		h.sendError(conn, studyID, "AI generation failed")
		return
	}

	for _, q := range quiz.Extract(content) {
		h.send(conn, outboundMessage{Type: "quiz", StudyID: studyID, Content: q})
	}
	h.send(conn, outboundMessage{Type: "end", StudyID: studyID})
}

func (h *Handler) consumeStream(ctx context.Context, conn *websocket.Conn, studyID, credential string, st study.Study) (string, error) {
	streamReader, err := h.ai.StreamChat(ctx, credential, st.Synthesis, st.ChatHistory)
	if err != nil {
		return "", err
	}
	defer streamReader.Close()

	var content string
	for {
		chunk, recvErr := streamReader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return content, recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		content += chunk.Content
		h.store.StreamAppend(studyID, chunk.Content)
		h.send(conn, outboundMessage{Type: "delta", StudyID: studyID, Content: chunk.Content})
	}
	return content, nil
}

func (h *Handler) resolveCredential() (string, error) {
	key, err := h.credentials.LoadAPIKey()
	if err != nil {
		return "", err
	}
	if key == "" {
		key = h.defaultKey
	}
	return key, nil
}

func (h *Handler) send(conn *websocket.Conn, msg outboundMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn("websocket write failed", zap.Error(err))
	}
}

func (h *Handler) sendError(conn *websocket.Conn, studyID, msg string) {
	h.send(conn, outboundMessage{Type: "error", StudyID: studyID, Error: msg})
}
