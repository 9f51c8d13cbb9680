package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/analysis/quiz"
	"github.com/simply-study/backend/internal/model/study"
	"github.com/simply-study/backend/internal/store"
	"github.com/simply-study/backend/pkg/utils"
)

// ErrorNote is appended to the transcript when a turn fails after streaming
// started, rendered as model output.
const ErrorNote = "\n\n> *An error occurred while contacting the AI model.*"

// ChatStreamer opens a one-shot streaming chat exchange.
type ChatStreamer interface {
	StreamChat(ctx context.Context, credential, synthesis string, history []study.ChatMessage) (*schema.StreamReader[*schema.Message], error)
}

// CredentialSource yields the stored API credential.
type CredentialSource interface {
	LoadAPIKey() (string, error)
}

// Handler streams chat turns to the client via Server-Sent Events while
// folding the same fragments into the study transcript.
type Handler struct {
	ai          ChatStreamer
	store       *store.Store
	credentials CredentialSource
	defaultKey  string
	log         *zap.Logger
}

// New creates a stream handler.
func New(ai ChatStreamer, st *store.Store, credentials CredentialSource, defaultKey string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		ai:          ai,
		store:       st,
		credentials: credentials,
		defaultKey:  defaultKey,
		log:         log,
	}
}

// StreamResponse is one SSE frame of a chat turn.
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	StudyID  string `json:"studyId,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleStreamRequest runs one chat turn for a study: the user message is
// appended to the transcript, an empty model message is seeded, and every
// received fragment is folded into it and forwarded as a delta event. The
// trailing-empty cleanup runs whether the turn succeeds, fails, or is
// aborted, so a turn that produced nothing leaves no artifact.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, studyID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	st, ok := h.store.Get(studyID)
	if !ok {
		h.sendError(w, flusher, "study not found")
		return fmt.Errorf("study %s not found", studyID)
	}

	credential, err := h.resolveCredential()
	if err != nil || credential == "" {
		h.sendError(w, flusher, "api credential is not configured")
		return fmt.Errorf("credential unavailable: %w", err)
	}

	h.store.AppendMessage(studyID, study.ChatMessage{Role: study.RoleUser, Content: userMessage})
	st, _ = h.store.Get(studyID)

	h.send(w, flusher, StreamResponse{Event: "start", StudyID: studyID})

	// Seed the turn, then always run the cleanup: a turn that never produced
	// a fragment must not leave an empty model message behind.
	h.store.StreamAppend(studyID, "")
	defer h.store.DiscardEmptyTrailingModelMessage(studyID)

	content, streamErr := h.consumeStream(ctx, w, flusher, studyID, credential, st)
	if streamErr != nil {
		h.log.Warn("chat stream failed", zap.String("study", studyID), zap.Error(streamErr))
		// Annotate the transcript in place of the missing answer; with zero
		// fragments received the deferred cleanup removes the seed instead.
		if content != "" {
			h.store.StreamAppend(studyID, ErrorNote)
		}
		h.sendError(w, flusher, "AI generation failed")
		return streamErr
	}

	for _, q := range quiz.Extract(content) {
		h.send(w, flusher, StreamResponse{Event: "quiz", StudyID: studyID, Content: q})
	}

	h.send(w, flusher, StreamResponse{Event: "end", StudyID: studyID, Finished: true})
	h.log.Info("completed chat turn", zap.String("study", studyID), zap.Int("length", len(content)))
	return nil
}

// consumeStream reads fragments until the remote side closes the stream,
// folding each into the transcript and forwarding it as a delta event.
// Returns the accumulated content alongside any stream error.
func (h *Handler) consumeStream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, studyID, credential string, st study.Study) (string, error) {
	stream, err := h.ai.StreamChat(ctx, credential, st.Synthesis, st.ChatHistory)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var content string
	for {
		chunk, recvErr := stream.Recv()
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
		h.send(w, flusher, StreamResponse{Event: "delta", StudyID: studyID, Content: chunk.Content})
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

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, msg string) {
	h.send(w, flusher, StreamResponse{Event: "error", Error: msg})
}
