package studyapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/ingest"
	"github.com/simply-study/backend/internal/model/study"
	"github.com/simply-study/backend/internal/store"
	"github.com/simply-study/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Synthesizer is the slice of the AI service the study handler needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, credential string, parts []study.SourceMaterialPart) (string, error)
	Title(ctx context.Context, credential string, parts []study.SourceMaterialPart) (string, error)
}

// CredentialStore is the persisted credential slot.
type CredentialStore interface {
	LoadAPIKey() (string, error)
	SaveAPIKey(key string) error
}

// Handler exposes study CRUD, source material ingestion, synthesis, and
// credential management over HTTP.
type Handler struct {
	store       *store.Store
	ai          Synthesizer
	credentials CredentialStore
	defaultKey  string
	log         *zap.Logger
}

// New creates the study handler. defaultKey is the environment-provided
// credential used while the stored slot is empty.
func New(st *store.Store, ai Synthesizer, credentials CredentialStore, defaultKey string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:       st,
		ai:          ai,
		credentials: credentials,
		defaultKey:  defaultKey,
		log:         log,
	}
}

// RegisterRoutes mounts the study routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/studies", h.handleList)
	r.Post("/studies", h.handleCreate)
	r.Get("/studies/active", h.handleActive)
	r.Delete("/studies/{studyID}", h.handleDelete)
	r.Patch("/studies/{studyID}", h.handleRename)
	r.Post("/studies/{studyID}/select", h.handleSelect)
	r.Put("/studies/{studyID}/text", h.handleSetText)
	r.Post("/studies/{studyID}/source", h.handleUploadSource)
	r.Post("/studies/{studyID}/synthesize", h.handleSynthesize)

	r.Get("/credential", h.handleGetCredential)
	r.Put("/credential", h.handlePutCredential)
	r.Delete("/credential", h.handleDeleteCredential)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.ListAll())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	// An empty body means "use the next default name".
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err != io.EOF {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := h.store.Create(payload.Name)
	utils.RespondJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store.Active()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no active study")
		return
	}
	utils.RespondJSON(w, http.StatusOK, st)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(chi.URLParam(r, "studyID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studyID")

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, ok := h.store.Get(id); !ok {
		utils.RespondError(w, http.StatusNotFound, "study not found")
		return
	}

	h.store.Rename(id, payload.Name)
	st, _ := h.store.Get(id)
	utils.RespondJSON(w, http.StatusOK, st)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studyID")
	if _, ok := h.store.Get(id); !ok {
		utils.RespondError(w, http.StatusNotFound, "study not found")
		return
	}
	h.store.SetActive(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetText(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studyID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, ok := h.store.Get(id); !ok {
		utils.RespondError(w, http.StatusNotFound, "study not found")
		return
	}

	h.store.SetTextPart(id, payload.Content)
	st, _ := h.store.Get(id)
	utils.RespondJSON(w, http.StatusOK, st)
}

// handleUploadSource ingests an uploaded file into the study's source
// material. Ingestion failures abort without mutating the study.
func (h *Handler) handleUploadSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studyID")
	if _, ok := h.store.Get(id); !ok {
		utils.RespondError(w, http.StatusNotFound, "study not found")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	parts, err := ingest.Process(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		h.log.Warn("ingestion failed", zap.String("file", header.Filename), zap.Error(err))
		utils.RespondError(w, http.StatusUnprocessableEntity, "Error processing the file. Please try again.")
		return
	}

	h.store.SetSourceParts(id, parts, header.Filename)
	st, _ := h.store.Get(id)
	utils.RespondJSON(w, http.StatusOK, st)
}

// handleSynthesize runs the synthesis and title passes for the study's
// current source material. The synthesis fully replaces the previous one,
// the transcript is cleared, and placeholder names pick up the generated
// title. A failed request leaves the study exactly as it was.
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studyID")

	st, ok := h.store.Get(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "study not found")
		return
	}
	if len(st.SourceMaterial.Parts) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Please provide study material (text or file).")
		return
	}

	credential, err := h.resolveCredential()
	if err != nil || credential == "" {
		utils.RespondError(w, http.StatusUnauthorized, "api credential is not configured")
		return
	}

	// Synthesis and title are independent; run them concurrently.
	var (
		wg                     sync.WaitGroup
		synthesis, title       string
		synthesisErr, titleErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		synthesis, synthesisErr = h.ai.Synthesize(r.Context(), credential, st.SourceMaterial.Parts)
	}()
	go func() {
		defer wg.Done()
		title, titleErr = h.ai.Title(r.Context(), credential, st.SourceMaterial.Parts)
	}()
	wg.Wait()

	if synthesisErr != nil || titleErr != nil {
		h.log.Warn("synthesis request failed",
			zap.String("study", id),
			zap.NamedError("synthesis", synthesisErr),
			zap.NamedError("title", titleErr))
		utils.RespondError(w, http.StatusBadGateway,
			"An error occurred while communicating with the AI. Please check your API Key and connection.")
		return
	}

	h.store.ApplySynthesis(id, synthesis, title)
	updated, _ := h.store.Get(id)
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	key, err := h.credentials.LoadAPIKey()
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to read credential")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"apiKey":     key,
		"configured": key != "" || h.defaultKey != "",
	})
}

func (h *Handler) handlePutCredential(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.APIKey == "" {
		utils.RespondError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if err := h.credentials.SaveAPIKey(payload.APIKey); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.SaveAPIKey(""); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveCredential prefers the stored credential over the environment one.
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
