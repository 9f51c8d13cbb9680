package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/handler/stream"
	"github.com/simply-study/backend/internal/handler/studyapi"
	"github.com/simply-study/backend/internal/handler/ws"
	"github.com/simply-study/backend/internal/middleware"
	"github.com/simply-study/backend/internal/service/ai"
	"github.com/simply-study/backend/internal/storage"
	"github.com/simply-study/backend/internal/store"
	"github.com/simply-study/backend/pkg/utils"
)

// NewRouter wires the HTTP surface to the study store, AI service, and
// storage layer.
func NewRouter(st *store.Store, aiSvc *ai.Service, db *storage.SQLite, defaultKey string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	studyHandler := studyapi.New(st, aiSvc, db, defaultKey, log)

	var streamHandler *stream.Handler
	var wsHandler *ws.Handler
	if aiSvc != nil {
		streamHandler = stream.New(aiSvc, st, db, defaultKey, log)
		wsHandler = ws.New(aiSvc, st, db, defaultKey, log)
	}

	r.Route("/api", func(api chi.Router) {
		studyHandler.RegisterRoutes(api)

		api.Get("/studies/{studyID}/chat", func(w http.ResponseWriter, r *http.Request) {
			studyID := chi.URLParam(r, "studyID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, studyID, userMessage); err != nil {
				log.Warn("chat stream failed", zap.String("study", studyID), zap.Error(err))
				utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
			}
		})

		if wsHandler != nil {
			wsHandler.RegisterRoutes(api)
		}
	})

	return r
}
