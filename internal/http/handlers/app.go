package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"lookbook/internal/domain"
	"lookbook/internal/export"
	"lookbook/internal/infra"
	"lookbook/internal/studio"
)

type App struct {
	Studio *studio.Controller
	// Exports receives paced bulk exports. Nil disables POST /v1/exports.
	Exports        export.Saver
	ExportDir      string
	ExportDelay    time.Duration
	DownloadPrefix string
	MaxUploadBytes int64
	// BatchContext bounds batches started over HTTP; request contexts end too
	// early for that.
	BatchContext context.Context
	Heartbeat    time.Duration
	Logger       *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// domainError maps controller errors onto HTTP statuses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrBatchActive):
		a.error(w, http.StatusConflict, "batch_active", err.Error())
	case errors.Is(err, domain.ErrNothingToGenerate):
		a.error(w, http.StatusUnprocessableEntity, "nothing_to_generate", err.Error())
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", err.Error())
	case errors.Is(err, domain.ErrCredentialUnavailable):
		a.error(w, http.StatusPreconditionFailed, "credential_unavailable", err.Error())
	default:
		a.log().Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) log() *infra.Logger {
	if a.Logger == nil {
		return infra.DiscardLogger()
	}
	return a.Logger
}

func (a *App) batchContext() context.Context {
	if a.BatchContext == nil {
		return context.Background()
	}
	return a.BatchContext
}
