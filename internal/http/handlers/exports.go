package handlers

import (
	"fmt"
	"net/http"

	"lookbook/internal/export"
	"lookbook/pkg/zip"
)

func (a *App) ExportResults(w http.ResponseWriter, r *http.Request) {
	if a.Exports == nil {
		a.error(w, http.StatusNotImplemented, "not_configured", "export directory not configured")
		return
	}
	if !a.Studio.State().CanDownloadAll {
		a.error(w, http.StatusUnprocessableEntity, "nothing_to_export", "no completed results")
		return
	}
	n, err := a.Studio.ExportAll(r.Context(), a.Exports, a.ExportDelay)
	if err != nil {
		a.log().Error().Err(err).Int("exported", n).Msg("handlers: export failed")
		a.json(w, http.StatusInternalServerError, map[string]any{
			"error":    "export_failed",
			"message":  err.Error(),
			"exported": n,
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"exported": n, "dir": a.ExportDir})
}

func (a *App) ExportZip(w http.ResponseWriter, r *http.Request) {
	if !a.Studio.State().CanDownloadAll {
		a.error(w, http.StatusUnprocessableEntity, "nothing_to_export", "no completed results")
		return
	}
	prefix := a.DownloadPrefix
	if prefix == "" {
		prefix = export.DefaultPrefix
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_results.zip", prefix))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	n, err := a.Studio.ExportAll(r.Context(), zw, 0)
	if err != nil {
		a.log().Error().Err(err).Int("exported", n).Msg("handlers: zip export failed")
	}
	if err := zw.Close(); err != nil {
		a.log().Error().Err(err).Msg("handlers: close zip")
	}
}
