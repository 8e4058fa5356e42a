package handlers

import (
	"net/http"
)

func (a *App) StartBatch(w http.ResponseWriter, r *http.Request) {
	run, err := a.Studio.StartBatch(a.batchContext())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"status": "started", "items": run.Items()})
}
