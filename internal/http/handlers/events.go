package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultHeartbeat = 15 * time.Second

// Events streams item changes as server-sent events. Each event is named
// after the change kind and carries the item as JSON.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	events := a.Studio.Watch(ctx)

	snapshot, _ := json.Marshal(newSessionView(a.Studio.State()))
	if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", snapshot); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		a.log().Debug().Err(err).Msg("handlers: event stream not flushable")
		return
	}

	interval := a.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(newItemView(ev.Item))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
