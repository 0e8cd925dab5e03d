package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Arielbs/claude-usage-monitor/internal/browser"
	"github.com/Arielbs/claude-usage-monitor/internal/monitor"
)

// heartbeatInterval keeps idle SSE connections from being reaped by
// intermediaries.
const heartbeatInterval = 30 * time.Second

type handlers struct {
	state     *monitor.State
	events    *monitor.Broadcaster
	scheduler *monitor.Scheduler
	chrome    *browser.Chrome
}

// getUsage returns the cached usage snapshot. 204 before the first
// successful fetch; the handler never triggers a fetch itself.
func (h *handlers) getUsage(w http.ResponseWriter, r *http.Request) {
	usage := h.state.Usage()
	if usage == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(r.Context(), w, usage, http.StatusOK)
}

// getAccount returns the cached account profile, 204 when unknown.
func (h *handlers) getAccount(w http.ResponseWriter, r *http.Request) {
	account := h.state.Account()
	if account == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(r.Context(), w, account, http.StatusOK)
}

// getLastError returns the most recent fetch error, 204 when the last
// fetch succeeded.
func (h *handlers) getLastError(w http.ResponseWriter, r *http.Request) {
	message := h.state.LastError()
	if message == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(r.Context(), w, ErrorResponse{Error: message}, http.StatusOK)
}

// refreshUsage forces a fetch outside the poll schedule and returns the
// fresh snapshot. Concurrent calls share a single in-flight fetch.
func (h *handlers) refreshUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	usage, err := h.scheduler.RefreshUsage(ctx)
	if err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(ctx, w, usage, http.StatusOK)
}

// streamEvents subscribes the client to change notifications over SSE.
// The stream runs until the client disconnects.
func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeJSONError(ctx, w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := h.events.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sse.WriteComment("heartbeat"); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(event.ID, string(event.Topic), event.Payload); err != nil {
				slog.WarnContext(ctx, "dropping event stream", "error", err)
				return
			}
		}
	}
}

// listBrowserProfiles lists the discovered Chrome profiles.
func (h *handlers) listBrowserProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.chrome.Profiles()
	if profiles == nil {
		profiles = []browser.Profile{}
	}
	writeJSON(r.Context(), w, profiles, http.StatusOK)
}

type profileSelection struct {
	ID string `json:"id"`
}

// getBrowserProfile returns the persisted profile selection, 204 when none.
func (h *handlers) getBrowserProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.chrome.SelectedProfile()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(r.Context(), w, profileSelection{ID: id}, http.StatusOK)
}

// putBrowserProfile persists a profile selection.
func (h *handlers) putBrowserProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var selection profileSelection
	if err := json.NewDecoder(r.Body).Decode(&selection); err != nil {
		writeJSONError(ctx, w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if selection.ID == "" {
		writeJSONError(ctx, w, "missing profile id", http.StatusBadRequest)
		return
	}

	if err := h.chrome.SelectProfile(selection.ID); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, selection, http.StatusOK)
}

type openRequest struct {
	URL string `json:"url"`
}

// openURL opens a link in the browser with the selected profile. Only
// https links are accepted; this endpoint must not become a local command
// runner.
func (h *handlers) openURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(ctx, w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.URL, "https://") {
		writeJSONError(ctx, w, "only https URLs are allowed", http.StatusBadRequest)
		return
	}

	if err := h.chrome.OpenURL(req.URL); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
