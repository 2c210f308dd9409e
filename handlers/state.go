// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/council/middleware"
)

const snapshotTimeout = 5 * time.Second

// Snapshotter returns the encoded state snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

type StateHandler struct {
	snap Snapshotter
}

func NewStateHandler(snap Snapshotter) *StateHandler {
	return &StateHandler{snap: snap}
}

// GetState handles GET /api/state
// Returns proposals, scores, settings, the live roster and the active session
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	data, err := h.snap.Snapshot(ctx)
	if err != nil {
		slog.Error("failed to read snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "State unavailable")
		return
	}

	middleware.RawJSONResponse(w, http.StatusOK, data)
}
