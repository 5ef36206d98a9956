package handler

import (
	"log/slog"
	"net/http"

	"github.com/nestlingapp/nestling/internal/model"
	"github.com/nestlingapp/nestling/internal/remote"
)

type SyncHandler struct {
	coordinator *remote.Coordinator
	logger      *slog.Logger
}

func NewSyncHandler(c *remote.Coordinator, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{coordinator: c, logger: logger}
}

type syncResponse struct {
	Status      string                      `json:"status"`
	Permissions map[string]model.Permission `json:"permissions,omitempty"`
}

// Trigger handles POST /api/sync. Failures surface the generic user
// message; the specifics go to the log. Local state stays authoritative
// either way. Success reports the caller's effective permission on each
// synced profile.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Sync(r.Context()); err != nil {
		h.logger.Error("manual sync", "error", err)
		writeError(w, http.StatusBadGateway, remote.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Status:      "synced",
		Permissions: h.coordinator.Permissions(),
	})
}
