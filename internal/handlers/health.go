package handlers

import (
	"time"

	"promptsync/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	syncService *services.SyncService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(syncService *services.SyncService) *HealthHandler {
	return &HealthHandler{syncService: syncService}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	response := fiber.Map{
		"status":    "healthy",
		"syncing":   h.syncService.IsSyncing(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if meta, err := h.syncService.GetLastSync(); err == nil && !meta.LastSync.IsZero() {
		response["lastSync"] = meta.LastSync.Format(time.RFC3339)
		response["syncStatus"] = meta.SyncStatus
	}

	return c.JSON(response)
}
