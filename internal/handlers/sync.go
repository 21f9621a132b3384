package handlers

import (
	"errors"
	"log"

	"promptsync/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler exposes sync control endpoints
type SyncHandler struct {
	syncService *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Trigger starts a sync pass. Returns 409 when a pass is already running.
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	if err := h.syncService.TriggerSync(c.Context()); err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Sync already in progress",
			})
		}
		log.Printf("❌ [API] Sync trigger failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sync failed",
		})
	}

	meta, err := h.syncService.GetLastSync()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sync completed but status is unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"syncStatus":   meta.SyncStatus,
		"lastSync":     meta.LastSync,
		"errorMessage": meta.ErrorMessage,
	})
}

// Status reports the outcome of the most recent sync pass
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	meta, err := h.syncService.GetLastSync()
	if err != nil {
		log.Printf("❌ [API] Failed to read sync status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read sync status",
		})
	}

	unparsed, err := h.syncService.GetUnparsedFiles()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read unparsed files",
		})
	}

	return c.JSON(fiber.Map{
		"syncing":       h.syncService.IsSyncing(),
		"lastSync":      meta.LastSync,
		"syncStatus":    meta.SyncStatus,
		"errorMessage":  meta.ErrorMessage,
		"unparsedFiles": unparsed,
	})
}

// ClearCache drops any cached source responses so the next sync pass
// fetches fresh content
func (h *SyncHandler) ClearCache(c *fiber.Ctx) error {
	h.syncService.ClearCache()
	return c.JSON(fiber.Map{
		"message": "Source cache cleared",
	})
}
