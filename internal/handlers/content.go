package handlers

import (
	"log"

	"promptsync/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ContentHandler serves the mirrored content collections
type ContentHandler struct {
	syncService *services.SyncService
}

// NewContentHandler creates a new content handler
func NewContentHandler(syncService *services.SyncService) *ContentHandler {
	return &ContentHandler{syncService: syncService}
}

// GetCommands returns all mirrored command documents
func (h *ContentHandler) GetCommands(c *fiber.Ctx) error {
	commands, err := h.syncService.GetAllCommands()
	if err != nil {
		log.Printf("❌ [API] Failed to read commands: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read commands",
		})
	}

	return c.JSON(fiber.Map{
		"commands": commands,
		"count":    len(commands),
	})
}

// GetPersonas returns all mirrored persona documents
func (h *ContentHandler) GetPersonas(c *fiber.Ctx) error {
	personas, err := h.syncService.GetAllPersonas()
	if err != nil {
		log.Printf("❌ [API] Failed to read personas: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read personas",
		})
	}

	return c.JSON(fiber.Map{
		"personas": personas,
		"count":    len(personas),
	})
}

// GetRules returns all mirrored rule documents
func (h *ContentHandler) GetRules(c *fiber.Ctx) error {
	rules, err := h.syncService.GetAllRules()
	if err != nil {
		log.Printf("❌ [API] Failed to read rules: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read rules",
		})
	}

	return c.JSON(fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

// GetDatabase returns the full in-memory view of the mirror, personas
// keyed by ID for direct lookup
func (h *ContentHandler) GetDatabase(c *fiber.Ctx) error {
	view, err := h.syncService.LoadFromDatabase()
	if err != nil {
		log.Printf("❌ [API] Failed to load database view: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load database",
		})
	}

	return c.JSON(view)
}
