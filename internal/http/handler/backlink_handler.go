package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/service"
)

const maxImportRows = 50000

// BacklinkResponse represents a backlink in API responses.
type BacklinkResponse struct {
	ID         uint      `json:"id"`
	LinkingURL string    `json:"linking_url"`
	URLPath    string    `json:"url_path"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBacklinkResponse(b *model.Backlink) BacklinkResponse {
	return BacklinkResponse{ID: b.ID, LinkingURL: b.LinkingURL, URLPath: b.URLPath, CreatedAt: b.CreatedAt}
}

// ImportBacklinksRequest represents the request body for a bulk backlink import.
type ImportBacklinksRequest struct {
	Backlinks []service.BacklinkInput `json:"backlinks"`
}

// AddBacklink handles POST /api/domains/:name/backlinks
func (h *APIHandler) AddBacklink(c *fiber.Ctx) error {
	var req service.BacklinkInput
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	backlink, status, err := h.backlinks.AddBacklink(requestContext(c), c.Params("name"), req)
	if err != nil {
		return h.fail(c, err, "failed to add backlink")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"backlink": toBacklinkResponse(backlink),
		"config":   status,
	})
}

// ImportBacklinks handles POST /api/domains/:name/backlinks/import
func (h *APIHandler) ImportBacklinks(c *fiber.Ctx) error {
	var req ImportBacklinksRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if len(req.Backlinks) > maxImportRows {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "too many backlinks in one import",
		})
	}

	result, status, err := h.backlinks.ImportBacklinks(requestContext(c), c.Params("name"), req.Backlinks)
	if err != nil {
		return h.fail(c, err, "failed to import backlinks")
	}
	return c.JSON(fiber.Map{
		"import": result,
		"config": status,
	})
}

// ListBacklinks handles GET /api/domains/:name/backlinks
func (h *APIHandler) ListBacklinks(c *fiber.Ctx) error {
	limit, offset := pagination(c, 50)

	list, err := h.backlinks.ListBacklinks(requestContext(c), c.Params("name"), limit, offset)
	if err != nil {
		return h.fail(c, err, "failed to list backlinks")
	}

	response := make([]BacklinkResponse, len(list))
	for i := range list {
		response[i] = toBacklinkResponse(&list[i])
	}
	return c.JSON(fiber.Map{
		"backlinks": response,
		"limit":     limit,
		"offset":    offset,
		"count":     len(response),
	})
}

// DeleteBacklink handles DELETE /api/backlinks/:id
func (h *APIHandler) DeleteBacklink(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}

	status, err := h.backlinks.DeleteBacklink(requestContext(c), uint(id))
	if err != nil {
		return h.fail(c, err, "failed to delete backlink")
	}
	return c.JSON(fiber.Map{
		"deleted": true,
		"config":  status,
	})
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "id must be a positive integer",
	})
}
