package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/service"
)

// RuleRequest represents the request body for creating a rule.
type RuleRequest struct {
	SourcePath   string `json:"source_path"`
	TargetURL    string `json:"target_url"`
	RedirectType int    `json:"redirect_type,omitempty"`
	IsRegex      bool   `json:"is_regex,omitempty"`
	Priority     int    `json:"priority,omitempty"`
}

// UpdateRuleRequest represents the request body for updating a rule.
type UpdateRuleRequest struct {
	SourcePath   *string `json:"source_path,omitempty"`
	TargetURL    *string `json:"target_url,omitempty"`
	RedirectType *int    `json:"redirect_type,omitempty"`
	IsRegex      *bool   `json:"is_regex,omitempty"`
	Priority     *int    `json:"priority,omitempty"`
}

// RuleResponse represents a rule in API responses.
type RuleResponse struct {
	ID           uint      `json:"id"`
	DomainID     uint      `json:"domain_id"`
	SourcePath   string    `json:"source_path"`
	TargetURL    string    `json:"target_url"`
	RedirectType int       `json:"redirect_type"`
	IsRegex      bool      `json:"is_regex"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRuleResponse(r *model.RedirectRule) RuleResponse {
	return RuleResponse{
		ID:           r.ID,
		DomainID:     r.DomainID,
		SourcePath:   r.SourcePath,
		TargetURL:    r.TargetURL,
		RedirectType: r.RedirectType,
		IsRegex:      r.IsRegex,
		Priority:     r.Priority,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CreateRule handles POST /api/domains/:name/rules
func (h *APIHandler) CreateRule(c *fiber.Ctx) error {
	var req RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	rule, status, err := h.rules.CreateRule(requestContext(c), c.Params("name"), service.RuleInput{
		SourcePath:   req.SourcePath,
		TargetURL:    req.TargetURL,
		RedirectType: req.RedirectType,
		IsRegex:      req.IsRegex,
		Priority:     req.Priority,
	})
	if err != nil {
		return h.fail(c, err, "failed to create rule")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"rule":   toRuleResponse(rule),
		"config": status,
	})
}

// ListRules handles GET /api/domains/:name/rules
func (h *APIHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.rules.ListRules(requestContext(c), c.Params("name"))
	if err != nil {
		return h.fail(c, err, "failed to list rules")
	}
	response := make([]RuleResponse, len(rules))
	for i := range rules {
		response[i] = toRuleResponse(&rules[i])
	}
	return c.JSON(fiber.Map{
		"rules": response,
		"count": len(response),
	})
}

// GetRule handles GET /api/rules/:id
func (h *APIHandler) GetRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}
	rule, err := h.rules.GetRule(requestContext(c), uint(id))
	if err != nil {
		return h.fail(c, err, "failed to get rule")
	}
	return c.JSON(toRuleResponse(rule))
}

// UpdateRule handles PATCH /api/rules/:id
func (h *APIHandler) UpdateRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}
	var req UpdateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	rule, status, err := h.rules.UpdateRule(requestContext(c), uint(id), service.UpdateRuleInput{
		SourcePath:   req.SourcePath,
		TargetURL:    req.TargetURL,
		RedirectType: req.RedirectType,
		IsRegex:      req.IsRegex,
		Priority:     req.Priority,
	})
	if err != nil {
		return h.fail(c, err, "failed to update rule")
	}
	return c.JSON(fiber.Map{
		"rule":   toRuleResponse(rule),
		"config": status,
	})
}

// DeleteRule handles DELETE /api/rules/:id
func (h *APIHandler) DeleteRule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}
	status, err := h.rules.DeleteRule(requestContext(c), uint(id))
	if err != nil {
		return h.fail(c, err, "failed to delete rule")
	}
	return c.JSON(fiber.Map{
		"deleted": true,
		"config":  status,
	})
}
