package rest

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/automation"
)

type Automation struct {
	Flows automation.FlowRepository
}

func InitRestAutomation(app fiber.Router, flows automation.FlowRepository) Automation {
	rest := Automation{Flows: flows}
	app.Get("/tenants/:id/flows", rest.List)
	app.Post("/tenants/:id/flows", rest.Create)
	app.Put("/flows/:id", rest.Update)
	app.Delete("/flows/:id", rest.Delete)
	return rest
}

type flowRequest struct {
	Name           string `json:"name"`
	TriggerType    string `json:"trigger_type"`
	TriggerKeyword string `json:"trigger_keyword"`
	Active         bool   `json:"active"`
	Graph          any    `json:"graph"`
	GraphJSON      string `json:"graph_json"`
}

func (r flowRequest) graphJSON() string {
	if r.GraphJSON != "" {
		return r.GraphJSON
	}
	// Builders post the graph as a nested object; re-serialize it.
	if r.Graph != nil {
		if raw, err := json.Marshal(r.Graph); err == nil {
			return string(raw)
		}
	}
	return ""
}

func (handler *Automation) List(c *fiber.Ctx) error {
	flows, err := handler.Flows.ListActive(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Flows listed", flows))
}

func (handler *Automation) Create(c *fiber.Ctx) error {
	var req flowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}

	flow := &automation.Flow{
		TenantID:       c.Params("id"),
		Name:           req.Name,
		TriggerType:    req.TriggerType,
		TriggerKeyword: req.TriggerKeyword,
		Active:         req.Active,
		GraphJSON:      req.graphJSON(),
	}
	if err := flow.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "VALIDATION_ERROR", err.Error()))
	}

	if err := handler.Flows.Create(c.UserContext(), flow); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Flow created", flow))
}

func (handler *Automation) Update(c *fiber.Ctx) error {
	flow, err := handler.Flows.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
	}

	var req flowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}
	flow.Name = req.Name
	flow.TriggerType = req.TriggerType
	flow.TriggerKeyword = req.TriggerKeyword
	flow.Active = req.Active
	if graph := req.graphJSON(); graph != "" {
		flow.GraphJSON = graph
	}
	if err := flow.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "VALIDATION_ERROR", err.Error()))
	}

	if err := handler.Flows.Update(c.UserContext(), flow); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Flow updated", flow))
}

func (handler *Automation) Delete(c *fiber.Ctx) error {
	if err := handler.Flows.Delete(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Flow deleted", nil))
}
