package rest

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/handoff"
)

type Conversation struct {
	Archive     conversation.Archive
	Coordinator *handoff.Coordinator
}

func InitRestConversation(app fiber.Router, archive conversation.Archive, coordinator *handoff.Coordinator) Conversation {
	rest := Conversation{Archive: archive, Coordinator: coordinator}
	app.Get("/tenants/:id/conversations", rest.List)
	app.Get("/conversations/:id/messages", rest.Messages)
	app.Post("/tenants/:id/handoff", rest.Escalate)
	app.Delete("/tenants/:id/handoff", rest.Release)
	return rest
}

func (handler *Conversation) List(c *fiber.Ctx) error {
	filter := conversation.RecordFilter{
		TenantID: c.Params("id"),
		Channel:  c.Query("channel"),
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	}
	if raw := c.Query("needs_human"); raw != "" {
		needsHuman, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_QUERY", "needs_human must be a boolean"))
		}
		filter.NeedsHuman = &needsHuman
	}

	records, err := handler.Archive.ListConversations(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Conversations listed", records))
}

func (handler *Conversation) Messages(c *fiber.Ctx) error {
	messages, err := handler.Archive.ListMessages(c.UserContext(), c.Params("id"), c.QueryInt("limit", 100))
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Messages listed", messages))
}

type handoffRequest struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Reason      string `json:"reason"`
}

// Escalate lets an operator take over a conversation manually.
func (handler *Conversation) Escalate(c *fiber.Ctx) error {
	var req handoffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}
	if req.ContactID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", "contact_id is required"))
	}
	if req.Reason == "" {
		req.Reason = "Manual operator takeover"
	}

	if err := handler.Coordinator.Escalate(c.UserContext(), c.Params("id"), req.ContactID, req.ContactName, req.Reason); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Handoff activated", nil))
}

// Release returns a conversation to the AI after the operator is done.
func (handler *Conversation) Release(c *fiber.Ctx) error {
	var req handoffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}
	if req.ContactID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", "contact_id is required"))
	}

	if err := handler.Coordinator.Release(c.UserContext(), c.Params("id"), req.ContactID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Handoff released", nil))
}
