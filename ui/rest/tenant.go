package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/tenants/application"
	"github.com/aloqachat/aloqa/tenants/domain"
)

type Tenant struct {
	Service *application.Service
}

func InitRestTenant(app fiber.Router, service *application.Service) Tenant {
	rest := Tenant{Service: service}
	app.Post("/tenants", rest.Create)
	app.Get("/tenants/:id", rest.Get)
	app.Put("/tenants/:id", rest.Update)
	app.Get("/tenants/:id/accounts", rest.ListAccounts)
	app.Post("/tenants/:id/accounts", rest.RegisterAccount)
	app.Post("/accounts/:id/confirm", rest.ConfirmAccount)
	app.Delete("/accounts/:id", rest.DisconnectAccount)
	return rest
}

type tenantRequest struct {
	Name                string `json:"name"`
	AIPersona           string `json:"ai_persona"`
	MasterPrompt        string `json:"master_prompt"`
	Timezone            string `json:"timezone"`
	HumanHandoffEnabled bool   `json:"human_handoff_enabled"`
	OwnerTelegramChatID int64  `json:"owner_telegram_chat_id"`
	Active              bool   `json:"active"`
}

func (handler *Tenant) Create(c *fiber.Ctx) error {
	var req tenantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}

	tenant := &domain.Tenant{
		Name:                req.Name,
		AIPersona:           req.AIPersona,
		MasterPrompt:        req.MasterPrompt,
		Timezone:            req.Timezone,
		HumanHandoffEnabled: req.HumanHandoffEnabled,
		OwnerTelegramChatID: req.OwnerTelegramChatID,
		Active:              true,
	}
	if err := handler.Service.CreateTenant(c.UserContext(), tenant); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "VALIDATION_ERROR", err.Error()))
	}
	return c.JSON(success("Tenant created", tenant))
}

func (handler *Tenant) Get(c *fiber.Ctx) error {
	tenant, err := handler.Service.GetTenant(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Tenant found", tenant))
}

func (handler *Tenant) Update(c *fiber.Ctx) error {
	tenant, err := handler.Service.GetTenant(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}

	var req tenantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}
	tenant.Name = req.Name
	tenant.AIPersona = req.AIPersona
	tenant.MasterPrompt = req.MasterPrompt
	tenant.Timezone = req.Timezone
	tenant.HumanHandoffEnabled = req.HumanHandoffEnabled
	tenant.OwnerTelegramChatID = req.OwnerTelegramChatID
	tenant.Active = req.Active

	if err := handler.Service.UpdateTenant(c.UserContext(), tenant); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "VALIDATION_ERROR", err.Error()))
	}
	return c.JSON(success("Tenant updated", tenant))
}

func (handler *Tenant) ListAccounts(c *fiber.Ctx) error {
	accounts, err := handler.Service.ListAccounts(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	// Credentials never leave the server.
	for _, account := range accounts {
		account.Credential = ""
	}
	return c.JSON(success("Accounts listed", accounts))
}

type accountRequest struct {
	Channel     string `json:"channel"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	PageID      string `json:"page_id"`
	Credential  string `json:"credential"`
}

func (handler *Tenant) RegisterAccount(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}

	account := &domain.ChannelAccount{
		TenantID:    c.Params("id"),
		Channel:     req.Channel,
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		PageID:      req.PageID,
		Credential:  req.Credential,
	}
	if err := handler.Service.RegisterAccount(c.UserContext(), account); err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return c.Status(fiber.StatusConflict).JSON(failure(409, "DUPLICATE_ACCOUNT", err.Error()))
		}
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "VALIDATION_ERROR", err.Error()))
	}
	account.Credential = ""
	return c.JSON(success("Account registered, confirmation pending", account))
}

func (handler *Tenant) ConfirmAccount(c *fiber.Ctx) error {
	account, err := handler.Service.ConfirmAccount(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	account.Credential = ""
	return c.JSON(success("Account connected", account))
}

func (handler *Tenant) DisconnectAccount(c *fiber.Ctx) error {
	if err := handler.Service.DisconnectAccount(c.UserContext(), c.Params("id")); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(failure(404, "NOT_FOUND", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Account disconnected", nil))
}
