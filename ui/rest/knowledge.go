package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/knowledge"
)

type Knowledge struct {
	Retriever knowledge.Retriever
}

func InitRestKnowledge(app fiber.Router, retriever knowledge.Retriever) Knowledge {
	rest := Knowledge{Retriever: retriever}
	app.Post("/tenants/:id/knowledge", rest.Upload)
	app.Get("/tenants/:id/knowledge/search", rest.Search)
	app.Delete("/tenants/:id/knowledge", rest.DeleteAll)
	return rest
}

type knowledgeUploadRequest struct {
	Documents []struct {
		Title  string `json:"title"`
		Text   string `json:"text"`
		Source string `json:"source"`
	} `json:"documents"`
}

func (handler *Knowledge) Upload(c *fiber.Ctx) error {
	var req knowledgeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}

	tenantID := c.Params("id")
	docs := make([]knowledge.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.Text == "" {
			continue
		}
		docs = append(docs, knowledge.Document{
			TenantID: tenantID,
			Title:    d.Title,
			Text:     d.Text,
			Source:   d.Source,
		})
	}
	if len(docs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", "no documents with text"))
	}

	if err := handler.Retriever.Upsert(c.UserContext(), docs); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Knowledge uploaded", fiber.Map{"count": len(docs)}))
}

// Search exists so operators can check what the agent will retrieve for a
// given customer question.
func (handler *Knowledge) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_QUERY", "q is required"))
	}

	results, err := handler.Retriever.Search(c.UserContext(), c.Params("id"), query, c.QueryInt("top_k", 5))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Search results", results))
}

func (handler *Knowledge) DeleteAll(c *fiber.Ctx) error {
	if err := handler.Retriever.DeleteTenant(c.UserContext(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Knowledge deleted", nil))
}
