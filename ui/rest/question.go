package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aloqachat/aloqa/tenants/domain"
)

type Question struct {
	Repo domain.QuestionRepository
}

func InitRestQuestion(app fiber.Router, repo domain.QuestionRepository) Question {
	rest := Question{Repo: repo}
	app.Get("/tenants/:id/questions", rest.List)
	app.Put("/questions/:id/status", rest.SetStatus)
	return rest
}

// List returns question clusters, defaulting to the ones waiting for an
// operator to write a knowledge-base answer.
func (handler *Question) List(c *fiber.Ctx) error {
	status := c.Query("status", domain.QuestionPendingReview)
	questions, err := handler.Repo.ListByStatus(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Questions listed", questions))
}

type questionStatusRequest struct {
	Status string `json:"status"`
}

func (handler *Question) SetStatus(c *fiber.Ctx) error {
	var req questionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", err.Error()))
	}
	switch req.Status {
	case domain.QuestionTracking, domain.QuestionPendingReview, domain.QuestionAnswered:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(failure(400, "INVALID_BODY", "unknown status: "+req.Status))
	}

	if err := handler.Repo.SetStatus(c.UserContext(), c.Params("id"), req.Status); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(failure(500, "INTERNAL_SERVER_ERROR", err.Error()))
	}
	return c.JSON(success("Question updated", nil))
}
