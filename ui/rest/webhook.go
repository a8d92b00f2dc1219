package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/channels/meta"
)

// MetaProcessor consumes a parsed webhook payload. Processing happens
// after the HTTP response; Meta retries anything slower than a few
// seconds.
type MetaProcessor interface {
	ProcessPayload(ctx context.Context, payload *meta.WebhookPayload)
}

// Webhook terminates the Meta webhook surface for one channel. The same
// handler shape serves Instagram and Messenger on separate routes.
type Webhook struct {
	verifyToken string
	appSecret   string
	processor   MetaProcessor
	name        string
}

func InitRestWebhook(app fiber.Router, verifyToken, appSecret string, instagram, facebook MetaProcessor) {
	ig := &Webhook{verifyToken: verifyToken, appSecret: appSecret, processor: instagram, name: "instagram"}
	fb := &Webhook{verifyToken: verifyToken, appSecret: appSecret, processor: facebook, name: "facebook"}

	app.Get("/webhook/instagram", ig.Verify)
	app.Post("/webhook/instagram", ig.Receive)
	app.Get("/webhook/facebook", fb.Verify)
	app.Post("/webhook/facebook", fb.Receive)
}

// Verify answers Meta's subscription handshake.
func (h *Webhook) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		logrus.WithField("webhook", h.name).Info("[WEBHOOK] Subscription verified")
		return c.SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// Receive validates the payload signature and queues processing. Meta only
// needs a fast 200; the body is handled on a separate goroutine.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	body := c.Body()

	if !h.validSignature(c.Get("X-Hub-Signature-256"), body) {
		logrus.WithField("webhook", h.name).Warn("[WEBHOOK] Invalid payload signature")
		return c.SendStatus(fiber.StatusForbidden)
	}

	var payload meta.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logrus.WithError(err).WithField("webhook", h.name).Warn("[WEBHOOK] Malformed payload")
		// Still 200: retries of a malformed body cannot succeed.
		return c.SendStatus(fiber.StatusOK)
	}

	go h.processor.ProcessPayload(context.Background(), &payload)
	return c.SendStatus(fiber.StatusOK)
}

// validSignature checks the X-Hub-Signature-256 header: "sha256=" plus the
// hex HMAC-SHA256 of the raw body under the app secret.
func (h *Webhook) validSignature(header string, body []byte) bool {
	if h.appSecret == "" {
		return true
	}
	expected, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(expected))
}
