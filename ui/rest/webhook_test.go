package rest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloqachat/aloqa/channels/meta"
)

type recordingProcessor struct {
	mu       sync.Mutex
	payloads []*meta.WebhookPayload
}

func (r *recordingProcessor) ProcessPayload(_ context.Context, payload *meta.WebhookPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func (r *recordingProcessor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

const testAppSecret = "shhh"

func newWebhookApp(processor MetaProcessor) *fiber.App {
	app := fiber.New()
	InitRestWebhook(app, "verify-me", testAppSecret, processor, processor)
	return app
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifyHandshake(t *testing.T) {
	app := newWebhookApp(&recordingProcessor{})

	req := httptest.NewRequest("GET", "/webhook/instagram?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "12345", string(body))
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	app := newWebhookApp(&recordingProcessor{})

	req := httptest.NewRequest("GET", "/webhook/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestWebhookReceiveValidSignature(t *testing.T) {
	processor := &recordingProcessor{}
	app := newWebhookApp(processor)

	body := []byte(`{"object":"instagram","entry":[{"id":"page-1"}]}`)
	req := httptest.NewRequest("POST", "/webhook/instagram", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", sign(body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Eventually(t, func() bool { return processor.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebhookReceiveRejectsBadSignature(t *testing.T) {
	processor := &recordingProcessor{}
	app := newWebhookApp(processor)

	body := []byte(`{"object":"instagram","entry":[]}`)
	req := httptest.NewRequest("POST", "/webhook/instagram", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Zero(t, processor.count())
}

func TestWebhookReceiveRejectsMissingSignature(t *testing.T) {
	processor := &recordingProcessor{}
	app := newWebhookApp(processor)

	body := []byte(`{"object":"instagram","entry":[]}`)
	req := httptest.NewRequest("POST", "/webhook/facebook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestWebhookReceiveAcceptsMalformedBodyWith200(t *testing.T) {
	processor := &recordingProcessor{}
	app := newWebhookApp(processor)

	body := []byte(`{not json`)
	req := httptest.NewRequest("POST", "/webhook/instagram", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Zero(t, processor.count())
}
