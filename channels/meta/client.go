package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Client is a thin wrapper over the Meta Graph API send surface shared by
// the Instagram and Facebook adapters.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type sendPayload struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message json.RawMessage `json:"message"`
}

// SendText delivers a plain text message via the Send API.
func (c *Client) SendText(ctx context.Context, accessToken, recipientID, text string) error {
	msg, _ := json.Marshal(map[string]string{"text": text})
	return c.sendMessage(ctx, accessToken, recipientID, msg)
}

// SendAttachment delivers a hosted image or video by URL.
func (c *Client) SendAttachment(ctx context.Context, accessToken, recipientID, kind, url string) error {
	msg, _ := json.Marshal(map[string]any{
		"attachment": map[string]any{
			"type": kind,
			"payload": map[string]any{
				"url":         url,
				"is_reusable": true,
			},
		},
	})
	return c.sendMessage(ctx, accessToken, recipientID, msg)
}

func (c *Client) sendMessage(ctx context.Context, accessToken, recipientID string, message json.RawMessage) error {
	payload := sendPayload{Message: message}
	payload.Recipient.ID = recipientID

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.post(ctx, c.baseURL+"/me/messages", accessToken, body)
}

// ReplyToComment posts a public reply under a comment.
func (c *Client) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return err
	}
	return c.post(ctx, fmt.Sprintf("%s/%s/replies", c.baseURL, commentID), accessToken, body)
}

func (c *Client) post(ctx context.Context, url, accessToken string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph api %s: status %d: %s", url, resp.StatusCode, respBody)
	}
	return nil
}

// Download fetches a media attachment. Returns the payload and its
// content type.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 25<<20))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
