// Package whatsapp talks to the bridge sidecar that holds the actual
// WhatsApp session. The sidecar exposes a small JSON API for sending,
// deleting and channel lock control, and forwards inbound events to the
// gateway webhook.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/metrics"
)

// Client implements domain.Messenger over the bridge HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates the bridge client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type sendRequest struct {
	Chat     string   `json:"chat"`
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
}

type sendResponse struct {
	MsgID string `json:"msgId"`
}

type deleteRequest struct {
	Chat  string `json:"chat"`
	MsgID string `json:"msgId"`
}

type lockRequest struct {
	Chat   string `json:"chat"`
	Locked bool   `json:"locked"`
}

type apiError struct {
	Error string `json:"error"`
}

// Send posts a message to a chat, with optional mention JIDs.
func (c *Client) Send(ctx context.Context, channel, text string, mentions []string) (domain.MessageRef, error) {
	var resp sendResponse
	err := c.post(ctx, "/messages/send", sendRequest{Chat: channel, Text: text, Mentions: mentions}, &resp)
	if err != nil {
		metrics.SendErrorsTotal.Inc()
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ID: resp.MsgID}, nil
}

// DeleteMessage revokes a previously sent message.
func (c *Client) DeleteMessage(ctx context.Context, channel string, ref domain.MessageRef) error {
	return c.post(ctx, "/messages/delete", deleteRequest{Chat: channel, MsgID: ref.ID}, nil)
}

// SetChannelLocked toggles announcements-only mode on a group chat.
func (c *Client) SetChannelLocked(ctx context.Context, channel string, locked bool) error {
	return c.post(ctx, "/groups/lock", lockRequest{Chat: channel, Locked: locked}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("whatsapp_bridge", path, "", start, err)
		return fmt.Errorf("whatsapp: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("whatsapp_bridge", path, "", start, err)
		return fmt.Errorf("whatsapp: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var ae apiError
		if err := json.Unmarshal(respBody, &ae); err == nil && ae.Error != "" {
			err = fmt.Errorf("whatsapp: %s", ae.Error)
		} else {
			err = fmt.Errorf("whatsapp: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("whatsapp_bridge", path, "", start, err)
		return err
	}
	metrics.ObserveNetworkRequest("whatsapp_bridge", path, "", start, nil)
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("whatsapp: decode response: %w", err)
		}
	}
	return nil
}
