package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ntfy emoji shortcodes per event.
var eventTags = map[string][]string{
	EventIdle:    {"zzz"},
	EventActive:  {"wave"},
	EventStartup: {"eyes"},
	EventBatch:   {"bell"},
}

// NtfyClient publishes notifications to an ntfy server using its JSON API.
type NtfyClient struct {
	server     string
	topic      string
	httpClient *http.Client
}

type ntfyMessage struct {
	Topic   string   `json:"topic"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
}

// NewNtfyClient creates a client for the given server and topic.
func NewNtfyClient(server, topic string) *NtfyClient {
	return &NtfyClient{
		server:     server,
		topic:      topic,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send publishes the notification. Any non-2xx response is an error.
func (c *NtfyClient) Send(n Notification) error {
	body, err := json.Marshal(ntfyMessage{
		Topic:   c.topic,
		Title:   n.Title,
		Message: n.Message,
		Tags:    eventTags[n.Event],
	})
	if err != nil {
		return fmt.Errorf("failed to encode ntfy message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.server+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ntfy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	return nil
}
