package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"voxscribe/encoder"
)

// Client talks to an OpenAI-compatible /audio/transcriptions endpoint.
type Client struct {
	client   *TracedClient
	name     string
	endpoint string
	model    string
	apiKey   string
	lang     string
}

func NewClient(cfg Config) *Client {
	name := cfg.Provider
	if name == "" {
		name = "http"
	}
	return &Client{
		client:   NewTracedClient(cfg.Timeout),
		name:     name,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		lang:     cfg.Language,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Model() string { return c.model }

// Warm opens a connection to the endpoint ahead of the first request.
func (c *Client) Warm() { c.client.WarmConnection(c.endpoint) }

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+encoder.Extension(mimeHint))
	if err != nil {
		return nil, &Failure{Message: "building request: " + err.Error(), Err: err}
	}
	if _, err := part.Write(audio); err != nil {
		return nil, &Failure{Message: "building request: " + err.Error(), Err: err}
	}

	writer.WriteField("model", c.model)
	writer.WriteField("response_format", "json")
	if c.lang != "" {
		writer.WriteField("language", c.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, &Failure{Message: "building request: " + err.Error(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Failure{Message: fmt.Sprintf("%s request failed: %v", c.name, err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, resp.Body)}
	}

	text, duration, err := decodeText(resp.Body)
	if err != nil {
		return nil, &Failure{Status: resp.StatusCode, Message: "malformed transcription response", Err: err}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
		Duration:  duration,
	}, nil
}

func errorMessage(status int, body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("API Error %d", status)
}

var errNoText = errors.New(`missing "text" field`)

// decodeText accepts only a JSON object whose "text" member is a string.
func decodeText(body []byte) (string, float64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", 0, err
	}
	raw, ok := fields["text"]
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return "", 0, errNoText
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", 0, err
	}
	var duration float64
	if d, ok := fields["duration"]; ok && string(d) != "null" {
		if err := json.Unmarshal(d, &duration); err != nil {
			return "", 0, fmt.Errorf(`"duration" field: %w`, err)
		}
	}
	return text, duration, nil
}
