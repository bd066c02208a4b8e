package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyCompletion signals that the assistant returned no usable answer.
var ErrEmptyCompletion = errors.New("dify: empty completion")

// DifyConfig holds the settings for the Dify completion API.
type DifyConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate checks that the required fields are present.
func (c DifyConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("dify: base url is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("dify: api key is required")
	}
	return nil
}

// DifyClient calls the Dify completion-messages endpoint in blocking mode.
type DifyClient struct {
	cfg  DifyConfig
	http *http.Client
}

// NewDifyClient validates the configuration and builds a client.
func NewDifyClient(cfg DifyConfig) (*DifyClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &DifyClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// CompletionRequest carries the prompt inputs for a completion call.
type CompletionRequest struct {
	Inputs map[string]any `json:"inputs"`
	Query  string         `json:"query,omitempty"`
	User   string         `json:"user"`
}

type completionPayload struct {
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query,omitempty"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

type completionResponse struct {
	Answer string `json:"answer"`
}

// Complete sends the request and returns the assistant's answer text.
func (c *DifyClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}

	body, err := json.Marshal(completionPayload{
		Inputs:       inputs,
		Query:        req.Query,
		ResponseMode: "blocking",
		User:         req.User,
	})
	if err != nil {
		return "", fmt.Errorf("dify: encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/completion-messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("dify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("dify: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("dify: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("dify: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("dify: decode response: %w", err)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return "", ErrEmptyCompletion
	}
	return parsed.Answer, nil
}
