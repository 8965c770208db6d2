// internal/enrich/client.go
package enrich

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

	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a failed response is kept in ResponseError.
const maxErrorBody = 512

// ResponseError is returned for a non-2xx answer from the inference API.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("inference API returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls a hosted text-analysis model.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient creates a Client that posts to {baseURL}/models/{model} with apiKey as bearer token.
// Every call is bounded by timeout.
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey})

	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = timeout

	return &Client{
		http:     tc,
		endpoint: strings.TrimRight(baseURL, "/") + "/models/" + model,
	}
}

type analyzeRequest struct {
	Inputs string `json:"inputs"`
}

type analyzeResult struct {
	GeneratedText *string `json:"generated_text"`
	SummaryText   *string `json:"summary_text"`
}

// Analyze sends text to the model and returns its analysis.
// generated_text is preferred over summary_text when both are present.
func (c *Client) Analyze(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(analyzeRequest{Inputs: text})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling inference API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &ResponseError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var results []analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("decoding inference response: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("inference response is an empty list")
	}

	switch first := results[0]; {
	case first.GeneratedText != nil:
		return *first.GeneratedText, nil
	case first.SummaryText != nil:
		return *first.SummaryText, nil
	default:
		return "", errors.New("inference response has neither generated_text nor summary_text")
	}
}
