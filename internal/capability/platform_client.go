package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-flying-image/internal/logger"

	"github.com/sirupsen/logrus"
)

const maxErrorBodyBytes = 64 * 1024

// PlatformClient talks to the hosted platform that owns billing and model
// execution. It implements Billing and Transformer.
type PlatformClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPlatformClient creates a platform client. A zero timeout means the
// client never gives up on its own.
func NewPlatformClient(baseURL, apiKey string, timeout time.Duration) (*PlatformClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("platform base URL is required")
	}
	return &PlatformClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type runRequest struct {
	Model string         `json:"model"`
	Input TransformInput `json:"input"`
}

type failureBody struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	RetryAfter *int64 `json:"retryAfter,omitempty"`
}

type subscriptionBody struct {
	Plan *struct {
		Name string `json:"name"`
	} `json:"plan"`
}

type subscribeBody struct {
	URL string `json:"url"`
}

// Run executes one model invocation. Exactly one HTTP attempt is made.
func (p *PlatformClient) Run(ctx context.Context, user Identity, model string, input TransformInput) (*TransformOutput, error) {
	var out TransformOutput
	if err := p.do(ctx, user, http.MethodPost, "/v1/run", runRequest{Model: model, Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Usage returns the remaining credits of the user
func (p *PlatformClient) Usage(ctx context.Context, user Identity) (*Usage, error) {
	var out Usage
	if err := p.do(ctx, user, http.MethodGet, "/v1/usage", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscription returns the current plan of the user; an empty plan name
// means no subscription
func (p *PlatformClient) Subscription(ctx context.Context, user Identity) (*Subscription, error) {
	var body subscriptionBody
	if err := p.do(ctx, user, http.MethodGet, "/v1/subscription", nil, &body); err != nil {
		return nil, err
	}
	sub := &Subscription{}
	if body.Plan != nil {
		sub.PlanName = body.Plan.Name
	}
	return sub, nil
}

// SubscribeURL asks the platform for a subscription management session
func (p *PlatformClient) SubscribeURL(ctx context.Context, user Identity) (string, error) {
	var body subscribeBody
	if err := p.do(ctx, user, http.MethodPost, "/v1/subscribe", struct{}{}, &body); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", errors.New("platform returned an empty subscription URL")
	}
	return body.URL, nil
}

func (p *PlatformClient) do(ctx context.Context, user Identity, method, path string, payload, out interface{}) error {
	log := logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"user_id": user.UserID,
	})

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}
	if user.Token != "" {
		req.Header.Set("Authorization", "Bearer "+user.Token)
	}

	log.Debug("Sending platform request")
	resp, err := p.client.Do(req)
	if err != nil {
		if isTransportError(err) {
			return &Failure{Kind: FailureNetwork, Cause: err}
		}
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		failure := decodeFailure(resp, raw)
		log.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"kind":        failure.Kind,
		}).Warn("Platform returned a failure")
		return failure
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	return nil
}

// decodeFailure turns an error response into a tagged Failure. The JSON
// retryAfter field (milliseconds) wins over a Retry-After header (seconds).
func decodeFailure(resp *http.Response, raw []byte) *Failure {
	var fb failureBody
	_ = json.Unmarshal(raw, &fb)

	failure := &Failure{
		Kind:    kindFromTag(fb.Type),
		Message: fb.Message,
		Cause:   fmt.Errorf("status code %d", resp.StatusCode),
	}
	if fb.Type == "" && resp.StatusCode == http.StatusTooManyRequests {
		failure.Kind = FailureRateLimited
	}
	if fb.Type == "" && resp.StatusCode == http.StatusPaymentRequired {
		failure.Kind = FailureInsufficientCredits
	}

	// a zero or negative hint counts as no hint
	switch {
	case fb.RetryAfter != nil:
		if *fb.RetryAfter > 0 {
			failure.RetryAfter = millis(*fb.RetryAfter)
		}
	case resp.Header.Get("Retry-After") != "":
		if secs, err := strconv.ParseInt(strings.TrimSpace(resp.Header.Get("Retry-After")), 10, 64); err == nil && secs > 0 {
			failure.RetryAfter = millis(secs * 1000)
		}
	}
	return failure
}
