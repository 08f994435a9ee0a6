// Package intent classifies free-form spoken replies into the closed set of
// negotiation intents using an OpenAI-style chat-completions endpoint.
package intent

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

	"go.uber.org/zap"

	"rentvoice/agent/internal/flow"
)

var (
	// ErrUnavailable wraps transport or non-2xx failures from the service.
	ErrUnavailable = errors.New("intent: classifier unavailable")
	// ErrBadResponse wraps responses that don't parse to a known intent.
	ErrBadResponse = errors.New("intent: malformed classifier response")
)

// Classifier resolves an utterance to an intent given the current state.
// Any returned error means the caller should degrade to the human-handoff
// path rather than crash the negotiation.
type Classifier interface {
	Classify(ctx context.Context, state flow.State, utterance string) (flow.Intent, error)
}

type LLMClassifier struct {
	http   *http.Client
	base   string
	apiKey string
	model  string
	logger *zap.Logger
}

func NewLLMClassifier(baseURL, apiKey, model string, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{
		http:   &http.Client{Timeout: 15 * time.Second},
		base:   baseURL,
		apiKey: apiKey,
		model:  model,
		logger: logger.Named("intent"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *LLMClassifier) Classify(ctx context.Context, state flow.State, utterance string) (flow.Intent, error) {
	// An empty utterance (silent recording, empty transcript) can never be
	// classified; skip the round-trip and re-ask.
	if strings.TrimSpace(utterance) == "" {
		return flow.IntentUnclear, nil
	}

	start := time.Now()
	reqBody := chatRequest{Model: c.model}
	reqBody.ResponseFormat.Type = "json_object"
	reqBody.Messages = []chatMessage{
		{Role: "system", Content: systemPrompt(state)},
		{Role: "user", Content: utterance},
	}

	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(reqBody); err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrBadResponse, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", &out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metricFailures.WithLabelValues("transport").Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		metricFailures.WithLabelValues("status").Inc()
		return "", fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, string(b))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metricFailures.WithLabelValues("shape").Inc()
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(parsed.Choices) == 0 {
		metricFailures.WithLabelValues("shape").Inc()
		return "", fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	var verdict struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &verdict); err != nil {
		metricFailures.WithLabelValues("shape").Inc()
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	it, ok := flow.ParseIntent(verdict.Intent)
	if !ok {
		metricFailures.WithLabelValues("shape").Inc()
		return "", fmt.Errorf("%w: unknown intent %q", ErrBadResponse, verdict.Intent)
	}

	metricLatency.Observe(float64(time.Since(start).Milliseconds()))
	metricClassified.WithLabelValues(string(it)).Inc()
	c.logger.Debug("classified utterance",
		zap.String("state", string(state)), zap.String("intent", string(it)))
	return it, nil
}

func systemPrompt(state flow.State) string {
	return fmt.Sprintf(`You are a car rental booking assistant.
Current state: %s

Your goal: classify the customer's spoken reply into exactly one intent.

Return a JSON object: {"intent": "POSITIVE" | "NEGATIVE" | "ESCALATE" | "UNCLEAR"}

Rules:
1. POSITIVE: the customer agrees, says yes, or accepts the offer.
2. NEGATIVE: the customer declines, says no, or prefers the previous option.
3. ESCALATE: only when the customer explicitly asks for a "human", "agent", "representative", "manager", or to talk to someone else.
4. UNCLEAR: the customer asks a question, gives an ambiguous answer, or says something unrelated. Never escalate for these; we will ask again.`, state)
}
