package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentvoice/agent/internal/flow"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClassifyReturnsEachKnownIntent(t *testing.T) {
	for _, want := range []flow.Intent{flow.IntentPositive, flow.IntentNegative, flow.IntentEscalate, flow.IntentUnclear} {
		srv := chatServer(t, `{"intent": "`+string(want)+`"}`)
		c := NewLLMClassifier(srv.URL, "test-key", "gpt-4o", zap.NewNop())
		got, err := c.Classify(context.Background(), flow.StateUpsellOffer, "sure, why not")
		srv.Close()
		require.NoError(t, err, want)
		assert.Equal(t, want, got)
	}
}

func TestClassifyRejectsOutOfSetIntent(t *testing.T) {
	srv := chatServer(t, `{"intent": "MAYBE"}`)
	defer srv.Close()

	c := NewLLMClassifier(srv.URL, "test-key", "gpt-4o", zap.NewNop())
	_, err := c.Classify(context.Background(), flow.StateUpsellOffer, "hmm")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestClassifyRejectsMalformedContent(t *testing.T) {
	srv := chatServer(t, `this is not json at all`)
	defer srv.Close()

	c := NewLLMClassifier(srv.URL, "test-key", "gpt-4o", zap.NewNop())
	_, err := c.Classify(context.Background(), flow.StateProtectionOffer, "yes")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestClassifyServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewLLMClassifier(srv.URL, "test-key", "gpt-4o", zap.NewNop())
	_, err := c.Classify(context.Background(), flow.StateUpsellOffer, "yes")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyEmptyUtteranceSkipsNetwork(t *testing.T) {
	// Base URL points nowhere; an empty utterance must not dial out.
	c := NewLLMClassifier("http://127.0.0.1:1", "test-key", "gpt-4o", zap.NewNop())
	got, err := c.Classify(context.Background(), flow.StateUpsellOffer, "   ")
	require.NoError(t, err)
	assert.Equal(t, flow.IntentUnclear, got)
}
