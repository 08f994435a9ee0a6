package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rentvoice/agent/internal/config"
	"rentvoice/agent/internal/escalate"
	"rentvoice/agent/internal/flow"
	"rentvoice/agent/internal/offers"
	"rentvoice/agent/internal/session"
)

type mockClassifier struct{ intent flow.Intent }

func (m *mockClassifier) Classify(ctx context.Context, state flow.State, utterance string) (flow.Intent, error) {
	return m.intent, nil
}

type mockDialer struct{}

func (m *mockDialer) Dial(ctx context.Context, req escalate.DialRequest) (string, error) {
	return "CA1", nil
}

type mockTranscriber struct {
	text  string
	calls atomic.Int64
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	m.calls.Add(1)
	return m.text, nil
}

func newTestServer(t *testing.T, cls *mockClassifier, stt *mockTranscriber) (*httptest.Server, *session.Store) {
	t.Helper()
	offerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"upsell_car": {"id":"v9","name":"BMW X5","price_delta":"+$25/day"},
			"normal_car": {"id":"v3","name":"VW Golf","price_delta":"Same Price"},
			"protection": {"name":"Platinum Protection","price":"$15/day"}
		}`))
	}))
	t.Cleanup(offerSrv.Close)

	cfg := config.Config{}
	cfg.Channel.TokenSecret = "test-secret"
	cfg.Channel.TokenTTLMin = 60
	st := session.New()
	asm := offers.NewAssembler(offers.NewHTTPSource(offerSrv.URL, 2*time.Second), zap.NewNop())
	orch := session.NewOrchestrator(cfg, st, asm, cls, &mockDialer{}, nil, zap.NewNop())
	h := NewHandlers(cfg, st, orch, stt, zap.NewNop())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, st
}

func createNegotiation(t *testing.T, srv *httptest.Server) (string, map[string]any) {
	t.Helper()
	body := `{
		"booking": {"client": {"name": "John", "age": 35}, "preferences": {"passengers": 4, "budget": 50}},
		"selected_car": {"id": "v3", "name": "VW Golf", "price": 0}
	}`
	resp, err := http.Post(srv.URL+"/negotiations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	id, _ := out["negotiation_id"].(string)
	require.NotEmpty(t, id)
	return id, out
}

func TestCreateNegotiationReturnsOffersAndToken(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{intent: flow.IntentPositive}, &mockTranscriber{})

	_, out := createNegotiation(t, srv)
	assert.Equal(t, string(flow.StateConnecting), out["state"])
	assert.NotEmpty(t, out["channel_token"])
	assert.Equal(t, false, out["degraded"])

	offersOut := out["offers"].(map[string]any)
	upsell := offersOut["upsell_car"].(map[string]any)
	assert.Equal(t, "BMW X5", upsell["name"])
}

func TestCreateNegotiationValidation(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{}, &mockTranscriber{})

	resp, err := http.Post(srv.URL+"/negotiations", "application/json", strings.NewReader(`{"booking":{"client":{"name":""}}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/negotiations", "application/json", strings.NewReader(`{"booking":{"client":{"name":"John"}}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartThenTurnFlow(t *testing.T) {
	srv, st := newTestServer(t, &mockClassifier{intent: flow.IntentPositive}, &mockTranscriber{})
	id, _ := createNegotiation(t, srv)

	// Start before the video channel is up is refused.
	resp, err := http.Post(srv.URL+"/negotiations/"+id+"/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	st.SetVideoReady(id, true)
	resp, err = http.Post(srv.URL+"/negotiations/"+id+"/start", "application/json", nil)
	require.NoError(t, err)
	var started session.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	resp.Body.Close()
	assert.Equal(t, flow.StateUpsellOffer, started.State)
	assert.Contains(t, started.Script, "John")

	resp, err = http.Post(srv.URL+"/negotiations/"+id+"/turn", "application/json", strings.NewReader(`{"utterance":"yes"}`))
	require.NoError(t, err)
	var turned session.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turned))
	resp.Body.Close()
	assert.Equal(t, flow.StateProtectionOffer, turned.State)
	assert.Equal(t, flow.IntentPositive, turned.Intent)
}

func TestAudioTurnTranscribesThenRuns(t *testing.T) {
	srv, st := newTestServer(t, &mockClassifier{intent: flow.IntentPositive}, &mockTranscriber{text: "yes I want the upgrade"})
	id, _ := createNegotiation(t, srv)
	st.SetVideoReady(id, true)
	resp, _ := http.Post(srv.URL+"/negotiations/"+id+"/start", "application/json", nil)
	resp.Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "utterance.webm")
	require.NoError(t, err)
	fw.Write([]byte("fake-audio-bytes"))
	require.NoError(t, mw.Close())

	resp, err = http.Post(srv.URL+"/negotiations/"+id+"/audio", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "yes I want the upgrade", out["transcript"])
	assert.Equal(t, string(flow.StateProtectionOffer), out["state"])
}

func TestAudioTurnUnknownNegotiationSkipsTranscription(t *testing.T) {
	stt := &mockTranscriber{text: "yes"}
	srv, st := newTestServer(t, &mockClassifier{}, stt)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "utterance.webm")
	require.NoError(t, err)
	fw.Write([]byte("fake-audio-bytes"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/negotiations/unknown/audio", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// No transcription was spent and no event log entry was created.
	assert.Equal(t, int64(0), stt.calls.Load())
	assert.Empty(t, st.ListEvents("unknown"))
}

func TestGetAndEvents(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{}, &mockTranscriber{})
	id, _ := createNegotiation(t, srv)

	resp, err := http.Get(srv.URL + "/negotiations/" + id)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	neg := out["negotiation"].(map[string]any)
	assert.Equal(t, id, neg["id"])
	esc := out["escalation"].(map[string]any)
	assert.Equal(t, string(escalate.StatusIdle), esc["status"])

	resp, err = http.Get(srv.URL + "/negotiations/" + id + "/events")
	require.NoError(t, err)
	var evts map[string][]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&evts))
	resp.Body.Close()
	require.NotEmpty(t, evts["events"])
	assert.Equal(t, "negotiation_created", evts["events"][0]["type"])
}

func TestUnknownNegotiation404(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{}, &mockTranscriber{})

	resp, err := http.Post(srv.URL+"/negotiations/unknown/turn", "application/json", strings.NewReader(`{"utterance":"yes"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/negotiations/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/negotiations/unknown/retry-call", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetryCallBeforeEscalationIsConflict(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{}, &mockTranscriber{})
	id, _ := createNegotiation(t, srv)

	resp, err := http.Post(srv.URL+"/negotiations/"+id+"/retry-call", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEndNegotiation(t *testing.T) {
	srv, st := newTestServer(t, &mockClassifier{}, &mockTranscriber{})
	id, _ := createNegotiation(t, srv)

	resp, err := http.Post(srv.URL+"/negotiations/"+id+"/end", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ended bool
	for _, e := range st.ListEvents(id) {
		if e.Type == "negotiation_ended" {
			ended = true
		}
	}
	assert.True(t, ended)

	resp, err = http.Post(srv.URL+"/negotiations/unknown/end", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &mockClassifier{}, &mockTranscriber{})
	id, _ := createNegotiation(t, srv)

	resp, err := http.Get(srv.URL + "/negotiations/" + id + "/turn")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
