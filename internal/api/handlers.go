package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rentvoice/agent/internal/auth"
	"rentvoice/agent/internal/config"
	"rentvoice/agent/internal/offers"
	"rentvoice/agent/internal/session"
	"rentvoice/agent/internal/transcribe"
	"rentvoice/agent/internal/types"
)

type Handlers struct {
	cfg    config.Config
	store  *session.Store
	orch   *session.Orchestrator
	stt    transcribe.Transcriber
	logger *zap.Logger
}

func NewHandlers(cfg config.Config, st *session.Store, orch *session.Orchestrator, stt transcribe.Transcriber, logger *zap.Logger) *Handlers {
	return &Handlers{cfg: cfg, store: st, orch: orch, stt: stt, logger: logger.Named("api")}
}

type createRequest struct {
	Booking     types.BookingRequest `json:"booking"`
	SelectedCar *types.VehicleOffer  `json:"selected_car"`
}

func (h *Handlers) HandleCreateNegotiation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Booking.Client.Name == "" {
		http.Error(w, "missing client name", http.StatusBadRequest)
		return
	}

	n, err := h.orch.Create(r.Context(), req.Booking, req.SelectedCar)
	if err != nil {
		if errors.Is(err, offers.ErrNoSelection) {
			http.Error(w, "missing selected_car", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var token string
	if h.cfg.Channel.TokenSecret != "" {
		exp := time.Now().Add(time.Duration(h.cfg.Channel.TokenTTLMin) * time.Minute).Unix()
		token, _ = auth.GenerateChannelToken(h.cfg.Channel.TokenSecret, n.ID, exp)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"negotiation_id": n.ID,
		"state":          n.State,
		"offers":         n.Offers,
		"degraded":       n.Offers.Degraded(),
		"channel_token":  token,
	})
}

func (h *Handlers) HandleStartNegotiation(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.orch.Begin(r.Context(), id)
	if err != nil {
		h.writeOrchError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

type turnRequest struct {
	Utterance string `json:"utterance"`
}

func (h *Handlers) HandleTurn(w http.ResponseWriter, r *http.Request, id string) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	res, err := h.orch.Turn(r.Context(), id, req.Utterance)
	if err != nil {
		h.writeOrchError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

// HandleAudioTurn accepts a recorded utterance, transcribes it and runs the
// turn with the transcript.
func (h *Handlers) HandleAudioTurn(w http.ResponseWriter, r *http.Request, id string) {
	// Reject unknown ids before spending a transcription call or touching
	// the event log.
	if !h.store.Exists(id) {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing audio file", http.StatusBadRequest)
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "unreadable audio file", http.StatusBadRequest)
		return
	}

	text, err := h.stt.Transcribe(r.Context(), audio, hdr.Filename)
	if err != nil {
		h.logger.Warn("transcription failed", zap.String("negotiation_id", id), zap.Error(err))
		http.Error(w, "transcription unavailable", http.StatusBadGateway)
		return
	}
	h.store.AppendEvent(id, "utterance_transcribed", map[string]any{"text": text})

	res, err := h.orch.Turn(r.Context(), id, text)
	if err != nil {
		h.writeOrchError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"transcript": text,
		"state":      res.State,
		"script":     res.Script,
		"intent":     res.Intent,
	})
}

func (h *Handlers) HandleGetNegotiation(w http.ResponseWriter, r *http.Request, id string) {
	n, ok := h.store.Snapshot(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"negotiation": n,
		"escalation":  n.Escalation.Outcome(),
	})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if !h.store.Exists(id) {
		http.NotFound(w, r)
		return
	}
	evts := h.store.ListEvents(id)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"events": evts})
}

func (h *Handlers) HandleRetryCall(w http.ResponseWriter, r *http.Request, id string) {
	out, err := h.orch.RetryCall(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "escalation": out})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"escalation": out})
}

func (h *Handlers) HandleEndNegotiation(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.orch.Teardown(id); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func (h *Handlers) writeOrchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, session.ErrTurnInFlight):
		http.Error(w, "turn already in progress", http.StatusConflict)
	case errors.Is(err, session.ErrNotReady):
		http.Error(w, "negotiation not ready", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
