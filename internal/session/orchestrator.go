package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentvoice/agent/internal/clientws"
	"rentvoice/agent/internal/config"
	"rentvoice/agent/internal/escalate"
	"rentvoice/agent/internal/flow"
	"rentvoice/agent/internal/intent"
	"rentvoice/agent/internal/offers"
	"rentvoice/agent/internal/types"
)

var (
	ErrNotFound     = errors.New("session: negotiation not found")
	ErrTurnInFlight = errors.New("session: a turn is already being processed")
	ErrNotReady     = errors.New("session: negotiation not ready to start")
)

// Speaker delivers agent speech to whatever channel the customer is on.
// clientws.Notifier is the production implementation.
type Speaker interface {
	Connected(negotiationID string) bool
	Speak(ctx context.Context, negotiationID, state, script string) error
}

// TurnResult is what one processed utterance produced.
type TurnResult struct {
	State  flow.State  `json:"state"`
	Script string      `json:"script"`
	Intent flow.Intent `json:"intent,omitempty"`
}

// Orchestrator drives negotiations end to end: creation, the scripted
// opening, one classified turn at a time, and the hand-off to a human when
// the flow escalates.
type Orchestrator struct {
	cfg        config.Config
	store      *Store
	assembler  *offers.Assembler
	classifier intent.Classifier
	dialer     escalate.Dialer
	speaker    Speaker
	logger     *zap.Logger
}

func NewOrchestrator(cfg config.Config, st *Store, asm *offers.Assembler, cls intent.Classifier, d escalate.Dialer, sp Speaker, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		assembler:  asm,
		classifier: cls,
		dialer:     d,
		speaker:    sp,
		logger:     logger.Named("session"),
	}
}

// Create assembles the offer set for a booking and registers a new
// negotiation in CONNECTING.
func (o *Orchestrator) Create(ctx context.Context, booking types.BookingRequest, selected *types.VehicleOffer) (Negotiation, error) {
	set, err := o.assembler.Assemble(ctx, booking, selected)
	if err != nil {
		return Negotiation{}, err
	}

	id := uuid.NewString()
	n := &Negotiation{
		ID:        id,
		Booking:   booking,
		Selected:  *selected,
		Offers:    set,
		State:     flow.StateConnecting,
		CreatedAt: time.Now().UTC(),
	}
	n.Escalation = escalate.NewCoordinator(o.dialer, o.logger, func(out escalate.Outcome) {
		o.store.AppendEvent(id, "escalation_"+string(out.Status), map[string]any{"call_id": out.CallID, "error": out.Error})
	})
	if err := o.store.Create(n); err != nil {
		return Negotiation{}, err
	}
	o.store.AppendEvent(id, "negotiation_created", map[string]any{
		"client":   booking.Client.Name,
		"selected": selected.Name,
		"degraded": set.Degraded(),
	})
	metricNegotiations.Inc()
	o.logger.Info("negotiation created",
		zap.String("negotiation_id", id),
		zap.String("client", booking.Client.Name),
		zap.Bool("degraded_offers", set.Degraded()))
	snap, _ := o.store.Snapshot(id)
	return snap, nil
}

// Begin speaks the opening pitch. It is gated on the video channel being up
// so the first line is not lost, and only fires from CONNECTING. It shares
// the turn slot with Turn so a concurrent start request and video_ready
// frame cannot both commit the opening.
func (o *Orchestrator) Begin(ctx context.Context, id string) (TurnResult, error) {
	if !o.store.Exists(id) {
		return TurnResult{}, ErrNotFound
	}
	if !o.store.BeginTurn(id) {
		return TurnResult{}, ErrTurnInFlight
	}
	defer o.store.EndTurn(id)

	n, ok := o.store.Snapshot(id)
	if !ok {
		return TurnResult{}, ErrNotFound
	}
	if n.State != flow.StateConnecting || !n.VideoReady {
		return TurnResult{}, ErrNotReady
	}

	script := flow.IntroScript(n.Offers, n.Booking.Client.Name)
	o.commit(ctx, id, flow.StateConnecting, flow.StateUpsellOffer, script)
	return TurnResult{State: flow.StateUpsellOffer, Script: script}, nil
}

// Turn runs one utterance through classification and the state machine.
// Exactly one turn per negotiation is processed at a time. The slot is
// claimed before the state is read so a turn always classifies against the
// previous turn's committed state, never a stale snapshot.
func (o *Orchestrator) Turn(ctx context.Context, id, utterance string) (TurnResult, error) {
	if !o.store.Exists(id) {
		return TurnResult{}, ErrNotFound
	}
	if !o.store.BeginTurn(id) {
		metricTurnsRejected.Inc()
		return TurnResult{}, ErrTurnInFlight
	}
	defer o.store.EndTurn(id)

	n, ok := o.store.Snapshot(id)
	if !ok {
		return TurnResult{}, ErrNotFound
	}
	if n.State.Terminal() {
		return TurnResult{State: n.State, Script: n.Script}, nil
	}

	in, err := o.classifier.Classify(ctx, n.State, utterance)
	if err != nil {
		// A dead classifier must not strand the customer; treat it as a
		// request for a human.
		o.logger.Warn("classifier failed, escalating",
			zap.String("negotiation_id", id), zap.Error(err))
		o.store.AppendEvent(id, "classifier_failed", map[string]any{"error": err.Error()})
		in = flow.IntentEscalate
	}
	o.store.AppendEvent(id, "utterance_classified", map[string]any{
		"utterance": utterance,
		"intent":    string(in),
	})

	if in == flow.IntentUnclear {
		if streak := o.store.BumpUnclear(id); streak > 3 {
			o.logger.Warn("customer stuck in unclear loop",
				zap.String("negotiation_id", id), zap.Int("streak", streak))
		}
	} else {
		o.store.ResetUnclear(id)
	}

	next, script := flow.Transition(n.State, in, n.Offers, n.Booking.Client.Name)
	o.commit(ctx, id, n.State, next, script)

	if next == flow.StateEscalated && n.State != flow.StateEscalated {
		esc := o.store.Get(id).Escalation
		req := escalate.DialRequest{ClientName: n.Booking.Client.Name, Reason: o.cfg.Agent.EscalationReason}
		go esc.TriggerOnce(context.Background(), req)
	}

	return TurnResult{State: next, Script: script, Intent: in}, nil
}

// Resume replays the current script to a freshly attached client so a
// reconnect never loses the agent's last line.
func (o *Orchestrator) Resume(ctx context.Context, id string) {
	n, ok := o.store.Snapshot(id)
	if !ok || n.Script == "" {
		return
	}
	o.speak(ctx, id, n.State, n.Script)
}

// RetryCall re-attempts a failed escalation call on the customer's request.
func (o *Orchestrator) RetryCall(ctx context.Context, id string) (escalate.Outcome, error) {
	n := o.store.Get(id)
	if n == nil {
		return escalate.Outcome{}, ErrNotFound
	}
	req := escalate.DialRequest{ClientName: n.Booking.Client.Name, Reason: o.cfg.Agent.EscalationReason}
	if err := n.Escalation.Retry(ctx, req); err != nil {
		return n.Escalation.Outcome(), err
	}
	return n.Escalation.Outcome(), nil
}

// Teardown ends a negotiation: the channel is closed and no further
// scripts are delivered. The stored state survives for inspection.
func (o *Orchestrator) Teardown(id string) error {
	if !o.store.Exists(id) {
		return ErrNotFound
	}
	o.store.SetConnected(id, false)
	if closer, ok := o.speaker.(interface{ Close(string) }); ok {
		closer.Close(id)
	}
	o.store.AppendEvent(id, "negotiation_ended", nil)
	o.logger.Info("negotiation ended", zap.String("negotiation_id", id))
	return nil
}

// HandleClientEvent reacts to frames arriving over the voice channel.
func (o *Orchestrator) HandleClientEvent(ctx context.Context, id string, msg clientws.Message) {
	switch msg.Type {
	case "connection_state":
		state, _ := msg.Payload["state"].(string)
		connected := state == "connected"
		o.store.SetConnected(id, connected)
		if connected {
			o.Resume(ctx, id)
		}
	case "video_ready":
		o.store.SetVideoReady(id, true)
		if res, err := o.Begin(ctx, id); err == nil {
			o.logger.Info("negotiation started", zap.String("negotiation_id", id), zap.String("state", string(res.State)))
		}
	case "speech_ended":
		// Informational; the event log already has it.
	}
}

// commit persists a transition, records it, and speaks the new script.
func (o *Orchestrator) commit(ctx context.Context, id string, from, to flow.State, script string) {
	o.store.Commit(id, to, script)
	o.store.AppendEvent(id, "state_changed", map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	metricTransitions.WithLabelValues(string(from), string(to)).Inc()
	o.speak(ctx, id, to, script)
}

func (o *Orchestrator) speak(ctx context.Context, id string, state flow.State, script string) {
	if script == "" {
		return
	}
	if o.speaker == nil || !o.speaker.Connected(id) {
		o.store.AppendEvent(id, "script_pending", map[string]any{"state": string(state)})
		return
	}
	if err := o.speaker.Speak(ctx, id, string(state), script); err != nil {
		o.logger.Warn("speak failed", zap.String("negotiation_id", id), zap.Error(err))
	}
}
