package clientws

import (
	"context"
	"time"
)

// Notifier pushes agent speech to the browser attached to a negotiation.
// It satisfies the orchestrator's Speaker interface.
type Notifier struct {
	Reg *Registry
}

func NewNotifier(reg *Registry) *Notifier { return &Notifier{Reg: reg} }

func (n *Notifier) Connected(negotiationID string) bool {
	return n.Reg.Get(negotiationID) != nil
}

// Close tears down the negotiation's channel when the negotiation ends.
func (n *Notifier) Close(negotiationID string) {
	n.Reg.Close(negotiationID)
}

// Speak delivers a speak frame carrying the flow state and the line the
// agent should voice. A missing connection is not an error; the script is
// re-sent on resume.
func (n *Notifier) Speak(ctx context.Context, negotiationID, state, script string) error {
	return n.Reg.SendJSON(ctx, negotiationID, Message{
		Type:          "speak",
		TsMs:          time.Now().UnixMilli(),
		NegotiationID: negotiationID,
		Payload:       map[string]any{"state": state, "script": script},
	})
}
