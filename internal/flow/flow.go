// Package flow implements the negotiation state machine: a pure decision
// function from (state, intent, offers) to (next state, script). It does no
// I/O and holds no state of its own; the session orchestrator owns the
// current state and commits transitions.
package flow

import "rentvoice/agent/internal/types"

// State is the negotiation phase. COMPLETED and ESCALATED are terminal.
type State string

const (
	StateConnecting      State = "CONNECTING"
	StateUpsellOffer     State = "UPSELL_OFFER"
	StateNormalOffer     State = "NORMAL_OFFER"
	StateProtectionOffer State = "PROTECTION_OFFER"
	StateCompleted       State = "COMPLETED"
	StateEscalated       State = "ESCALATED"
)

func (s State) Valid() bool {
	switch s {
	case StateConnecting, StateUpsellOffer, StateNormalOffer,
		StateProtectionOffer, StateCompleted, StateEscalated:
		return true
	}
	return false
}

// Terminal states have no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateEscalated
}

// Intent is the classified meaning of one spoken customer reply.
type Intent string

const (
	IntentPositive Intent = "POSITIVE"
	IntentNegative Intent = "NEGATIVE"
	IntentEscalate Intent = "ESCALATE"
	IntentUnclear  Intent = "UNCLEAR"
)

// ParseIntent maps a raw classifier value onto the closed four-value set.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentPositive, IntentNegative, IntentEscalate, IntentUnclear:
		return Intent(s), true
	}
	return "", false
}

// Transition computes the next state and the script to speak, deterministic
// in its inputs. Ordering of rules: terminal guard, global escalate, unclear
// retry, then the per-state table.
func Transition(state State, intent Intent, offers types.NegotiationOffers, clientName string) (State, string) {
	if state.Terminal() {
		return state, ""
	}

	// Explicit requests for a human override everything else.
	if intent == IntentEscalate {
		return StateEscalated, escalationScript
	}

	// An unclear reply re-asks the pending offer and stays put. There is no
	// retry ceiling; each turn is a fresh voice interaction.
	if intent == IntentUnclear {
		return state, repromptScript(state, offers)
	}

	switch state {
	case StateUpsellOffer:
		if intent == IntentPositive {
			return StateProtectionOffer, protectionPitchScript(offers)
		}
		return StateNormalOffer, baselineOfferScript(offers)

	case StateNormalOffer:
		if intent == IntentPositive {
			return StateProtectionOffer, protectionPitchScript(offers)
		}
		// Nothing left in inventory to offer; hand off.
		return StateEscalated, noInventoryScript

	case StateProtectionOffer:
		if intent == IntentPositive {
			return StateCompleted, completedProtectedScript
		}
		return StateCompleted, completedStandardScript
	}

	// CONNECTING has no intent-driven transitions; the orchestrator opens the
	// negotiation via IntroScript. Re-ask rather than guess.
	return state, fallbackScript
}
