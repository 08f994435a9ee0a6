package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentvoice/agent/internal/types"
)

func testOffers() types.NegotiationOffers {
	return types.NegotiationOffers{
		Upsell: types.VehicleOffer{
			ID: "veh-up", Name: "BMW X5", Price: 25, PriceDisplay: "+$25/day",
		},
		Baseline: types.VehicleOffer{
			ID: "veh-base", Name: "VW Golf", Price: 0, PriceDisplay: "Same Price",
		},
		Protection: types.ProtectionPlan{
			Name: "Platinum Protection", Price: "$15/day", Description: "Zero excess.",
		},
	}
}

var nonTerminal = []State{StateConnecting, StateUpsellOffer, StateNormalOffer, StateProtectionOffer}

func TestEscalateOverridesEveryNonTerminalState(t *testing.T) {
	for _, st := range nonTerminal {
		next, script := Transition(st, IntentEscalate, testOffers(), "Ava")
		assert.Equal(t, StateEscalated, next, "state %s", st)
		assert.NotEmpty(t, script, "state %s", st)
	}
}

func TestUnclearKeepsState(t *testing.T) {
	for _, st := range nonTerminal {
		next, script := Transition(st, IntentUnclear, testOffers(), "Ava")
		assert.Equal(t, st, next, "state %s", st)
		assert.NotEmpty(t, script, "state %s", st)
	}
}

func TestUnclearRepromptRestatesPendingOffer(t *testing.T) {
	offers := testOffers()

	_, script := Transition(StateUpsellOffer, IntentUnclear, offers, "Ava")
	assert.Contains(t, script, "BMW X5")
	assert.Contains(t, script, "25 dollars a day")

	_, script = Transition(StateNormalOffer, IntentUnclear, offers, "Ava")
	assert.Contains(t, script, "VW Golf")

	_, script = Transition(StateProtectionOffer, IntentUnclear, offers, "Ava")
	assert.Contains(t, script, "Platinum Protection")
	assert.Contains(t, script, "15 dollars a day")
}

func TestUnclearIsRepeatableWithoutLimit(t *testing.T) {
	// No retry ceiling is imposed; repeated unclear turns must keep
	// re-asking forever rather than drifting into escalation.
	st := StateUpsellOffer
	for i := 0; i < 50; i++ {
		next, script := Transition(st, IntentUnclear, testOffers(), "Ava")
		require.Equal(t, StateUpsellOffer, next, "turn %d", i)
		require.NotEmpty(t, script, "turn %d", i)
		st = next
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name   string
		state  State
		intent Intent
		want   State
	}{
		{"upsell accepted", StateUpsellOffer, IntentPositive, StateProtectionOffer},
		{"upsell declined", StateUpsellOffer, IntentNegative, StateNormalOffer},
		{"baseline accepted", StateNormalOffer, IntentPositive, StateProtectionOffer},
		{"baseline declined", StateNormalOffer, IntentNegative, StateEscalated},
		{"protection accepted", StateProtectionOffer, IntentPositive, StateCompleted},
		{"protection declined", StateProtectionOffer, IntentNegative, StateCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, script := Transition(tc.state, tc.intent, testOffers(), "Ava")
			assert.Equal(t, tc.want, next)
			assert.NotEmpty(t, script)
		})
	}
}

func TestUpsellAcceptedPitchesProtectionPlan(t *testing.T) {
	next, script := Transition(StateUpsellOffer, IntentPositive, testOffers(), "Ava")
	require.Equal(t, StateProtectionOffer, next)
	assert.Contains(t, script, "Platinum Protection")
	assert.Contains(t, script, "15 dollars a day")
}

func TestProtectionDeclinedConfirmsStandardCoverage(t *testing.T) {
	next, script := Transition(StateProtectionOffer, IntentNegative, testOffers(), "Ava")
	require.Equal(t, StateCompleted, next)
	assert.Contains(t, strings.ToLower(script), "standard coverage")
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, st := range []State{StateCompleted, StateEscalated} {
		for _, in := range []Intent{IntentPositive, IntentNegative, IntentEscalate, IntentUnclear} {
			next, script := Transition(st, in, testOffers(), "Ava")
			assert.Equal(t, st, next, "state %s intent %s", st, in)
			assert.Empty(t, script, "state %s intent %s", st, in)
		}
	}
}

func TestIntroScriptMentionsUpgradeAndPrice(t *testing.T) {
	script := IntroScript(testOffers(), "Ava")
	assert.Contains(t, script, "Ava")
	assert.Contains(t, script, "VW Golf")
	assert.Contains(t, script, "BMW X5")
	assert.Contains(t, script, "25 dollars a day")
}

func TestParseIntent(t *testing.T) {
	for _, v := range []string{"POSITIVE", "NEGATIVE", "ESCALATE", "UNCLEAR"} {
		got, ok := ParseIntent(v)
		require.True(t, ok, v)
		assert.Equal(t, Intent(v), got)
	}
	_, ok := ParseIntent("MAYBE")
	assert.False(t, ok)
	_, ok = ParseIntent("positive")
	assert.False(t, ok)
}

func TestSpokenPrice(t *testing.T) {
	assert.Equal(t, "20 dollars a day", SpokenPrice("+$20/day"))
	assert.Equal(t, "15.50 dollars a day", SpokenPrice("$15.50/day"))
	assert.Equal(t, "same price", SpokenPrice("Same Price"))
	assert.Equal(t, "included", SpokenPrice("Included"))
}
