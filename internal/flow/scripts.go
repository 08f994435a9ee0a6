package flow

import (
	"fmt"
	"regexp"
	"strings"

	"rentvoice/agent/internal/types"
)

// All scripts are templated from the negotiation's offer set and the
// customer's name. Nothing is generated and no price is hardcoded.

const (
	escalationScript = "I understand. I'm connecting you to a human specialist right now. Please hold."

	noInventoryScript = "I apologize, but I don't have other cars available. Let me get a manager to help you find a solution."

	completedProtectedScript = "Perfect! Your car is protected. You can pick up your keys from box number 4. Safe travels!"

	completedStandardScript = "Understood, standard coverage only. Your keys are in box number 4. Drive safely!"

	fallbackScript = "Could you please repeat that? I want to make sure I get your booking right."
)

// IntroScript opens the negotiation with the upsell pitch.
func IntroScript(offers types.NegotiationOffers, clientName string) string {
	if clientName == "" {
		clientName = "there"
	}
	return fmt.Sprintf(
		"Hi %s. Unfortunately, the %s you selected is not available at the moment. "+
			"The good news is that for just %s more, you can upgrade to the %s. "+
			"It feels noticeably faster and more responsive. How does that sound?",
		clientName, offers.Baseline.Name, SpokenPrice(offers.Upsell.PriceDisplay), offers.Upsell.Name)
}

func protectionPitchScript(offers types.NegotiationOffers) string {
	return fmt.Sprintf(
		"Great choice! Now, for peace of mind, we recommend %s. It covers everything for %s. Shall we add it?",
		offers.Protection.Name, SpokenPrice(offers.Protection.Price))
}

func baselineOfferScript(offers types.NegotiationOffers) string {
	return fmt.Sprintf(
		"No problem. In that case, I can offer you the %s at your original budget. Does that work for you?",
		offers.Baseline.Name)
}

func repromptScript(state State, offers types.NegotiationOffers) string {
	switch state {
	case StateUpsellOffer:
		return fmt.Sprintf(
			"I'm sorry, I didn't understand. Would you like to upgrade to the %s for just %s?",
			offers.Upsell.Name, SpokenPrice(offers.Upsell.PriceDisplay))
	case StateNormalOffer:
		return fmt.Sprintf("Sorry, was that a yes for the %s?", offers.Baseline.Name)
	case StateProtectionOffer:
		return fmt.Sprintf(
			"I missed that. Would you like to add %s for %s for peace of mind?",
			offers.Protection.Name, SpokenPrice(offers.Protection.Price))
	}
	return fallbackScript
}

var perDayPrice = regexp.MustCompile(`\+?\$(\d+(?:\.\d+)?)\s*/\s*day`)

// SpokenPrice rewrites a formatted price like "+$20/day" into words the
// avatar can say ("20 dollars a day"). Strings that don't match the per-day
// shape ("Same Price", "Included") pass through lowercased.
func SpokenPrice(display string) string {
	if m := perDayPrice.FindStringSubmatch(display); m != nil {
		return m[1] + " dollars a day"
	}
	return strings.ToLower(display)
}
