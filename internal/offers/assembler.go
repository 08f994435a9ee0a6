package offers

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"rentvoice/agent/internal/types"
)

// ErrNoSelection means the customer hasn't picked a base vehicle yet;
// assembly is deferred and the state machine must not run.
var ErrNoSelection = errors.New("offers: no vehicle selected")

// Assembler builds a NegotiationOffers set once per negotiation.
type Assembler struct {
	src    Source
	logger *zap.Logger
}

func NewAssembler(src Source, logger *zap.Logger) *Assembler {
	return &Assembler{src: src, logger: logger.Named("offers")}
}

// Assemble fetches raw offers and maps them onto the negotiation's offer
// set. Any source failure degrades to the placeholder set instead of
// failing the negotiation; the caller can detect it via Degraded().
func (a *Assembler) Assemble(ctx context.Context, booking types.BookingRequest, selected *types.VehicleOffer) (types.NegotiationOffers, error) {
	if selected == nil {
		return types.NegotiationOffers{}, ErrNoSelection
	}

	raw, err := a.src.FetchOffers(ctx, booking)
	if err != nil {
		a.logger.Warn("offer source failed, using degraded set",
			zap.String("client", booking.Client.Name), zap.Error(err))
		metricFallbacks.Inc()
		metricRequests.WithLabelValues("fallback").Inc()
		return DegradedOffers(*selected), nil
	}

	set := types.NegotiationOffers{
		Upsell: types.VehicleOffer{
			ID:           raw.UpsellCar.ID,
			Name:         raw.UpsellCar.Name,
			Image:        raw.UpsellCar.Image,
			Price:        deltaAmount(raw.UpsellCar.PriceDelta),
			PriceDisplay: raw.UpsellCar.PriceDelta,
			Features:     []string{"Premium", "Upgrade"},
			Description:  raw.UpsellCar.Description,
		},
		Baseline: types.VehicleOffer{
			ID:           raw.NormalCar.ID,
			Name:         raw.NormalCar.Name,
			Image:        raw.NormalCar.Image,
			Price:        deltaAmount(raw.NormalCar.PriceDelta),
			PriceDisplay: raw.NormalCar.PriceDelta,
			Features:     []string{"Standard", "Selected"},
			Description:  raw.NormalCar.Description,
		},
		Protection: types.ProtectionPlan{
			Name:        raw.Protection.Name,
			Price:       raw.Protection.Price,
			Description: raw.Protection.Description,
		},
	}

	// The upsell must cost strictly more than the baseline, otherwise the
	// pitch makes no sense; treat a violation like a bad payload.
	if set.Upsell.Price <= set.Baseline.Price {
		a.logger.Warn("upsell not priced above baseline, using degraded set",
			zap.Float64("upsell", set.Upsell.Price), zap.Float64("baseline", set.Baseline.Price))
		metricFallbacks.Inc()
		metricRequests.WithLabelValues("fallback").Inc()
		return DegradedOffers(*selected), nil
	}

	metricRequests.WithLabelValues("ok").Inc()
	return set, nil
}

// DegradedOffers is the safe placeholder set used when the offer source is
// unavailable: generic upgrade, the customer's own selection as baseline,
// and a generic protection plan, all tagged with the fallback sentinel id.
func DegradedOffers(selected types.VehicleOffer) types.NegotiationOffers {
	name := selected.Name
	if name == "" {
		name = "Your Selection"
	}
	return types.NegotiationOffers{
		Upsell: types.VehicleOffer{
			ID:           types.FallbackOfferID,
			Name:         "Premium Upgrade",
			Price:        20,
			PriceDisplay: "+$20/day",
		},
		Baseline: types.VehicleOffer{
			ID:           types.FallbackOfferID,
			Name:         name,
			Price:        0,
			PriceDisplay: "Included",
		},
		Protection: types.ProtectionPlan{
			Name:        "Full Protection",
			Price:       "$15/day",
			Description: "Full coverage.",
		},
	}
}

var deltaPattern = regexp.MustCompile(`\$(\d+(?:\.\d+)?)`)

// deltaAmount pulls the numeric daily amount out of a formatted delta like
// "+$25/day". Non-priced deltas ("Same Price") are zero.
func deltaAmount(display string) float64 {
	m := deltaPattern.FindStringSubmatch(display)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return f
}
