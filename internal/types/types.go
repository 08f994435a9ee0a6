package types

import "time"

// ClientData identifies the customer for one negotiation.
type ClientData struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type ReservationData struct {
	PickupLocationID string `json:"pickup_location_id"`
	PreferredCar     string `json:"preferred_car"`
}

type PreferencesData struct {
	Passengers   int     `json:"passengers"`
	Doors        int     `json:"doors"`
	Luggage      string  `json:"luggage"` // light | medium | heavy
	Transmission string  `json:"transmission,omitempty"`
	Budget       float64 `json:"budget"` // daily budget
}

type AddonsData struct {
	GPS              bool `json:"gps"`
	BabySeat         bool `json:"baby_seat"`
	AdditionalDriver bool `json:"additional_driver"`
}

type MetaData struct {
	Language string `json:"language"`
}

// BookingRequest is the immutable booking context submitted by the upstream
// booking UI. It is owned by the session orchestrator for the lifetime of
// one negotiation and never mutated after creation.
type BookingRequest struct {
	Client      ClientData      `json:"client"`
	Reservation ReservationData `json:"reservation"`
	Preferences PreferencesData `json:"preferences"`
	Addons      AddonsData      `json:"addons"`
	Meta        MetaData        `json:"meta"`
}

// VehicleOffer is a single negotiable vehicle. Price carries the numeric
// daily delta for ordering checks; PriceDisplay is what gets spoken.
type VehicleOffer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Image        string   `json:"image,omitempty"`
	Price        float64  `json:"price"`
	PriceDisplay string   `json:"price_display"`
	Features     []string `json:"features,omitempty"`
	Description  string   `json:"description,omitempty"`
}

type ProtectionPlan struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
}

// FallbackOfferID marks offers produced by the degraded fallback path so
// callers and tests can tell them apart from real inventory.
const FallbackOfferID = "fallback"

// NegotiationOffers is the read-only offer set for a single negotiation:
// exactly one upsell vehicle, the customer's baseline pick, and one
// protection plan. Assembled once, never mutated.
type NegotiationOffers struct {
	Upsell     VehicleOffer   `json:"upsell_car"`
	Baseline   VehicleOffer   `json:"normal_car"`
	Protection ProtectionPlan `json:"protection"`
}

// Degraded reports whether this set came from the fallback path.
func (o NegotiationOffers) Degraded() bool {
	return o.Upsell.ID == FallbackOfferID
}

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}
