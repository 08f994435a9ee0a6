package main

import (
	"fmt"
	"strings"

	"rentvoice/agent/internal/types"
)

// Vehicle is one rentable car in the sidecar's catalog.
type Vehicle struct {
	ID           string  `json:"id"`
	Name         string  `json:"vehicle_name"`
	Category     string  `json:"category"` // same | recommended_upsell
	ExtraCost    float64 `json:"extra_cost"`
	TotalPrice   float64 `json:"total_price"`
	Passengers   int     `json:"passengers"`
	Transmission string  `json:"transmission"`
	Image        string  `json:"image,omitempty"`
}

// Protection tiers ordered expensive first, matching how the upstream
// catalog lists protection packages.
type Protection struct {
	Name    string  `json:"name"`
	Summary string  `json:"summary"`
	Cost    float64 `json:"cost"`
}

// Inventory holds the catalog the sidecar serves offers from.
type Inventory struct {
	Vehicles    []Vehicle
	Protections []Protection
}

// DefaultInventory is a static catalog standing in for the upstream fleet
// API the production deployment fetches on startup.
func DefaultInventory() *Inventory {
	return &Inventory{
		Vehicles: []Vehicle{
			{ID: "v1", Name: "VW Polo", Category: "same", ExtraCost: 0, TotalPrice: 35, Passengers: 4, Transmission: "manual"},
			{ID: "v2", Name: "VW Golf", Category: "same", ExtraCost: 0, TotalPrice: 42, Passengers: 5, Transmission: "manual"},
			{ID: "v3", Name: "Skoda Octavia", Category: "same", ExtraCost: 0, TotalPrice: 48, Passengers: 5, Transmission: "automatic"},
			{ID: "v4", Name: "Opel Astra", Category: "same", ExtraCost: 0, TotalPrice: 44, Passengers: 5, Transmission: "automatic"},
			{ID: "v5", Name: "BMW 3 Series", Category: "recommended_upsell", ExtraCost: 18, TotalPrice: 62, Passengers: 5, Transmission: "automatic"},
			{ID: "v6", Name: "BMW X5", Category: "recommended_upsell", ExtraCost: 35, TotalPrice: 85, Passengers: 5, Transmission: "automatic"},
			{ID: "v7", Name: "Mercedes V-Class", Category: "recommended_upsell", ExtraCost: 42, TotalPrice: 95, Passengers: 7, Transmission: "automatic"},
		},
		Protections: []Protection{
			{Name: "Platinum Protection", Summary: "Zero deductible. Covers glass, tires and roadside assistance.", Cost: 25},
			{Name: "Smart Protection", Summary: "Reduced deductible. Covers collision damage.", Cost: 15},
			{Name: "Basic Protection", Summary: "Standard deductible. Third-party liability only.", Cost: 8},
		},
	}
}

// OfferResponse is the wire shape the agent's offer assembler consumes.
type OfferResponse struct {
	UpsellCar  CarOffer        `json:"upsell_car"`
	NormalCar  CarOffer        `json:"normal_car"`
	Protection ProtectionOffer `json:"protection"`
}

type CarOffer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	PriceDelta  string `json:"price_delta"`
	Description string `json:"description"`
}

type ProtectionOffer struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// SelectOffers picks the baseline and upsell vehicles for a booking plus a
// budget-matched protection tier.
func (inv *Inventory) SelectOffers(booking types.BookingRequest) OfferResponse {
	normal, upsell := inv.filterCars(booking.Reservation.PreferredCar, booking.Preferences)
	prot := inv.selectProtection(booking.Preferences.Budget)
	return OfferResponse{
		UpsellCar:  formatCarOffer(upsell),
		NormalCar:  formatCarOffer(normal),
		Protection: formatProtectionOffer(prot),
	}
}

func (inv *Inventory) filterCars(preferredName string, prefs types.PreferencesData) (normal, upsell Vehicle) {
	var same, upsells []Vehicle
	for _, v := range inv.Vehicles {
		if v.Category == "recommended_upsell" {
			upsells = append(upsells, v)
		} else {
			same = append(same, v)
		}
	}

	// Baseline tries an exact preferred-name match before falling back to
	// the whole same-category pool.
	var preferredSame []Vehicle
	for _, v := range same {
		if v.Name == preferredName {
			preferredSame = append(preferredSame, v)
		}
	}
	if len(preferredSame) > 0 {
		normal = applyFilters(preferredSame, prefs)
	} else {
		normal = applyFilters(same, prefs)
	}
	upsell = applyFilters(upsells, prefs)
	return normal, upsell
}

// applyFilters returns the best matching car under layered constraints,
// relaxing one constraint per layer until something matches.
func applyFilters(cars []Vehicle, prefs types.PreferencesData) Vehicle {
	if len(cars) == 0 {
		return Vehicle{}
	}
	maxPrice := prefs.Budget * 1.3
	matchTransmission := func(v Vehicle) bool {
		return prefs.Transmission == "" || strings.EqualFold(v.Transmission, prefs.Transmission)
	}

	// 1. Strict: passengers + transmission + budget; most expensive wins.
	var strict []Vehicle
	for _, v := range cars {
		if v.Passengers >= prefs.Passengers && matchTransmission(v) && v.TotalPrice <= maxPrice {
			strict = append(strict, v)
		}
	}
	if len(strict) > 0 {
		return mostExpensive(strict)
	}

	// 2. Relax budget: passengers + transmission; cheapest wins.
	var noBudget []Vehicle
	for _, v := range cars {
		if v.Passengers >= prefs.Passengers && matchTransmission(v) {
			noBudget = append(noBudget, v)
		}
	}
	if len(noBudget) > 0 {
		return cheapest(noBudget)
	}

	// 3. Relax transmission: passengers only; most expensive wins.
	var passengerOnly []Vehicle
	for _, v := range cars {
		if v.Passengers >= prefs.Passengers {
			passengerOnly = append(passengerOnly, v)
		}
	}
	if len(passengerOnly) > 0 {
		return mostExpensive(passengerOnly)
	}

	// 4. Nothing valid; fall back to the most expensive overall.
	return mostExpensive(cars)
}

func mostExpensive(cars []Vehicle) Vehicle {
	best := cars[0]
	for _, v := range cars[1:] {
		if v.TotalPrice > best.TotalPrice {
			best = v
		}
	}
	return best
}

func cheapest(cars []Vehicle) Vehicle {
	best := cars[0]
	for _, v := range cars[1:] {
		if v.TotalPrice < best.TotalPrice {
			best = v
		}
	}
	return best
}

func (inv *Inventory) selectProtection(budget float64) Protection {
	switch {
	case budget < 40:
		return inv.Protections[2] // cheap
	case budget < 70:
		return inv.Protections[1] // medium
	default:
		return inv.Protections[0] // expensive
	}
}

func formatCarOffer(v Vehicle) CarOffer {
	delta := "Same Price"
	if v.ExtraCost > 0 {
		delta = fmt.Sprintf("+$%g/day", v.ExtraCost)
	}
	return CarOffer{
		ID:          v.ID,
		Name:        v.Name,
		Image:       v.Image,
		PriceDelta:  delta,
		Description: fmt.Sprintf("%s with category %s", v.Name, v.Category),
	}
}

func formatProtectionOffer(p Protection) ProtectionOffer {
	return ProtectionOffer{
		Name:        p.Name,
		Price:       fmt.Sprintf("$%g/day", p.Cost),
		Description: p.Summary,
	}
}
