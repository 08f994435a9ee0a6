// Package offers assembles the negotiable offer set for one negotiation from
// the external offer source, degrading to a safe placeholder set when the
// source is unreachable or returns garbage.
package offers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rentvoice/agent/internal/types"
)

var (
	// ErrUnavailable wraps transport-level failures talking to the source.
	ErrUnavailable = errors.New("offers: source unavailable")
	// ErrBadPayload wraps responses that don't match the offer schema.
	ErrBadPayload = errors.New("offers: malformed source response")
)

// RawVehicle is one vehicle record as the offer source returns it.
type RawVehicle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	PriceDelta  string `json:"price_delta"`
	Description string `json:"description"`
}

type RawProtection struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// RawOffers is the offer source's response shape.
type RawOffers struct {
	UpsellCar  RawVehicle    `json:"upsell_car"`
	NormalCar  RawVehicle    `json:"normal_car"`
	Protection RawProtection `json:"protection"`
}

// Source fetches raw offer records for a booking.
type Source interface {
	FetchOffers(ctx context.Context, booking types.BookingRequest) (RawOffers, error)
}

// HTTPSource talks to the offer-source service over JSON/HTTP.
type HTTPSource struct {
	http *http.Client
	base string
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		http: &http.Client{Timeout: timeout},
		base: baseURL,
	}
}

func (s *HTTPSource) FetchOffers(ctx context.Context, booking types.BookingRequest) (RawOffers, error) {
	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(booking); err != nil {
		return RawOffers{}, fmt.Errorf("%w: encode request: %v", ErrBadPayload, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/booking/offer", &out)
	if err != nil {
		return RawOffers{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return RawOffers{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return RawOffers{}, fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, string(b))
	}

	var raw RawOffers
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return RawOffers{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if raw.UpsellCar.Name == "" || raw.NormalCar.Name == "" || raw.Protection.Name == "" {
		return RawOffers{}, fmt.Errorf("%w: missing offer fields", ErrBadPayload)
	}
	return raw, nil
}
