// Package escalate hands a negotiation off to a human agent via an outbound
// phone call and tracks the call's outcome.
package escalate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrDialFailed = errors.New("escalate: dial failed")

// DialRequest carries the context the human agent hears when they pick up.
type DialRequest struct {
	ClientName string `json:"clientName"`
	Reason     string `json:"reason"`
}

// Dialer places the escalation call and returns the provider's call id.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (string, error)
}

// TwilioDialer places the call through the Twilio REST API using an inline
// TwiML announcement.
type TwilioDialer struct {
	http       *http.Client
	base       string
	accountSID string
	authToken  string
	from       string
	to         string
}

func NewTwilioDialer(baseURL, accountSID, authToken, from, to string) *TwilioDialer {
	return &TwilioDialer{
		http:       &http.Client{Timeout: 15 * time.Second},
		base:       baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
	}
}

func (d *TwilioDialer) Dial(ctx context.Context, req DialRequest) (string, error) {
	if d.accountSID == "" || d.authToken == "" || d.from == "" || d.to == "" {
		return "", fmt.Errorf("%w: dialer not configured", ErrDialFailed)
	}

	form := url.Values{}
	form.Set("To", d.to)
	form.Set("From", d.from)
	form.Set("Twiml", announcementTwiML(req))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", d.base, d.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	httpReq.SetBasicAuth(d.accountSID, d.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%w: %s: %s", ErrDialFailed, resp.Status, string(b))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	if parsed.SID == "" {
		return "", fmt.Errorf("%w: empty call sid", ErrDialFailed)
	}
	return parsed.SID, nil
}

func announcementTwiML(req DialRequest) string {
	name := req.ClientName
	if name == "" {
		name = "Unknown"
	}
	reason := req.Reason
	if reason == "" {
		reason = "General inquiry"
	}
	return fmt.Sprintf(
		`<Response><Say voice="alice">Incoming escalation from the rental virtual agent. Client %s is requesting assistance. Reason: %s. Connecting you now.</Say></Response>`,
		xmlEscape(name), xmlEscape(reason))
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;",
)

func xmlEscape(s string) string { return xmlReplacer.Replace(s) }
