package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenNID    = errors.New("negotiation id mismatch")
)

// GenerateChannelToken builds the token the browser presents when opening the
// voice channel for a negotiation.
// Format: base64url(negotiation_id + "." + exp_unix + "." + hex(hmac_sha256(secret, negotiation_id+"."+exp)))
func GenerateChannelToken(secret, negotiationID string, expUnix int64) (string, error) {
	msg := negotiationID + "." + strconv.FormatInt(expUnix, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	sig := hex.EncodeToString(mac.Sum(nil))
	raw := msg + "." + sig
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateChannelToken parses and validates the token.
// Returns the embedded negotiationID and exp.
func ValidateChannelToken(secret, token, expectNegotiationID string, now time.Time, skewSeconds int) (string, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return "", 0, ErrTokenFormat
	}
	nid := parts[0]
	expStr := parts[1]
	sigHex := parts[2]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	if expectNegotiationID != "" && nid != expectNegotiationID {
		return "", 0, ErrTokenNID
	}
	msg := nid + "." + expStr
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	want := mac.Sum(nil)
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// constant-time compare
	if !hmac.Equal(want, got) {
		return "", 0, ErrTokenSig
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return "", 0, ErrTokenExp
	}
	return nid, exp, nil
}

// Debug helper (not used in prod path).
func MustToken(secret, negotiationID string, expUnix int64) string {
	t, err := GenerateChannelToken(secret, negotiationID, expUnix)
	if err != nil {
		panic(fmt.Sprintf("token error: %v", err))
	}
	return t
}
