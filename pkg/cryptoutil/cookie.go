package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCookieMalformed means the cookie value could not be parsed.
	ErrCookieMalformed = errors.New("cryptoutil: malformed session cookie")
	// ErrCookieBadSignature means the HMAC over the cookie payload did not match.
	ErrCookieBadSignature = errors.New("cryptoutil: session cookie signature mismatch")
	// ErrCookieExpired means the cookie's expiry timestamp has passed.
	ErrCookieExpired = errors.New("cryptoutil: session cookie expired")
)

// SessionClaims is the payload carried by a signed session cookie.
type SessionClaims struct {
	UserID   uuid.UUID
	IssuedAt time.Time
	Expiry   time.Time
}

// SignCookie encodes claims and an HMAC-SHA256 tag into a single
// base64url cookie value: "<payload>.<signature>".
func SignCookie(key []byte, claims SessionClaims) string {
	payload := strings.Join([]string{
		claims.UserID.String(),
		strconv.FormatInt(claims.IssuedAt.Unix(), 10),
		strconv.FormatInt(claims.Expiry.Unix(), 10),
	}, "|")
	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(encodedPayload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encodedPayload + "." + sig
}

// VerifyCookie validates the signature and expiry of a cookie produced by
// SignCookie and returns its claims.
func VerifyCookie(key []byte, cookie string) (SessionClaims, error) {
	encodedPayload, sig, ok := strings.Cut(cookie, ".")
	if !ok {
		return SessionClaims{}, ErrCookieMalformed
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(encodedPayload))
	wantSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(wantSig)) != 1 {
		return SessionClaims{}, ErrCookieBadSignature
	}

	rawPayload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return SessionClaims{}, ErrCookieMalformed
	}

	parts := strings.Split(string(rawPayload), "|")
	if len(parts) != 3 {
		return SessionClaims{}, ErrCookieMalformed
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return SessionClaims{}, ErrCookieMalformed
	}
	issuedUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return SessionClaims{}, ErrCookieMalformed
	}
	expiryUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return SessionClaims{}, ErrCookieMalformed
	}

	claims := SessionClaims{
		UserID:   userID,
		IssuedAt: time.Unix(issuedUnix, 0).UTC(),
		Expiry:   time.Unix(expiryUnix, 0).UTC(),
	}
	if time.Now().After(claims.Expiry) {
		return SessionClaims{}, ErrCookieExpired
	}
	return claims, nil
}
