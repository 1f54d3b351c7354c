package authtoken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
)

const (
	maxTokenAge  = 5 * time.Minute
	replayTTL    = 10 * time.Minute
	minSecretLen = 32

	usedKeyPrefix = "admintok:used:"
)

var (
	ErrInvalidStructure = errors.New("invalid_token_structure")
	ErrExpired          = errors.New("token_expired")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrAlreadyUsed      = errors.New("token_already_used")

	// ErrSecretUnavailable is a configuration fault, not an authentication
	// failure. Callers must surface it as a 500-class response.
	ErrSecretUnavailable = errors.New("admin secret missing or too short")
)

// Authenticator validates single-use administrative tokens: a signed
// timestamp plus a durable replay-guard marker.
type Authenticator struct {
	store  *kvstore.Adapter
	secret string
	now    func() time.Time
}

func New(store *kvstore.Adapter, secret string) *Authenticator {
	return &Authenticator{store: store, secret: secret, now: time.Now}
}

// Issue mints a token valid for the next five minutes.
func (a *Authenticator) Issue() (string, error) {
	if len(a.secret) < minSecretLen {
		return "", ErrSecretUnavailable
	}
	ts := strconv.FormatInt(a.now().UnixMilli(), 10)
	return base64.StdEncoding.EncodeToString([]byte(ts + ":" + a.sign(ts))), nil
}

// Validate checks structure, freshness, signature and the replay guard in
// that order, short-circuiting on the first failure. A validated token is
// marked consumed before acceptance.
func (a *Authenticator) Validate(ctx context.Context, token string) error {
	if len(a.secret) < minSecretLen {
		return ErrSecretUnavailable
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ErrInvalidStructure
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 {
		return ErrInvalidStructure
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrExpired
	}
	age := a.now().UnixMilli() - issued
	if age < 0 || age > maxTokenAge.Milliseconds() {
		return ErrExpired
	}

	expected := a.sign(parts[0])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(parts[1])) != 1 {
		return ErrInvalidSignature
	}

	usedKey := usedKeyPrefix + token
	if a.store.Exists(ctx, usedKey) {
		return ErrAlreadyUsed
	}
	a.store.Put(ctx, usedKey, "1", replayTTL)
	return nil
}

func (a *Authenticator) sign(ts string) string {
	mac := hmac.New(sha256.New, []byte(a.secret))
	fmt.Fprint(mac, ts)
	return hex.EncodeToString(mac.Sum(nil))
}
