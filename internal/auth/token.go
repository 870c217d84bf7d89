// Package auth supplies the identity token attached to every turn and
// collaborator API call. Verification is the backend's job; this side only
// needs to know when its own token is about to expire so it can re-fetch.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider yields a valid auth token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token. Useful for tests and tooling.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider wraps a fixed token string.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token returns the fixed token.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// FetchFunc obtains a fresh token from the identity provider.
type FetchFunc func(ctx context.Context) (string, error)

// CachedTokenSource caches a fetched JWT and re-fetches when its exp claim
// is within the refresh leeway. The token is parsed without signature
// verification - the client holds no key set and only reads its own
// token's expiry.
type CachedTokenSource struct {
	fetch  FetchFunc
	leeway time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// DefaultRefreshLeeway is how long before expiry a cached token is
// considered stale.
const DefaultRefreshLeeway = 30 * time.Second

// NewCachedTokenSource creates a caching token source. leeway <= 0 selects
// DefaultRefreshLeeway.
func NewCachedTokenSource(fetch FetchFunc, leeway time.Duration, logger *slog.Logger) *CachedTokenSource {
	if leeway <= 0 {
		leeway = DefaultRefreshLeeway
	}
	return &CachedTokenSource{
		fetch:  fetch,
		leeway: leeway,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns the cached token, fetching a fresh one when the cache is
// empty or inside the refresh leeway.
func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiry.IsZero() || s.now().Before(s.expiry.Add(-s.leeway))) {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}

	s.token = token
	s.expiry = tokenExpiry(token, s.logger)
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature.
// A token that cannot be parsed is cached without an expiry and reused
// until a caller forces a refresh.
func tokenExpiry(token string, logger *slog.Logger) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debug("token is not a parseable JWT, caching without expiry", "error", err)
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Invalidate drops the cached token so the next Token call re-fetches.
func (s *CachedTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}
