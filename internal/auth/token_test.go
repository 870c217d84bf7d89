package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func countingFetch(tokens ...string) (FetchFunc, *int) {
	calls := new(int)
	return func(ctx context.Context) (string, error) {
		i := *calls
		*calls++
		if i >= len(tokens) {
			i = len(tokens) - 1
		}
		return tokens[i], nil
	}, calls
}

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider("fixed")
	got, err := p.Token(context.Background())
	if err != nil || got != "fixed" {
		t.Fatalf("Token() = %q, %v", got, err)
	}
}

func TestCachedTokenSourceCachesUntilLeeway(t *testing.T) {
	now := time.Now()
	fresh := mintToken(t, now.Add(time.Hour))
	fetch, calls := countingFetch(fresh)

	s := NewCachedTokenSource(fetch, DefaultRefreshLeeway, testLogger())
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := s.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if got != fresh {
			t.Fatalf("Token = %q, want the minted token", got)
		}
	}
	if *calls != 1 {
		t.Fatalf("fetch ran %d times, want 1", *calls)
	}
}

func TestCachedTokenSourceRefreshesInsideLeeway(t *testing.T) {
	now := time.Now()
	first := mintToken(t, now.Add(time.Minute))
	second := mintToken(t, now.Add(2*time.Hour))
	fetch, calls := countingFetch(first, second)

	s := NewCachedTokenSource(fetch, 30*time.Second, testLogger())
	s.now = func() time.Time { return now }

	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	// Jump to 20s before expiry, inside the 30s leeway.
	s.now = func() time.Time { return now.Add(40 * time.Second) }
	got, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != second {
		t.Fatal("stale token served inside the refresh leeway")
	}
	if *calls != 2 {
		t.Fatalf("fetch ran %d times, want 2", *calls)
	}
}

func TestCachedTokenSourceOpaqueTokenNeverExpires(t *testing.T) {
	fetch, calls := countingFetch("not-a-jwt")

	s := NewCachedTokenSource(fetch, 0, testLogger())
	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("opaque token re-fetched: %d calls", *calls)
	}
}

func TestCachedTokenSourceInvalidate(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(time.Hour))
	fetch, calls := countingFetch(fresh)

	s := NewCachedTokenSource(fetch, 0, testLogger())
	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	s.Invalidate()
	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if *calls != 2 {
		t.Fatalf("Invalidate did not force a re-fetch: %d calls", *calls)
	}
}

func TestCachedTokenSourceFetchError(t *testing.T) {
	boom := errors.New("identity provider unavailable")
	s := NewCachedTokenSource(func(ctx context.Context) (string, error) {
		return "", boom
	}, 0, testLogger())

	_, err := s.Token(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
