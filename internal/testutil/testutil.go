// Package testutil provides database, Redis and fixture helpers for caption pipeline tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// TestingTB is the subset of testing.TB the helpers need; *testing.T and *testing.B both satisfy it.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// RunConcurrent runs fns concurrently and returns their errors in call order.
func RunConcurrent(fns ...func() error) []error {
	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(fns))
	for i, fn := range fns {
		go func() {
			results <- result{idx: i, err: fn()}
		}()
	}
	errs := make([]error, len(fns))
	for range fns {
		r := <-results
		errs[r.idx] = r.err
	}
	return errs
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// uniqueName returns prefix followed by 8 random hex characters.
func uniqueName(prefix string) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
	}
	return prefix + hex.EncodeToString(b)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// skipInShort skips tests that need external infrastructure under -short.
func skipInShort(t TestingTB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping infrastructure test in short mode")
	}
}

// skipOrFail skips unless the named requirement env var (or TEST_REQUIRE_INFRA) is set.
func skipOrFail(t TestingTB, requireEnv string, args ...any) {
	t.Helper()
	if envBool(requireEnv) || envBool("TEST_REQUIRE_INFRA") {
		t.Fatal(args...)
	}
	t.Skip(args...)
}

func closeAndLog(t TestingTB, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		t.Logf("warning: failed to close %s: %v", name, err)
	}
}
