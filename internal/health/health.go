package health

import (
	"context"
	"errors"
	"time"

	"hush/relay/internal/session"
	"hush/relay/internal/stream"
)

type CheckResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

type Status struct {
	OK        bool          `json:"ok"`
	Service   string        `json:"service"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// CheckAll probes the session store and, when configured, the managed-chat
// provider. An unconfigured provider is skipped, not failed.
func CheckAll(ctx context.Context, store session.Store, provider stream.Client) Status {
	checks := []CheckResult{checkStore(ctx, store)}
	if provider != nil && provider.Enabled() {
		checks = append(checks, checkStream(provider))
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}
	return Status{
		OK:        allOK,
		Service:   "relay",
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkStore(ctx context.Context, store session.Store) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "store"}

	// A miss on a sentinel id proves the store answers; anything else is a
	// real failure (e.g. redis unreachable).
	_, err := store.Get(ctx, "healthcheck")
	result.Latency = time.Since(start).Milliseconds()
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

func checkStream(provider stream.Client) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "stream"}

	// Token signing is local; it verifies the credentials are usable without
	// spending a provider API call.
	if _, err := provider.CreateToken("healthcheck"); err != nil {
		result.Latency = time.Since(start).Milliseconds()
		result.Error = err.Error()
		return result
	}
	result.Latency = time.Since(start).Milliseconds()
	result.OK = true
	return result
}
