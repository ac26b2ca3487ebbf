package webrtc

import (
	"os"
	"runtime"
	"testing"
	"time"
)

// loopbackEnv describes how patient the loopback tests should be on this host.
type loopbackEnv struct {
	ci    bool
	slack float64
}

func detectLoopbackEnv() loopbackEnv {
	env := loopbackEnv{slack: 1}
	for _, k := range []string{"CI", "GITHUB_ACTIONS", "CONTINUOUS_INTEGRATION"} {
		if os.Getenv(k) == "true" {
			env.ci = true
		}
	}
	if !env.ci {
		return env
	}
	env.slack = 2
	if runtime.GOOS == "windows" {
		env.slack = 3
	}
	if runtime.NumCPU() <= 2 {
		env.slack *= 1.5
	}
	return env
}

// wait scales base by the host slack.
func (e loopbackEnv) wait(base time.Duration) time.Duration {
	return time.Duration(float64(base) * e.slack)
}

// requireNetwork skips tests that open real ICE sessions in -short mode or
// when CI sets SKIP_NETWORK_TESTS.
func (e loopbackEnv) requireNetwork(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping WebRTC loopback test in short mode")
	}
	if e.ci && os.Getenv("SKIP_NETWORK_TESTS") == "true" {
		t.Skip("Skipping network test in CI environment")
	}
}
