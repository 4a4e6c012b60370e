package orchestrator

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify the scatter-gather fan-out in
// scatterDecode does not leak goroutines across test runs.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
