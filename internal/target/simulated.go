package target

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/jo-hoe/mcpipeline/internal/mcp"
)

// Simulated is a stand-in sink. It verifies the data file exists, sleeps for
// a small random duration to model external call latency, then succeeds. The
// delay is not cancellable; it always runs to completion.
type Simulated struct {
	Log      *slog.Logger
	MinDelay time.Duration
	MaxDelay time.Duration
}

func NewSimulated(logger *slog.Logger, minDelay, maxDelay time.Duration) *Simulated {
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Simulated{Log: logger, MinDelay: minDelay, MaxDelay: maxDelay}
}

// Ensure Simulated implements Loader
var _ Loader = (*Simulated)(nil)

func (s *Simulated) Load(_ context.Context, dataPath string, d mcp.Directives) (bool, string) {
	if _, err := os.Stat(dataPath); err != nil {
		return false, fmt.Sprintf("data file not found at %s", dataPath)
	}

	delay := s.MinDelay
	if s.MaxDelay > s.MinDelay {
		delay += time.Duration(rand.Int63n(int64(s.MaxDelay - s.MinDelay))) // #nosec G404 - latency jitter, not security
	}
	s.Log.Info("simulating load operation",
		"target_type", d.LoadTargetType,
		"target_destination", d.LoadTargetDestination,
		"delay", delay)
	time.Sleep(delay)

	return true, ""
}
