package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	logs "github.com/danmuck/kvlink/internal/logging"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// StartWithBackoff retries StartWithConfig while the node refuses or times
// out, up to maxAttempts (<= 0 means until ctx ends). Resolution failures and
// other errors are returned immediately. Operations on the returned session
// are never retried.
func StartWithBackoff(ctx context.Context, cfg Config, backoff BackoffConfig, maxAttempts int) (*Session, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; ; attempt++ {
		s, err := StartWithConfig(ctx, cfg)
		if err == nil {
			return s, nil
		}
		if !retryableConnect(err) || (maxAttempts > 0 && attempt >= maxAttempts) {
			return nil, err
		}
		delay := NextBackoffDelay(backoff, attempt, rng)
		logs.Warnf("client.StartWithBackoff attempt=%d retry_in=%s err=%v", attempt, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryableConnect(err error) bool {
	return IsConnectKind(err, ConnectRefused) || IsConnectKind(err, ConnectTimeout)
}
