package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/kvlink/pkg/client"
)

type caseResult struct {
	name    string
	pass    bool
	detail  string
	elapsed time.Duration
}

type scenarioSummary struct {
	run      int
	pass     int
	fail     int
	failures []string
	duration time.Duration
}

type step struct {
	name string
	run  func(ctx context.Context, s *client.Session) (string, error)
}

// scenarioSteps exercises every session operation against a fresh node.
func scenarioSteps() []step {
	steps := make([]step, 0, 12)
	for v := 1; v <= 5; v++ {
		v := v // per-iteration copy; go.mod targets go 1.21 loop semantics
		steps = append(steps, step{
			name: fmt.Sprintf("noop%d", v),
			run: func(ctx context.Context, s *client.Session) (string, error) {
				return "", s.Noop(ctx, v)
			},
		})
	}
	steps = append(steps,
		expectNotFound("get key1 on empty store", "key1"),
		expectPut("put key1", "key1", "value1"),
		expectPut("put key2", "key2", "val2"),
		expectValue("get key1", "key1", "value1"),
		expectValue("get key2", "key2", "val2"),
		step{
			name: "delete key1 not implemented",
			run: func(ctx context.Context, s *client.Session) (string, error) {
				err := s.Delete(ctx, []byte("key1"))
				if errors.Is(err, client.ErrNotImplemented) {
					return "not implemented (as expected)", nil
				}
				return "", fmt.Errorf("expected not implemented, got %v", err)
			},
		},
		expectValue("get key1 after delete", "key1", "value1"),
		expectValue("get key2 after delete", "key2", "val2"),
	)
	return steps
}

func expectNotFound(name, key string) step {
	return step{name: name, run: func(ctx context.Context, s *client.Session) (string, error) {
		v, err := s.Get(ctx, []byte(key))
		switch {
		case errors.Is(err, client.ErrNotFound):
			return "not found (as expected)", nil
		case err != nil:
			return "", err
		default:
			return "", fmt.Errorf("unexpected value=%q", v)
		}
	}}
}

func expectPut(name, key, value string) step {
	return step{name: name, run: func(ctx context.Context, s *client.Session) (string, error) {
		return "", s.Put(ctx, []byte(key), []byte(value))
	}}
}

func expectValue(name, key, want string) step {
	return step{name: name, run: func(ctx context.Context, s *client.Session) (string, error) {
		v, err := s.Get(ctx, []byte(key))
		if err != nil {
			return "", err
		}
		if string(v) != want {
			return "", fmt.Errorf("value=%q want %q", v, want)
		}
		return fmt.Sprintf("value=%s", v), nil
	}}
}

// runScenario starts a session, runs every step, and stops. A failed start
// ends the run early.
func runScenario(ctx context.Context, cfg ctlConfig, out io.Writer) (summary scenarioSummary) {
	begin := time.Now()
	defer func() { summary.duration = time.Since(begin) }()

	var s *client.Session
	record(out, &summary, timed("start", func() (string, error) {
		var err error
		s, err = client.StartWithBackoff(ctx, cfg.Session, client.DefaultBackoffConfig(), cfg.ConnectAttempts)
		if err != nil {
			return "", err
		}
		return "connected to " + s.Addr(), nil
	}))
	if s == nil {
		return summary
	}

	for _, st := range scenarioSteps() {
		record(out, &summary, timed(st.name, func() (string, error) {
			return st.run(ctx, s)
		}))
	}

	record(out, &summary, timed("stop", func() (string, error) {
		if err := s.Stop(); err != nil {
			return "", err
		}
		if s.State() != client.StateClosed {
			return "", fmt.Errorf("state=%s after stop", s.State())
		}
		return "disconnected", nil
	}))
	return summary
}

func timed(name string, fn func() (string, error)) caseResult {
	start := time.Now()
	detail, err := fn()
	res := caseResult{name: name, pass: err == nil, detail: detail, elapsed: time.Since(start)}
	if err != nil {
		res.detail = err.Error()
	}
	return res
}

func record(out io.Writer, summary *scenarioSummary, res caseResult) {
	summary.run++
	prefix := "[PASS]"
	if res.pass {
		summary.pass++
	} else {
		prefix = "[FAIL]"
		summary.fail++
		summary.failures = append(summary.failures, res.name)
	}
	if res.detail != "" {
		fmt.Fprintf(out, "  %s %s (%s): %s\n", prefix, res.name, res.elapsed.Round(time.Microsecond), res.detail)
		return
	}
	fmt.Fprintf(out, "  %s %s (%s)\n", prefix, res.name, res.elapsed.Round(time.Microsecond))
}

func printSummary(out io.Writer, summary scenarioSummary) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary")
	fmt.Fprintf(out, "  Cases:    run=%d pass=%d fail=%d\n", summary.run, summary.pass, summary.fail)
	fmt.Fprintf(out, "  Duration: %s\n", summary.duration.Round(time.Millisecond))
	if len(summary.failures) > 0 {
		fmt.Fprintln(out, "  Failed Cases:")
		for _, name := range summary.failures {
			fmt.Fprintf(out, "    - %s\n", name)
		}
	}
}
