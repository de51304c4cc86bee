package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/pkg/client"
)

type options struct {
	config   string
	host     string
	port     int
	attempts int
}

func main() {
	opts := parseFlags()
	logs.ConfigureRuntime()

	cfg, err := resolveConfig(opts)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	mode := "scenario"
	if len(args) > 0 {
		mode, args = args[0], args[1:]
	}
	switch mode {
	case "scenario":
		fmt.Printf("Scenario against %s:%d\n", cfg.Session.Host, cfg.Session.Port)
		summary := runScenario(ctx, cfg, os.Stdout)
		printSummary(os.Stdout, summary)
		if summary.fail > 0 {
			os.Exit(1)
		}
	case "get", "put", "noop":
		if err := runOne(ctx, cfg, mode, args); err != nil {
			fatalf("%s: %v", mode, err)
		}
	default:
		fatalf("unknown mode %q (supported: scenario, get, put, noop)", mode)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.config, "config", "", "kvctl config path (optional)")
	flag.StringVar(&opts.host, "host", "", "node host (overrides config)")
	flag.IntVar(&opts.port, "port", 0, "node port (overrides config, 0 keeps default)")
	flag.IntVar(&opts.attempts, "attempts", 0, "connect attempts with backoff (overrides config)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: kvctl [flags] [scenario | get KEY | put KEY VALUE | noop 1-5]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opts
}

func resolveConfig(opts options) (ctlConfig, error) {
	cfg := defaultCtlConfig()
	if strings.TrimSpace(opts.config) != "" {
		loaded, err := loadCtlConfig(opts.config)
		if err != nil {
			return ctlConfig{}, err
		}
		cfg = loaded
	}
	if opts.host != "" {
		cfg.Session.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Session.Port = opts.port
	}
	if opts.attempts != 0 {
		cfg.ConnectAttempts = opts.attempts
	}
	return cfg, nil
}

func runOne(ctx context.Context, cfg ctlConfig, mode string, args []string) error {
	s, err := client.StartWithBackoff(ctx, cfg.Session, client.DefaultBackoffConfig(), cfg.ConnectAttempts)
	if err != nil {
		return err
	}
	defer s.Stop()

	switch mode {
	case "get":
		if len(args) != 1 {
			return errors.New("usage: get KEY")
		}
		v, err := s.Get(ctx, []byte(args[0]))
		if errors.Is(err, client.ErrNotFound) {
			fmt.Printf("%s: not found\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", v)
	case "put":
		if len(args) != 2 {
			return errors.New("usage: put KEY VALUE")
		}
		if err := s.Put(ctx, []byte(args[0]), []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("ok")
	case "noop":
		if len(args) != 1 {
			return errors.New("usage: noop 1-5")
		}
		variant, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parse variant: %w", err)
		}
		if err := s.Noop(ctx, variant); err != nil {
			return err
		}
		fmt.Println("ok")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "kvctl: "+format+"\n", args...)
	os.Exit(1)
}
