package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/kvlink/internal/config"
	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/internal/node"
	"github.com/danmuck/kvlink/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/kvnode/config.toml", "node config path")
	flag.Parse()

	logs.ConfigureRuntime()
	observability.InitLogger("kvnode")

	cfg, err := config.LoadNodeConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load node config")
	}
	log.Info().Str("path", *configPath).Msg("loaded node config")

	srvCfg, err := config.NodeServerConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid node config")
	}
	srv, err := node.NewServer(srvCfg, node.NewStore())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create node")
	}
	ln, err := srv.Listen()
	if err != nil {
		log.Fatal().Err(err).Str("addr", srvCfg.ListenAddr).Msg("failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ServeAdmin(ctx, srvCfg.AdminAddr) }()
	go func() { errCh <- srv.Serve(ctx, ln) }()

	log.Info().
		Str("id", srvCfg.ID).
		Str("addr", ln.Addr().String()).
		Str("admin", srvCfg.AdminAddr).
		Bool("tls", srvCfg.TLS != nil).
		Msg("node started")

	for pending := 2; pending > 0; pending-- {
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("node listener failed")
		}
		stop()
	}
	log.Info().Str("id", srvCfg.ID).Msg("node stopped")
}
