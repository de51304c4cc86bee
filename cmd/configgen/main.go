package main

import (
	"flag"
	"log"

	"github.com/danmuck/kvlink/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case "node":
		return "cmd/kvnode/config.toml"
	case "client":
		return "cmd/kvctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "node", "config kind: node|client")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing node config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "node" {
			log.Fatalf("validation supports kind=node only; run kvctl -config to check client configs")
		}
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		cfg, err := config.LoadNodeConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := config.NodeServerConfig(cfg); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
