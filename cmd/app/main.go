package main

import (
	"flag"
	"log"
	"os"

	"DataPull/internal/di"
	"DataPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s catalog=%s coinmetrics=%t ccxt=%t warehouse=%t",
		cfg.Environment, cfg.Catalog.Backend,
		cfg.Vendors.CoinMetrics.Enabled, cfg.Vendors.CCXT.Enabled, cfg.Vendors.Warehouse.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
