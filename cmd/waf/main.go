// Command waf runs the inline reverse-proxy web application firewall.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/config"
	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/server"
)

const defaultConfigPath = "waf_config.json"

func main() {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	} else if envPath := os.Getenv("WAF_CONFIG"); envPath != "" {
		configPath = envPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	w := server.Build(cfg, configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		log.Fatalln("Error running WAF:", err)
	}
}
