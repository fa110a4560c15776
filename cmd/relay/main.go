package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/megarelay/internal/app"
	"github.com/dmitrijs2005/megarelay/internal/config"
	"github.com/dmitrijs2005/megarelay/internal/logging"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.MasterPassword == "" {
		pw, err := app.PromptMasterPassword(os.Stderr)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg.MasterPassword = pw
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	a, err := app.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		os.Exit(1)
	}
}
