package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/recordapi/internal/server"
	"github.com/dmitrijs2005/recordapi/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := server.NewLogger(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, err.Error())
		app.Close()
		os.Exit(1)
	}
}
