package main

import (
	"log"

	"github.com/cargofret/billing/internal/config"
	"github.com/cargofret/billing/internal/handler"
	"github.com/cargofret/billing/internal/logger"
	"github.com/cargofret/billing/internal/service"
	"github.com/cargofret/billing/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}

	service := service.NewService(cfg.Service, cfg.Calculator, store, zaplog)

	return handler.Serve(cfg.Handler, service, zaplog)
}
