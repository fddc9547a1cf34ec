package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	calculatorConfig "github.com/cargofret/billing/internal/calculator/config"
	handlerConfig "github.com/cargofret/billing/internal/handler/config"
	loggerConfig "github.com/cargofret/billing/internal/logger/config"
	serviceConfig "github.com/cargofret/billing/internal/service/config"
	storeConfig "github.com/cargofret/billing/internal/store/config"
)

type Config struct {
	Handler    handlerConfig.Config
	Service    serviceConfig.Config
	Store      storeConfig.Config
	Logger     loggerConfig.Config
	Calculator calculatorConfig.Config
}

func GetConfig() Config {
	// .env не обязателен
	_ = godotenv.Load()

	cfg := Config{
		Calculator: calculatorConfig.Default(),
	}

	flag.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "server address")
	flag.StringVar(&cfg.Store.DBDsn, "d", "", "database dsn")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.Service.NotifyAddr, "n", "", "notification service address")
	flag.Parse()

	if addr, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.Handler.ServerAddr = addr
	}
	if dsn, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.Store.DBDsn = dsn
	}
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Logger.LogLevel = lvl
	}
	if addr, ok := os.LookupEnv("NOTIFY_ADDRESS"); ok {
		cfg.Service.NotifyAddr = addr
	}
	if vat, ok := os.LookupEnv("BILLING_VAT_RATE"); ok {
		if v, err := strconv.ParseFloat(vat, 64); err == nil {
			cfg.Calculator.VATRate = v
		}
	}
	if currency, ok := os.LookupEnv("BILLING_CURRENCY"); ok {
		cfg.Calculator.Currency = currency
	}

	return cfg
}
