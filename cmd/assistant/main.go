package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"assistant/internal/app"
	"assistant/internal/config"
	"assistant/internal/logger"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/assistant/config.yaml if not provided)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: assistant [--config=config.yaml] [serve|chat]")
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := "serve"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	switch mode {
	case "serve":
		l, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer l.Sync() //nolint:errcheck

		if err := app.Serve(cfg, l); err != nil {
			l.Fatal("Application failed", zap.Error(err))
		}
	case "chat":
		l, err := logger.ToFile(cfg.Logging.File, cfg.Logging.Level)
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer l.Sync() //nolint:errcheck

		if err := app.Chat(cfg, l); err != nil {
			l.Error("Chat failed", zap.Error(err))
			log.Fatal(err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
