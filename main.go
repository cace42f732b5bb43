package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"receivables/cmd"
	"receivables/internal/config"
	"receivables/internal/logger"
)

func main() {
	envErr := godotenv.Load()

	// Commands reload and report configuration errors themselves; here it only drives logging.
	logCfg := logger.DefaultConfig()
	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		logCfg = cfg.GetLoggerConfig()
	}

	if err := logger.Setup(logCfg); err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		logger.Error(err, "Invalid logging configuration, using defaults")
	}

	if envErr != nil {
		logger.Debug("No .env file loaded, using process environment")
	}
	if cfgErr != nil {
		logger.Warn("Could not load configuration: " + cfgErr.Error())
	}

	logger.Info("Starting Receivables CLI")

	cmd.Execute()

	logger.Debug("Receivables CLI shutdown")
	os.Exit(0)
}
