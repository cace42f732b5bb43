package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"receivables/internal/logger"
)

type Config struct {
	// Google Sheets Configuration
	GoogleSheetURL      string
	GoogleSpreadsheetID string
	OutputSheetName     string

	// Credentials Configuration
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Ledger Configuration
	LedgerDayFirst bool

	// Engine Configuration
	ReportTimezone string
	EngineWorkers  int

	// Optional export targets
	ExportCSVPath     string
	ExportParquetPath string
	ExportSQLitePath  string

	// Optional run notification
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Optional Prometheus textfile collector output
	MetricsTextfile string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
	LogFile       string
}

func Load() (*Config, error) {
	config := &Config{
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		OutputSheetName:       getEnv("OUTPUT_SHEET_NAME", "Consolidacion"),
		GoogleCredentialsJSON: firstEnv("GOOGLE_CREDENTIALS_JSON", "GOOGLE_CREDENTIALS"),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", getEnv("GOOGLE_CREDENTIALS_FILE", "credentials/credentials.json")),
		LedgerDayFirst:        getEnvBool("LEDGER_DAY_FIRST", false),
		ReportTimezone:        getEnv("REPORT_TIMEZONE", "Local"),
		EngineWorkers:         getEnvInt("ENGINE_WORKERS", runtime.NumCPU()),
		ExportCSVPath:         getEnv("EXPORT_CSV_PATH", ""),
		ExportParquetPath:     getEnv("EXPORT_PARQUET_PATH", ""),
		ExportSQLitePath:      getEnv("EXPORT_SQLITE_PATH", ""),
		AMQPURL:               getEnv("AMQP_URL", ""),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "receivables"),
		AMQPRoutingKey:        getEnv("AMQP_ROUTING_KEY", "consolidation.completed"),
		MetricsTextfile:       getEnv("METRICS_TEXTFILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks settings that do not depend on the selected command.
// Source-specific requirements (spreadsheet, credentials) are checked by the
// command that needs them.
func (c *Config) Validate() error {
	var problems []string

	if c.EngineWorkers < 1 {
		problems = append(problems, fmt.Sprintf("invalid ENGINE_WORKERS %d: must be at least 1", c.EngineWorkers))
	} else if c.EngineWorkers > 256 {
		problems = append(problems, fmt.Sprintf("invalid ENGINE_WORKERS %d: must be at most 256", c.EngineWorkers))
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("invalid REPORT_TIMEZONE %q: %v", c.ReportTimezone, err))
	}

	if strings.TrimSpace(c.OutputSheetName) == "" {
		problems = append(problems, "OUTPUT_SHEET_NAME cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// SpreadsheetRef returns the configured spreadsheet URL, or the bare ID when no URL is set.
func (c *Config) SpreadsheetRef() string {
	if c.GoogleSheetURL != "" {
		return c.GoogleSheetURL
	}
	return c.GoogleSpreadsheetID
}

// Location resolves ReportTimezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.ReportTimezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.ReportTimezone)
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.TimeFormat = c.LogTimeFormat
	cfg.Output = c.LogOutput
	cfg.File = c.LogFile
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
