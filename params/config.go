package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type HTTP struct {
	Addr        string
	CORSOrigins []string
}

type Log struct {
	File  string // empty logs to stdout only
	Level string
}

type Symbols struct {
	// File is the shared allow-list, {"valid_stocks": [...]}.
	File     string
	Defaults []string
	// Watch pushes allow-list edits to websocket subscribers.
	Watch bool
}

type Kafka struct {
	// Brokers empty disables the kafka feed entirely.
	Brokers     []string
	OrdersTopic string
	TradesTopic string
	GroupID     string
}

type Journal struct {
	// Dir empty disables the trade journal.
	Dir string
}

// OrderGen drives the engine with random orders (ENABLE_ORDERGEN).
type OrderGen struct {
	Enabled bool
	Mode    string // "default" or "high"
}

type Config struct {
	HTTP     HTTP
	Log      Log
	Symbols  Symbols
	Kafka    Kafka
	Journal  Journal
	OrderGen OrderGen
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Log: Log{
			File:  "data/exchange.log",
			Level: "info",
		},
		Symbols: Symbols{
			File:     "valid_stocks.json",
			Defaults: []string{"XYZ"},
			Watch:    true,
		},
		Kafka: Kafka{
			OrdersTopic: "orders",
			TradesTopic: "trades",
			GroupID:     "exchange",
		},
		Journal: Journal{
			Dir: "data/trades",
		},
		OrderGen: OrderGen{
			Mode: "default",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// .env is optional
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.HTTP.Addr = getEnv("API_ADDR", cfg.HTTP.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.HTTP.CORSOrigins = splitList(origins)
	}

	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.Log.File = v
	}
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.Symbols.File = getEnv("SYMBOLS_FILE", cfg.Symbols.File)
	if defs := os.Getenv("DEFAULT_SYMBOLS"); defs != "" {
		cfg.Symbols.Defaults = splitList(defs)
	}
	if watch := os.Getenv("SYMBOLS_WATCH"); watch != "" {
		if b, err := strconv.ParseBool(watch); err == nil {
			cfg.Symbols.Watch = b
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.OrdersTopic = getEnv("KAFKA_ORDERS_TOPIC", cfg.Kafka.OrdersTopic)
	cfg.Kafka.TradesTopic = getEnv("KAFKA_TRADES_TOPIC", cfg.Kafka.TradesTopic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	if v, ok := os.LookupEnv("TRADE_JOURNAL_DIR"); ok {
		cfg.Journal.Dir = v
	}

	cfg.OrderGen.Enabled = os.Getenv("ENABLE_ORDERGEN") == "true"
	cfg.OrderGen.Mode = getEnv("ORDERGEN_MODE", cfg.OrderGen.Mode)

	return cfg
}

// KafkaEnabled reports whether a broker list was configured.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
