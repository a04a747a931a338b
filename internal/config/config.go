package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	WebSocketOrigin   string
	SeedFile          string
	TickInterval      time.Duration
	BroadcastInterval time.Duration
	TradeTimeout      time.Duration
	OpeningBalance    string
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	// DB_DSN is optional: without it the engine runs in memory only.
	c.DBDSN = os.Getenv("DB_DSN")
	c.SeedFile = os.Getenv("SEED_FILE")

	var err error
	if c.TickInterval, err = durationEnv("TICK_INTERVAL", 3*time.Second); err != nil {
		return c, err
	}
	if c.BroadcastInterval, err = durationEnv("BROADCAST_INTERVAL", 3*time.Second); err != nil {
		return c, err
	}
	if c.TradeTimeout, err = durationEnv("TRADE_TIMEOUT", 5*time.Second); err != nil {
		return c, err
	}
	c.OpeningBalance = os.Getenv("OPENING_BALANCE")
	if c.OpeningBalance == "" {
		c.OpeningBalance = "100000"
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + err.Error())
	}
	if d <= 0 {
		return 0, errors.New(name + " must be positive")
	}
	return d, nil
}
