package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                string
	AllowedOrigin       string
	BackendURL          string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SnapshotTTLMinutes  int
	LowStockLimit       int
	NotificationFeedCap int
	ScannerDevice       string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	snapshotTTL, err := strconv.Atoi(getEnv("CATALOG_SNAPSHOT_TTL_MINUTES", "1440"))
	if err != nil || snapshotTTL < 1 {
		snapshotTTL = 1440
	}
	lowStock, err := strconv.Atoi(getEnv("LOW_STOCK_LIMIT", "5"))
	if err != nil || lowStock < 0 {
		lowStock = 5
	}
	feedCap, err := strconv.Atoi(getEnv("NOTIFICATION_FEED_CAP", "100"))
	if err != nil || feedCap < 1 {
		feedCap = 100
	}

	cfg := Config{
		Port:                getEnv("PORT", "7070"),
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		BackendURL:          strings.TrimSpace(getEnv("BACKEND_URL", "http://127.0.0.1:5000/api")),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		SnapshotTTLMinutes:  snapshotTTL,
		LowStockLimit:       lowStock,
		NotificationFeedCap: feedCap,
		ScannerDevice:       strings.TrimSpace(os.Getenv("SCANNER_DEVICE")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf("127.0.0.1:%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
