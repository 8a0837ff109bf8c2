package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"apotekku/backend/internal/domain"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CartTTLMinutes        int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	CancellableStatuses   map[domain.OrderStatus]bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cartTTL, err := strconv.Atoi(getEnv("CART_TTL_MINUTES", "120"))
	if err != nil || cartTTL < 1 {
		cartTTL = 120
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CartTTLMinutes:        cartTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		CancellableStatuses:   parseCancellableStatuses(os.Getenv("CANCELLABLE_STATUSES")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// parseCancellableStatuses reads a comma-separated list of order statuses
// that staff may cancel. Unknown entries are ignored; an empty or fully
// invalid value falls back to pending-only, the safest policy since no
// stock has moved yet at that point.
func parseCancellableStatuses(raw string) map[domain.OrderStatus]bool {
	result := make(map[domain.OrderStatus]bool)
	for _, part := range strings.Split(raw, ",") {
		status, valid := domain.ParseOrderStatus(strings.TrimSpace(part))
		if !valid || status.Terminal() {
			continue
		}
		result[status] = true
	}
	if len(result) == 0 {
		result[domain.StatusPendingPayment] = true
	}
	return result
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
