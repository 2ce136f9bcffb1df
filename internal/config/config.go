package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv                   string
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	DBMigrate                bool
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	PlanConditionsTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	PlatformBaseURL          string
	PlatformToken            string
	PlatformTimeoutSeconds   int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	migrateDB, err := strconv.ParseBool(getEnv("DB_MIGRATE", "true"))
	if err != nil {
		migrateDB = true
	}

	cfg := Config{
		AppEnv:                   strings.ToLower(getEnv("APP_ENV", "development")),
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		DBMigrate:                migrateDB,
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		PlanConditionsTTLSeconds: positiveInt("PLAN_CONDITIONS_TTL_SECONDS", 300),
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		PlatformBaseURL:          strings.TrimSpace(os.Getenv("PLATFORM_BASE_URL")),
		PlatformToken:            strings.TrimSpace(os.Getenv("PLATFORM_TOKEN")),
		PlatformTimeoutSeconds:   positiveInt("PLATFORM_TIMEOUT_SECONDS", 15),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Production() bool {
	return c.AppEnv == "production"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
