package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MySQLDSN  string
	RedisURL  string
	JWTSecret string
	Port      string

	// AI completion settings
	AIProvider string
	OpenAIKey  string
	ClaudeKey  string
	AITimeout  time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	timeoutSec, _ := strconv.Atoi(getenv("AI_TIMEOUT_SECONDS", "30"))
	return Config{
		MySQLDSN:   getenv("MYSQL_DSN", "hackscore:hackscore@tcp(127.0.0.1:3306)/hackscore?parseTime=true"),
		RedisURL:   getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:  getenv("JWT_SECRET", ""),
		Port:       getenv("PORT", "8080"),
		AIProvider: getenv("AI_PROVIDER", "openai"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		ClaudeKey:  os.Getenv("CLAUDE_API_KEY"),
		AITimeout:  time.Duration(timeoutSec) * time.Second,
	}
}
