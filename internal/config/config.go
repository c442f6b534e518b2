// Package config loads service configuration from the environment, with
// optional .env autoload for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken     string
	AdminIDs     map[int64]bool
	Timezone     string
	DBPath       string
	SeedPath     string
	SeedOnStart  bool
	SeedWipe     bool
	TickInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first, without overriding already-set variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	adminIDs, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}

	tickInterval := 5 * time.Second
	if raw := strings.TrimSpace(os.Getenv("TICK_INTERVAL")); raw != "" {
		tickInterval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
	}

	return &Config{
		BotToken:     token,
		AdminIDs:     adminIDs,
		Timezone:     envOr("TZ", "Europe/Moscow"),
		DBPath:       envOr("DB_PATH", "bot_data/marathon.db"),
		SeedPath:     envOr("SEED_PATH", "data/challenge_posts.json"),
		SeedOnStart:  envBool("SEED_ON_START", true),
		SeedWipe:     envBool("SEED_WIPE_ON_START", false),
		TickInterval: tickInterval,
	}, nil
}

func parseAdminIDs(raw string) (map[int64]bool, error) {
	out := map[int64]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		out[id] = true
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v != "0" && v != "false" && v != "no"
}
