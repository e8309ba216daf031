package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
// Планировщик и адаптеры получают свои куски через конструкторы,
// переменные окружения в рабочем коде не читаются.
type Config struct {
	DatabaseURL  string
	ServerPort   int
	JWTSecretKey string

	AdminUsername     string
	AdminPasswordHash string

	Challonge ChallongeConfig
	Discord   DiscordConfig
	Scheduler SchedulerConfig
	R2        R2Config
}

type ChallongeConfig struct {
	APIKey       string
	TournamentID string
}

type DiscordConfig struct {
	BotToken          string
	GuildID           string
	AnnounceChannelID string
	ResultCategoryID  string
	StaffRoleID       string
}

type SchedulerConfig struct {
	Interval       time.Duration
	AnnounceLead   time.Duration
	AnnounceWindow time.Duration
	Timezone       string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	interval, err := durationEnv("SCHEDULER_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	announceLead, err := durationEnv("ANNOUNCE_LEAD", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	announceWindow, err := durationEnv("ANNOUNCE_WINDOW", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		ServerPort:        port,
		JWTSecretKey:      jwtKey,
		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		Challonge: ChallongeConfig{
			APIKey:       os.Getenv("CHALLONGE_API_KEY"),
			TournamentID: os.Getenv("CHALLONGE_TOURNAMENT_ID"),
		},
		Discord: DiscordConfig{
			BotToken:          os.Getenv("DISCORD_BOT_TOKEN"),
			GuildID:           os.Getenv("GUILD_ID"),
			AnnounceChannelID: os.Getenv("MATCH_ANNOUNCE_CHANNEL_ID"),
			ResultCategoryID:  os.Getenv("RESULT_CATEGORY_ID"),
			StaffRoleID:       os.Getenv("STAFF_ROLE_ID"),
		},
		Scheduler: SchedulerConfig{
			Interval:       interval,
			AnnounceLead:   announceLead,
			AnnounceWindow: announceWindow,
			Timezone:       envOrDefault("ANNOUNCE_TIMEZONE", "Asia/Bangkok"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	if cfg.Challonge.APIKey == "" || cfg.Challonge.TournamentID == "" {
		return nil, fmt.Errorf("CHALLONGE_API_KEY and CHALLONGE_TOURNAMENT_ID environment variables are required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
