package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env          string      `yaml:"env" env:"ENV" env-default:"local"`
	MediaPath    string      `yaml:"media_path" env:"MEDIA_PATH" env-default:"data/media"`
	SettingsPath string      `yaml:"settings_path" env:"CONFIG_FILE" env-default:"config/config.json"`
	APIToken     string      `yaml:"api_token" env:"API_TOKEN"`
	Database     Database    `yaml:"database"`
	Backup       Backup      `yaml:"backup"`
	IGDB         IGDB        `yaml:"igdb"`
	SteamGridDB  SteamGridDB `yaml:"steamgriddb"`
	HTTPServer   HTTPServer  `yaml:"http_server"`
	Scraper      Scraper     `yaml:"scraper"`
	Events       Events      `yaml:"events"`
	Scheduler    Scheduler   `yaml:"scheduler"`
}

type Database struct {
	Path string `yaml:"path" env:"DATABASE_PATH" env-default:"data/games.db"`
}

type Backup struct {
	Path string `yaml:"path" env:"BACKUP_PATH" env-default:"data/backups"`
	Keep int    `yaml:"keep" env:"BACKUP_KEEP" env-default:"10"`
}

type IGDB struct {
	ClientID     string `yaml:"client_id" env:"IGDB_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"IGDB_CLIENT_SECRET"`
}

type SteamGridDB struct {
	APIKey string `yaml:"api_key" env:"STEAMGRIDDB_API_KEY"`
}

type HTTPServer struct {
	Address       string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"0.0.0.0:5001"`
	Timeout       time.Duration `yaml:"timeout" env-default:"60s"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env-default:"120s"`
	Cors          []string      `yaml:"cors" env:"CORS_ORIGINS" env-default:"*"`
	ScanRateLimit int           `yaml:"scan_rate_limit" env-default:"30"`
}

type Scraper struct {
	Timeout   time.Duration `yaml:"timeout" env-default:"30s"`
	Workers   int           `yaml:"workers" env-default:"4"`
	Delay     time.Duration `yaml:"delay" env-default:"2s"`
	UserAgent string        `yaml:"user_agent" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
}

type Events struct {
	NATSURL string `yaml:"nats_url" env:"NATS_URL"`
	Token   string `yaml:"token" env:"NATS_TOKEN"`
}

type Scheduler struct {
	Interval time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"1h"`
}

// Load reads path when given and always applies the environment on top.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: config file %s: %w", op, path, err)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config yaml file")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}
