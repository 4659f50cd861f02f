package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"` // empty: in-memory corpus
	RiotAPIKey  string `env:"RIOT_API_KEY"`

	RealtimeRate    int           `env:"REALTIME_RATE" envDefault:"8"`
	BackgroundRate  int           `env:"BACKGROUND_RATE" envDefault:"2"`
	RateWindow      time.Duration `env:"RATE_WINDOW" envDefault:"10s"`
	BackgroundCrawl bool          `env:"BACKGROUND_CRAWL" envDefault:"false"`
	SummonersGoal   int64         `env:"SUMMONERS_GOAL" envDefault:"0"`

	NumRounds         int           `env:"NUM_ROUNDS" envDefault:"10"`
	RoundSeconds      int           `env:"ROUND_SECONDS" envDefault:"15"`
	PollTimeout       time.Duration `env:"POLL_TIMEOUT" envDefault:"15s"`
	IdleWindow        time.Duration `env:"IDLE_WINDOW" envDefault:"60s"`
	IdleCheckInterval time.Duration `env:"IDLE_CHECK_INTERVAL" envDefault:"30s"`
	Intermission      time.Duration `env:"INTERMISSION" envDefault:"3s"`
	CloseDelay        time.Duration `env:"CLOSE_DELAY" envDefault:"10s"`

	SamplerBatch     int `env:"SAMPLER_BATCH" envDefault:"8"`
	SamplerMaxMisses int `env:"SAMPLER_MAX_MISSES" envDefault:"5"`

	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	ProfileIconURL string `env:"PROFILE_ICON_URL" envDefault:"http://ddragon.leagueoflegends.com/cdn/6.8.1/img/profileicon/"`
	ChampionImgURL string `env:"CHAMPION_IMG_URL" envDefault:"http://ddragon.leagueoflegends.com/cdn/6.8.1/img/champion/"`
}

// Load reads an optional .env file and then parses the process environment.
func Load(files ...string) (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RealtimeRate <= 0 || c.BackgroundRate <= 0 {
		return fmt.Errorf("rates must be positive (realtime=%d, background=%d)", c.RealtimeRate, c.BackgroundRate)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive, got %v", c.RateWindow)
	}
	if c.NumRounds <= 0 || c.RoundSeconds <= 0 {
		return fmt.Errorf("rounds must be positive (rounds=%d, seconds=%d)", c.NumRounds, c.RoundSeconds)
	}
	if c.SamplerBatch <= 0 {
		return fmt.Errorf("sampler batch must be positive, got %d", c.SamplerBatch)
	}
	return nil
}
