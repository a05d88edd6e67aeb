package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		BatchSize int    `yaml:"batch_size"`
		TTL       string `yaml:"ttl"`
	} `yaml:"questions"`
	Game struct {
		QuestionSeconds int `yaml:"question_seconds"`
	} `yaml:"game"`
	WebSocket struct {
		WriteTimeout   string `yaml:"write_timeout"`
		PongWait       string `yaml:"pong_wait"`
		MaxMessageSize int64  `yaml:"max_message_size"`
	} `yaml:"websocket"`
	Client struct {
		ServerURL      string `yaml:"server_url"`
		ConnectTimeout string `yaml:"connect_timeout"`
		PeerInterval   string `yaml:"peer_interval"`
		AnswerDelay    string `yaml:"answer_delay"`
	} `yaml:"client"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Tasks struct {
		Limit   int    `yaml:"limit"`
		Timeout string `yaml:"timeout"`
	} `yaml:"tasks"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Redis.TTL = "10m"
	cfg.Questions.BatchSize = 10
	cfg.Questions.TTL = "10m"
	cfg.Game.QuestionSeconds = 20
	cfg.WebSocket.WriteTimeout = "10s"
	cfg.WebSocket.PongWait = "60s"
	cfg.WebSocket.MaxMessageSize = 4096
	cfg.Client.ServerURL = "ws://localhost:8080/ws"
	cfg.Client.ConnectTimeout = "3s"
	cfg.Client.PeerInterval = "1s"
	cfg.Client.AnswerDelay = "1s"
	cfg.NATS.Subject = "trivia.events"
	cfg.Log.Level = "info"
	cfg.Tasks.Limit = 64
	cfg.Tasks.Timeout = "5s"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not an error:
// found reports whether the file existed.
func Load(path string) (cfg Config, found bool, err error) {
	cfg = Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, err
	}
	return cfg, true, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
