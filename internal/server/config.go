package server

import (
	"time"

	"github.com/victornm/merryquiz/internal/store/postgres"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type RedisConfig struct {
	Addrs  []string `mapstructure:"addrs"`
	Pass   string   `mapstructure:"pass"`
	Prefix string   `mapstructure:"prefix"`
}

type Config struct {
	HTTP struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"http"`

	GRPC struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"grpc"`

	Backend struct {
		// Driver is postgres or memory.
		Driver string `mapstructure:"driver"`
		// SeedFile is loaded into the memory backend at start up.
		SeedFile string `mapstructure:"seed_file"`
	} `mapstructure:"backend"`

	Postgres postgres.Config `mapstructure:"postgres"`

	Redis struct {
		// Embedded runs an in-process Redis for both clients. For local play only.
		Embedded bool        `mapstructure:"embedded"`
		Cache    RedisConfig `mapstructure:"cache"`
		Pubsub   RedisConfig `mapstructure:"pubsub"`
	} `mapstructure:"redis"`

	Quiz struct {
		SessionTTL       time.Duration `mapstructure:"session_ttl"`
		QuestionCacheTTL time.Duration `mapstructure:"question_cache_ttl"`
	} `mapstructure:"quiz"`

	Score struct {
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"score"`

	Auth struct {
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Home struct {
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"home"`

	Leaderboard struct {
		CacheTTL        time.Duration `mapstructure:"cache_ttl"`
		PublishInterval time.Duration `mapstructure:"publish_interval"`
	} `mapstructure:"leaderboard"`
}

// DefaultConfig is the configuration before any file or environment is applied.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Backend.Driver = DriverPostgres
	c.Postgres = postgres.Config{Addr: "localhost:5432", User: "quiz", Name: "quizdb", Params: "sslmode=disable"}
	c.Redis.Cache = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "merryquiz"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "merryquiz:pubsub"}
	c.Quiz.SessionTTL = 30 * time.Minute
	c.Quiz.QuestionCacheTTL = 5 * time.Minute
	c.Score.WriteTimeout = 10 * time.Second
	c.Auth.TokenTTL = 7 * 24 * time.Hour
	c.Home.CacheTTL = time.Minute
	c.Leaderboard.CacheTTL = 30 * time.Second
	c.Leaderboard.PublishInterval = 200 * time.Millisecond
	return c
}
