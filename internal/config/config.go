package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`
	LLM struct {
		// Provider is "openai" or "canned". canned serves fixed questions for local runs.
		Provider    string  `yaml:"provider"`
		APIKey      string  `yaml:"api_key"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Timeout     string  `yaml:"timeout"`
		Parallelism int     `yaml:"parallelism"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"llm"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Game struct {
		Categories     []string `yaml:"categories"`
		FuzzyThreshold float64  `yaml:"fuzzy_threshold"`
		Tower          struct {
			Categories        []string `yaml:"categories"`
			QuestionsPerFloor int      `yaml:"questions_per_floor"`
			PassRatio         float64  `yaml:"pass_ratio"`
		} `yaml:"tower"`
		Daily struct {
			Count      int    `yaml:"count"`
			Difficulty string `yaml:"difficulty"`
		} `yaml:"daily"`
	} `yaml:"game"`
	Log struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
	TTL struct {
		State          string `yaml:"state"`
		AnswerKey      string `yaml:"answer_key"`
		Evaluation     string `yaml:"evaluation"`
		ChallengeCache string `yaml:"challenge_cache"`
		Daily          string `yaml:"daily"`
		PlayClaim      string `yaml:"play_claim"`
	} `yaml:"ttl"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults plus the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.LLM.APIKey, "LLM_API_KEY")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.RabbitMQ.URL, "RABBITMQ_URL")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
