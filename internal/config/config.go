package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "CHATRELAY"

type Config struct {
	Server    Server    `yaml:"server"`
	Slack     Slack     `yaml:"slack"`
	MagicLink MagicLink `yaml:"magicLink"`
	Mapping   Mapping   `yaml:"mapping"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr" envconfig:"LISTEN_ADDR"`
	PostgresDsn   string `yaml:"postgresDsn" envconfig:"POSTGRES_DSN"`
	RedisAddr     string `yaml:"redisAddr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redisPassword" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redisDB" envconfig:"REDIS_DB"`
	MemcachedAddr string `yaml:"memcachedAddr" envconfig:"MEMCACHED_ADDR"`
	EnableTrace   bool   `yaml:"enableTrace" envconfig:"ENABLE_TRACE"`
	TraceEndpoint string `yaml:"traceEndpoint" envconfig:"TRACE_ENDPOINT"`
	AdminToken    string `yaml:"adminToken" envconfig:"ADMIN_TOKEN"`
}

type Slack struct {
	BotToken      string `yaml:"botToken" envconfig:"BOT_TOKEN"`
	SigningSecret string `yaml:"signingSecret" envconfig:"SIGNING_SECRET"`
	AdminChannel  string `yaml:"adminChannel" envconfig:"ADMIN_CHANNEL"`
	APIURL        string `yaml:"apiURL" envconfig:"API_URL"`
}

type MagicLink struct {
	SecretKey string `yaml:"secretKey" envconfig:"SECRET_KEY"`
	TestMode  bool   `yaml:"testMode" envconfig:"TEST_MODE"`
	APIURL    string `yaml:"apiURL" envconfig:"API_URL"`
}

type Mapping struct {
	SheetURL string `yaml:"sheetURL" envconfig:"SHEET_URL"`
}

func defaults() Config {
	return Config{
		Server: Server{
			ListenAddr: ":8000",
			RedisAddr:  "localhost:6379",
		},
	}
}

// Load reads the yaml file at path (a missing file is allowed), then applies
// .env and CHATRELAY_* environment overrides.
func Load(path string) (Config, error) {
	config := defaults()

	if path != "" {
		file, err := os.Open(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
		if err == nil {
			defer file.Close()
			err = yaml.NewDecoder(file).Decode(&config)
			if err != nil {
				return Config{}, errors.Wrap(err, "failed to decode config")
			}
		}
	}

	_ = godotenv.Load()

	sections := map[string]any{
		envPrefix + "_SERVER":     &config.Server,
		envPrefix + "_SLACK":      &config.Slack,
		envPrefix + "_MAGIC_LINK": &config.MagicLink,
		envPrefix + "_MAPPING":    &config.Mapping,
	}
	for prefix, section := range sections {
		if err := envconfig.Process(prefix, section); err != nil {
			return Config{}, errors.Wrapf(err, "invalid %s environment", prefix)
		}
	}

	return config, nil
}

// Validate reports missing settings required to serve.
func (c Config) Validate() error {
	if c.Slack.BotToken == "" {
		return errors.New("slack.botToken is required")
	}
	if c.Slack.AdminChannel == "" {
		return errors.New("slack.adminChannel is required")
	}
	if c.Server.PostgresDsn == "" {
		return errors.New("server.postgresDsn is required")
	}
	if c.Mapping.SheetURL == "" {
		return errors.New("mapping.sheetURL is required")
	}
	return nil
}
