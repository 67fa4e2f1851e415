package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

type GRPC struct {
	Addr string `yaml:"addr" validate:"required"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // realtime-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

// Postgres необязателен: без DSN сервис работает без реестра ролей
// пользователей, квитанций и LISTEN.
type Postgres struct {
	DSN           string        `yaml:"dsn"`
	MaxConns      int32         `yaml:"maxConns"`
	MinConns      int32         `yaml:"minConns"`
	MaxConnIdle   time.Duration `yaml:"maxConnIdle"`
	NotifyChannel string        `yaml:"notifyChannel"`
}

type WS struct {
	PingEvery      time.Duration `yaml:"pingEvery"`
	WriteWait      time.Duration `yaml:"writeWait"`
	ReadLimit      int64         `yaml:"readLimit"`
	SendQueue      int           `yaml:"sendQueue"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type Typing struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Roles struct {
	Source string `yaml:"source" validate:"omitempty,oneof=file postgres"`
	File   string `yaml:"file"`
}

type Session struct {
	CookieName    string        `yaml:"cookieName"`
	PublicKeyPath string        `yaml:"publicKeyPath" validate:"required"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Internal struct {
	Token string `yaml:"token"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	WS       WS       `yaml:"ws"`
	Typing   Typing   `yaml:"typing"`
	Roles    Roles    `yaml:"roles"`
	Session  Session  `yaml:"session"`
	Internal Internal `yaml:"internal"`
}

// LoadConfig читает .env (если есть), затем CONFIG_PATH
// (по умолчанию ./config/config.yaml). Секреты можно переопределить
// переменными POSTGRES_DSN и INTERNAL_TOKEN.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}
	if v, ok := os.LookupEnv("INTERNAL_TOKEN"); ok {
		c.Internal.Token = v
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s failed %q", strings.ToLower(verrs[0].Namespace()), verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "realtime-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)

	if c.Postgres.NotifyChannel == "" {
		c.Postgres.NotifyChannel = "realtime_notify"
	}

	c.WS.PingEvery = durationOr(c.WS.PingEvery, 15*time.Second)
	c.WS.WriteWait = durationOr(c.WS.WriteWait, 5*time.Second)
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 1 << 16
	}
	if c.WS.SendQueue <= 0 {
		c.WS.SendQueue = 64
	}

	c.Typing.Timeout = durationOr(c.Typing.Timeout, 5*time.Second)

	if c.Roles.Source == "" {
		c.Roles.Source = "file"
	}
	if c.Roles.Source == "file" && c.Roles.File == "" {
		c.Roles.File = "./config/roles.yaml"
	}
	if c.Roles.Source == "postgres" && c.Postgres.DSN == "" {
		return errors.New("roles.source=postgres requires postgres.dsn")
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "access_token"
	}
	c.Session.ClockSkew = durationOr(c.Session.ClockSkew, 30*time.Second)

	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
