// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string          `yaml:"env" env:"ENV" env-default:"local"`
	Storage         Storage         `yaml:"storage"`
	HTTPServer      HTTPServer      `yaml:"http_server"`
	JWT             JWT             `yaml:"jwt"`
	Password        Password        `yaml:"password"`
	Reset           Reset           `yaml:"reset"`
	Cookie          Cookie          `yaml:"cookie"`
	RedisConnection RedisConnection `yaml:"redis_connection"`
	RabbitMQ        RabbitMQ        `yaml:"rabbitmq"`
	SMTP            SMTP            `yaml:"smtp"`
	Notifications   Notifications   `yaml:"notifications"`
	RateLimit       RateLimit       `yaml:"rate_limit"`
}

// Storage настройки хранилища пользователей
type Storage struct {
	Driver           string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	ConnectionString string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath   string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// JWT параметры подписи токенов
type JWT struct {
	AccessSecret  string        `yaml:"access_secret" env:"JWT_SECRET"`
	RefreshSecret string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"JWT_EXPIRES_IN" env-default:"15m"`
	Issuer        string        `yaml:"issuer" env-default:"auth-service"`
}

// Password настройки хэширования паролей
type Password struct {
	Algorithm  string `yaml:"algorithm" env-default:"bcrypt"`
	BcryptCost int    `yaml:"bcrypt_cost" env-default:"10"`
}

// Reset настройки сброса пароля
type Reset struct {
	TokenTTL    time.Duration `yaml:"token_ttl" env-default:"1h"`
	FrontendURL string        `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// Cookie настройки cookie с refresh-токеном
type Cookie struct {
	Name   string `yaml:"name" env-default:"refreshToken"`
	Secure bool   `yaml:"secure" env:"COOKIE_SECURE"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
	IdentityTTL time.Duration `yaml:"identity_ttl" env-default:"30s"`
}

// RabbitMQ параметры подключения к брокеру
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP параметры почтового сервера
type SMTP struct {
	Host      string `yaml:"host" env:"MAIL_HOST"`
	Port      int    `yaml:"port" env:"MAIL_PORT" env-default:"587"`
	User      string `yaml:"user" env:"MAIL_USER"`
	Pass      string `yaml:"pass" env:"MAIL_PASS"`
	From      string `yaml:"from" env:"MAIL_FROM"`
	ForwardTo string `yaml:"forward_to" env:"MAIL_FORWARD_TO"`
}

// Notifications выбор способа доставки писем
type Notifications struct {
	Transport    string `yaml:"transport" env-default:"smtp"`
	WelcomeEmail bool   `yaml:"welcome_email" env:"WELCOME_EMAIL" env-default:"false"`
}

// RateLimit параметры ограничителя запросов для защищённых маршрутов
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по указанному пути.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt secrets must be set")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("jwt access and refresh secrets must differ")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.ConnectionString == "" {
			return errors.New("storage connection string is required for postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Password.Algorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown password algorithm %q", c.Password.Algorithm)
	}
	switch c.Notifications.Transport {
	case "smtp":
	case "amqp":
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq url is required for amqp notifications")
		}
	default:
		return fmt.Errorf("unknown notifications transport %q", c.Notifications.Transport)
	}
	return nil
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWT:\n"+
			"  AccessTTL: %s\n"+
			"  Issuer: %s\n"+
			"Password:\n"+
			"  Algorithm: %s\n"+
			"Reset:\n"+
			"  TokenTTL: %s\n"+
			"  FrontendURL: %s\n"+
			"Redis:\n"+
			"  Address: %s\n"+
			"  IdentityTTL: %s\n"+
			"Notifications:\n"+
			"  Transport: %s\n"+
			"  WelcomeEmail: %t\n",
		c.Env,
		c.Storage.Driver,
		c.Storage.MigrationsPath,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		c.JWT.AccessTTL,
		c.JWT.Issuer,
		c.Password.Algorithm,
		c.Reset.TokenTTL,
		c.Reset.FrontendURL,
		c.RedisConnection.Address,
		c.RedisConnection.IdentityTTL,
		c.Notifications.Transport,
		c.Notifications.WelcomeEmail,
	)
}
