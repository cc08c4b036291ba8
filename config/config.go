package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBConfig настройки подключения к PostgreSQL
type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxIdleConns   int
	MaxOpenConns   int
	MigrationsPath string
}

// DSN возвращает строку подключения для драйвера postgres
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode,
	)
}

// CardConfig настройки шифрования номеров карт
type CardConfig struct {
	Cipher             string // aes или pgp
	EncryptionPassword string
	EncryptionSalt     string // hex
	PublicKey          string // armored PGP
	PrivateKey         string // armored PGP
	PrivateKeyPassword string
	HMACKey            string
}

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int
	}
	StorageDriver string // postgres или memory
	DB            DBConfig
	JWT           struct {
		SecretKey string
	}
	Log struct {
		Level  string
		Format string
	}
	RateLimit struct {
		Requests int
		Window   time.Duration
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	SecurityNotifyEmail string // адрес для уведомлений о блокировке карт
	Card                CardConfig
}

// NewConfig создает новый экземпляр конфигурации из переменных окружения
func NewConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}

	// Настройки сервера
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.StorageDriver = strings.ToLower(v.GetString("STORAGE_DRIVER"))

	// Настройки базы данных
	cfg.DB = DBConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSLMODE"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
	}

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")

	// Логирование
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	// Ограничение частоты запросов
	cfg.RateLimit.Requests = v.GetInt("RATE_LIMIT_REQUESTS")
	cfg.RateLimit.Window = v.GetDuration("RATE_LIMIT_WINDOW")

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")
	cfg.SecurityNotifyEmail = v.GetString("SECURITY_NOTIFY_EMAIL")

	// Настройки карт
	cfg.Card = CardConfig{
		Cipher:             strings.ToLower(v.GetString("CARD_CIPHER")),
		EncryptionPassword: v.GetString("CARD_ENCRYPTION_PASSWORD"),
		EncryptionSalt:     v.GetString("CARD_ENCRYPTION_SALT"),
		PublicKey:          v.GetString("CARD_PUBLIC_KEY"),
		PrivateKey:         v.GetString("CARD_PRIVATE_KEY"),
		PrivateKeyPassword: v.GetString("CARD_PRIVATE_KEY_PASSWORD"),
		HMACKey:            v.GetString("CARD_HMAC_KEY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("STORAGE_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bank_cards")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("CARD_CIPHER", "aes")
}

// validate проверяет обязательные секреты и согласованность настроек
func (c *Config) validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("неверный порт сервера: %d", c.Server.Port))
	}
	if c.StorageDriver != "postgres" && c.StorageDriver != "memory" {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER должен быть postgres или memory, получено %q", c.StorageDriver))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY обязателен"))
	}
	if c.Card.HMACKey == "" {
		errs = append(errs, errors.New("CARD_HMAC_KEY обязателен"))
	}

	switch c.Card.Cipher {
	case "aes":
		if c.Card.EncryptionPassword == "" || c.Card.EncryptionSalt == "" {
			errs = append(errs, errors.New("CARD_ENCRYPTION_PASSWORD и CARD_ENCRYPTION_SALT обязательны для шифра aes"))
		}
	case "pgp":
		if c.Card.PublicKey == "" || c.Card.PrivateKey == "" {
			errs = append(errs, errors.New("CARD_PUBLIC_KEY и CARD_PRIVATE_KEY обязательны для шифра pgp"))
		}
	default:
		errs = append(errs, fmt.Errorf("CARD_CIPHER должен быть aes или pgp, получено %q", c.Card.Cipher))
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть положительными"))
	}

	return errors.Join(errs...)
}

// NotificationsEnabled сообщает, настроена ли отправка уведомлений по email
func (c *Config) NotificationsEnabled() bool {
	return c.SMTP.Host != "" && c.SecurityNotifyEmail != ""
}
