package database

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"bankcards/config"
	"bankcards/utils"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// Connect устанавливает соединение с базой данных и выполняет миграции
func Connect(cfg *config.Config, log *logrus.Logger) (*Database, error) {
	// Настраиваем логгер GORM поверх logrus
	gormLogger := logger.New(
		log,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			// Параметры запросов содержат шифротексты номеров карт
			ParameterizedQueries: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	startTime := time.Now()
	err = RunMigrations(cfg)
	utils.LogOperation(log, "migrations", startTime, err)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения SQL миграций: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunMigrations выполняет SQL миграции из каталога cfg.DB.MigrationsPath
func RunMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.DB.MigrationsPath, MigrationURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	}
	return nil
}

// MigrationURL формирует URL базы данных для golang-migrate
func MigrationURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DB.User, cfg.DB.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.DB.Host, cfg.DB.Port),
		Path:     cfg.DB.DBName,
		RawQuery: url.Values{"sslmode": []string{cfg.DB.SSLMode}}.Encode(),
	}
	return u.String()
}
