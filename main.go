package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcards/config"
	"bankcards/controllers"
	"bankcards/database"
	"bankcards/middleware"
	"bankcards/services"
	"bankcards/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	log := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)

	cipher, err := newCipher(cfg.Card)
	if err != nil {
		log.Fatalf("Ошибка инициализации шифрования номеров карт: %v", err)
	}

	store, closeStore, err := newStore(cfg, log)
	if err != nil {
		log.Fatalf("Ошибка подключения к хранилищу: %v", err)
	}
	defer closeStore()

	metrics := utils.NewMetrics()
	opts := []services.Option{services.WithMetrics(metrics)}
	if cfg.NotificationsEnabled() {
		opts = append(opts, services.WithNotifier(services.NewEmailService(cfg)))
		log.Info("Уведомления о блокировке карт включены")
	}
	cardService := services.NewCardService(store, cipher, []byte(cfg.Card.HMACKey), log, opts...)

	limiter := utils.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	router := newRouter(cardService, []byte(cfg.JWT.SecretKey), limiter, metrics, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Сервер запущен на порту %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Остановка сервера...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Ошибка остановки сервера: %v", err)
	}
	log.Info("Сервер остановлен")
}

// newRouter собирает маршруты: /health открыт, /api/admin и /api/user требуют токен с ролью
func newRouter(cardService *services.CardService, jwtKey []byte, limiter *utils.RateLimiter, metrics *utils.Metrics, log *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log, metrics))

	router.HandleFunc("/health", controllers.Health).Methods(http.MethodGet)

	cardController := controllers.NewCardController(cardService, log)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(limiter))
	api.Use(middleware.AuthMiddleware(jwtKey, log))

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	cardController.RegisterAdminRoutes(admin)

	user := api.PathPrefix("/user").Subrouter()
	user.Use(middleware.RequireRole(middleware.RoleUser))
	cardController.RegisterUserRoutes(user)

	// CORS снаружи роутера: preflight OPTIONS не совпадает ни с одним маршрутом
	return middleware.CORS(router)
}

func newCipher(cfg config.CardConfig) (utils.TextCipher, error) {
	if cfg.Cipher == "pgp" {
		return utils.NewPGPCipher(cfg.PublicKey, cfg.PrivateKey, cfg.PrivateKeyPassword)
	}
	return utils.NewAESCipher(cfg.EncryptionPassword, cfg.EncryptionSalt)
}

func newStore(cfg *config.Config, log *logrus.Logger) (database.CardStore, func(), error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		return database.NewMemoryCardStore(), func() {}, nil
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Errorf("Ошибка закрытия подключения к базе данных: %v", err)
		}
	}
	return database.NewGormCardStore(db.DB), closeDB, nil
}
