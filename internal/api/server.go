package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ticketshow/internal/cache"
	"ticketshow/internal/config"
	"ticketshow/internal/database"
	"ticketshow/internal/external"
	"ticketshow/internal/handlers"
	"ticketshow/internal/logger"
	"ticketshow/internal/messaging"
	"ticketshow/internal/middleware"
	"ticketshow/internal/repository"
	"ticketshow/internal/scheduler"
	"ticketshow/internal/search"
	"ticketshow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	es       *search.ElasticsearchClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) *Server {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	// Запускаем миграции
	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Get().Warn("Failed to register pool metrics", "error", err)
	}

	// Подключаемся к NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	// Elasticsearch и Valkey опциональны
	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Get().Warn("Elasticsearch unavailable, movie titles will be omitted from events", "error", err)
		es = nil
	}

	valkey, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		logger.Get().Warn("Valkey unavailable, identity profiles will not be cached", "error", err)
		valkey = nil
	}

	// Создаем репозитории
	repos := repository.NewRepositoriesWithElasticsearch(db, es)

	// Создаем сервисы
	var profileCache service.ProfileCache
	if valkey != nil {
		profileCache = valkey
	}
	profiles := service.NewProfileService(profileCache, external.NewIdentityClient(cfg.Identity), repos.Users)

	// Планировщик здесь только ставит задачи; исполняет их процесс consumers
	jobScheduler := scheduler.New(repos.Jobs, cfg.Scheduler)

	services := &service.Services{
		Bookings: service.NewBookingService(
			repos.Shows,
			repos.Bookings,
			external.NewPaymentClient(cfg.Payment),
			jobScheduler,
			natsClient,
			profiles,
			repos.Movies,
			cfg.Booking,
		),
		Profiles: profiles,
	}

	// Создаем роутер
	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkey,
		es:       es,
		services: services,
		repos:    repos,
	}

	// Настраиваем роуты
	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	api := s.router.Group("/api")
	{
		booking := api.Group("/booking")
		{
			booking.GET("/seats/:showId", h.OccupiedSeats)

			// Запись требует токен провайдера идентификации
			protected := booking.Group("")
			protected.Use(middleware.RateLimit(s.config.RateLimit), middleware.JWTAuth(s.config.Auth))
			{
				protected.POST("/create", h.CreateHold)
				protected.POST("/verify", h.ConfirmPayment)
			}
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := s.db.HealthCheck(ctx)
	status := http.StatusOK
	if !dbHealth.Healthy() {
		status = http.StatusServiceUnavailable
	}

	deps := gin.H{"database": dbHealth}
	if s.es != nil {
		if err := s.es.HealthCheck(ctx); err != nil {
			deps["elasticsearch"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			deps["elasticsearch"] = gin.H{"status": "healthy"}
		}
	}
	if s.valkey != nil {
		if err := s.valkey.Ping(ctx); err != nil {
			deps["valkey"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			deps["valkey"] = gin.H{"status": "healthy"}
		}
	}

	c.JSON(status, gin.H{
		"status":       http.StatusText(status),
		"service":      "ticketshow-api",
		"dependencies": deps,
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
