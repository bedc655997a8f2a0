package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carrental/internal/cache"
	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/external"
	"carrental/internal/handlers"
	"carrental/internal/logger"
	"carrental/internal/messaging"
	"carrental/internal/metrics"
	"carrental/internal/middleware"
	"carrental/internal/models"
	"carrental/internal/repository"
	"carrental/internal/repository/memstore"
	"carrental/internal/search"
	"carrental/internal/service"
	"carrental/internal/validation"

	"github.com/gin-gonic/gin"
)

// Server is the HTTP API process
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	cache    *cache.ValkeyClient
	search   *search.ElasticsearchClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer connects the backing services and builds the router. Only the
// database is mandatory; the event bus, cache, search index and payment
// provider are skipped with a warning when they cannot be reached.
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	if err := validation.Register(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	mode, err := service.ParseDurationMode(cfg.DurationMode)
	if err != nil {
		return nil, err
	}
	s := &Server{config: cfg}

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Get().Warn("Using in-memory storage, data is lost on restart")
		s.repos = memstore.New().Repositories()
	case config.StorageDriverPostgres:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		s.db = db
		s.repos = repository.NewRepositories(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	opts := service.Options{
		Currency:     cfg.Payment.Currency,
		DurationMode: mode,
	}

	if natsClient, err := messaging.NewNATSClient(cfg.NATS); err != nil {
		logger.Get().Warn("Event publishing disabled", "error", err)
	} else {
		s.nats = natsClient
		opts.Publisher = natsClient
	}

	if valkey, err := cache.NewValkeyClient(cfg.Cache); err != nil {
		logger.Get().Warn("Car cache disabled", "error", err)
	} else {
		s.cache = valkey
		opts.Cache = valkey
	}

	if esCfg := config.LoadElasticsearchConfig(); esCfg.Enabled {
		if es, err := search.NewElasticsearchClient(esCfg); err != nil {
			logger.Get().Warn("Car search index disabled", "error", err)
		} else {
			s.search = es
			opts.Searcher = es
		}
	}

	if paymentClient, err := external.NewPaymentClient(cfg.Payment); err != nil {
		logger.Get().Warn("Payment provider disabled", "error", err)
	} else {
		opts.Provider = paymentClient
	}

	s.services = service.NewServices(s.repos, opts)
	logger.Get().Info("Rental duration mode", "mode", s.services.Returns.Mode())

	if cfg.Auth.JWTSecret == "" {
		logger.Get().Warn("JWT_SECRET is empty, every authenticated route will reject requests")
	}

	s.router = NewRouter(RouterConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		RequestTimeout: cfg.RequestTimeout,
	}, handlers.NewHandlers(s.services), s.healthCheck)

	return s, nil
}

type RouterConfig struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// NewRouter mounts every route with its role requirements
func NewRouter(cfg RouterConfig, h *handlers.Handlers, health gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	router.GET("/health", health)
	router.GET("/metrics", metrics.Handler())

	auth := middleware.Auth(cfg.JWTSecret)
	user := middleware.RequireRole(models.RoleUser, models.RoleAdmin)
	admin := middleware.RequireRole(models.RoleAdmin)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		cars := api.Group("/cars")
		{
			cars.GET("", h.ListCars)
			cars.GET("/search", h.SearchCars)
			cars.GET("/:id", h.GetCar)
			cars.POST("", auth, admin, h.CreateCar)
			cars.PUT("/return", auth, admin, h.ReturnCar)
			cars.PUT("/:id", auth, admin, h.UpdateCar)
			cars.DELETE("/:id", auth, admin, h.DeleteCar)
		}

		bookings := api.Group("/bookings", auth)
		{
			bookings.POST("", user, h.CreateBooking)
			bookings.GET("", admin, h.ListBookings)
			bookings.GET("/stats", admin, h.BookingStats)
			bookings.GET("/my-bookings", user, h.MyBookings)
			bookings.GET("/my-bookings/:id", user, h.GetBooking)
			bookings.PUT("/my-bookings/:id", user, h.UpdateBooking)
			bookings.DELETE("/my-bookings/:id", user, h.CancelBooking)
			bookings.PATCH("/approve/:id", admin, h.ApproveBooking)
		}

		payments := api.Group("/payments", auth)
		{
			payments.POST("/create-payment-intent", user, h.CreatePaymentIntent)
			payments.POST("/confirm-payment", user, h.ConfirmPayment)
			payments.GET("/total-revenue", admin, h.TotalRevenue)
			payments.POST("/reconcile", admin, h.ReconcilePayments)
		}
	}

	return router
}

func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"service": "carrental-api",
		"storage": s.config.StorageDriver,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.db != nil {
		check := s.db.HealthCheck(ctx)
		body["database"] = check
		if !check.Healthy() {
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	if s.cache != nil {
		body["cache"] = pingStatus(s.cache.Ping(ctx))
	}
	if s.search != nil {
		body["search"] = pingStatus(s.search.HealthCheck(ctx))
	}
	body["events"] = s.nats != nil

	c.JSON(http.StatusOK, body)
}

func pingStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter returns the router for tests and the http.Server
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes every connection the server opened
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Get().Error("Error closing cache connection", "error", err)
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
