package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-gymclass/internal/attendance"
	"ms-gymclass/internal/attendance/attendance_api"
	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/booking"
	"ms-gymclass/internal/booking/booking_api"
	booking_db "ms-gymclass/internal/booking/db"
	rediswrap "ms-gymclass/internal/booking/redis"
	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/config"
	"ms-gymclass/internal/database/migrations"
	"ms-gymclass/internal/kafka"
	"ms-gymclass/internal/ledger"
	ledger_db "ms-gymclass/internal/ledger/db"
	"ms-gymclass/internal/ledger/ledger_api"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/qr"
	"ms-gymclass/internal/schedule"
	schedule_db "ms-gymclass/internal/schedule/db"
	"ms-gymclass/internal/schedule/schedule_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Gym Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("DATABASE", "Running database migrations")
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: "./migrations",
			AutoMigrate:   cfg.Database.AutoMigrate,
			SeedData:      cfg.Database.SeedData,
		})
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			logger.Warn("DATABASE", fmt.Sprintf("Migration runner close: %v", err))
		}
	}

	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer kafkaProducer.Close()
	logger.Info("KAFKA", "Kafka producer initialized successfully")

	requiredTopics := []string{
		models.TopicBookingCreated,
		models.TopicBookingCancelled,
		models.TopicAttendanceMarked,
		models.TopicPackageGranted,
		models.TopicClassCancelled,
		models.TopicPaymentApproved,
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		logger.Info("KAFKA", "Required topics ensured successfully")
	}

	clk := clock.System()
	loc := cfg.Location()
	qrGenerator := qr.NewGenerator(cfg.Booking.QRSecretKey)
	redisLock := rediswrap.NewRedis(redisClient)
	bookingDB := &booking_db.DB{Bun: bunDB}

	ledgerService := ledger.NewLedgerService(&ledger_db.DB{Bun: bunDB}, kafkaProducer, clk, logger)
	scheduleService := schedule.NewScheduleService(&schedule_db.DB{Bun: bunDB}, kafkaProducer, clk, logger,
		cfg.Schedule.MonthsAhead, loc)
	bookingService := booking.NewBookingService(bookingDB, redisLock, kafkaProducer, qrGenerator, clk, logger,
		cfg.CancelWindow())
	attendanceService := attendance.NewAttendanceService(bookingDB, kafkaProducer, qrGenerator, clk, logger, loc)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, models.TopicPaymentApproved, cfg.Kafka.GroupID)
		defer consumer.Close()
		go consumer.Start(ctx, func(event models.PaymentApprovedEvent) {
			if _, err := ledgerService.GrantPackage(ctx, event.MemberID, event.PackageID, event.PaymentRef); err != nil {
				logger.Error("LEDGER", fmt.Sprintf("Failed to grant package from payment approval: %v", err))
			}
		})
		logger.Info("KAFKA", fmt.Sprintf("Payment approval consumer started on %s", models.TopicPaymentApproved))
	}

	scheduleHandler := schedule_api.NewHandler(scheduleService, logger)
	ledgerHandler := ledger_api.NewHandler(ledgerService, logger)
	bookingHandler := booking_api.NewHandler(bookingService, logger)
	attendanceHandler := attendance_api.NewHandler(attendanceService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "Auth middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			scheduleHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Schedule routes registered under /api/schedule and /api/classes")

			ledgerHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Credit routes registered under /api/packages and /api/credits")

			bookingHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Booking routes registered under /api/bookings")

			attendanceHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Attendance routes registered under /api/attendance")
		})
	})

	generationRunner := schedule.NewRunner(scheduleService, redisLock, cfg.Schedule.DailyHour, cfg.Schedule.DailyMinute)
	go generationRunner.Start(ctx)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Gym Booking Service running on %s", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Gym Booking Service shutdown complete")
	}
}
