package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/accrual"
	accrualpg "github.com/frahmantamala/loan-servicing/internal/accrual/postgres"
	"github.com/frahmantamala/loan-servicing/internal/application"
	applicationpg "github.com/frahmantamala/loan-servicing/internal/application/postgres"
	"github.com/frahmantamala/loan-servicing/internal/core/events"
	"github.com/frahmantamala/loan-servicing/internal/disbursement"
	disbursementpg "github.com/frahmantamala/loan-servicing/internal/disbursement/postgres"
	"github.com/frahmantamala/loan-servicing/internal/payment"
	paymentpg "github.com/frahmantamala/loan-servicing/internal/payment/postgres"
	"github.com/frahmantamala/loan-servicing/internal/reconciliation"
	"github.com/frahmantamala/loan-servicing/internal/repayment"
	repaymentpg "github.com/frahmantamala/loan-servicing/internal/repayment/postgres"
	"github.com/frahmantamala/loan-servicing/internal/transport/rest"
	"github.com/frahmantamala/loan-servicing/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle servicing API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	lg := deps.Logger
	bus := events.NewEventBus(lg)
	events.NewAuditLogger(lg).RegisterEventHandlers(bus)

	applicationRepo := applicationpg.NewApplicationRepository(deps.GormDB)
	applicationService := application.NewService(applicationRepo, bus, lg)

	repaymentRepo := repaymentpg.NewRepaymentRepository(deps.GormDB)
	repaymentService := repayment.NewService(repaymentRepo, lg)

	accrualRepo := accrualpg.NewAccrualRepository(deps.GormDB)
	accrualService := accrual.NewService(accrualRepo, bus, deps.Config.Accrual.BatchSize, lg)

	paymentRepo := paymentpg.NewPaymentRepository(deps.GormDB)
	paymentService := payment.NewService(paymentRepo, bus, lg)

	matcher := reconciliation.NewMatcher(
		deps.Config.Reconciliation.MatchFloor,
		deps.Config.Reconciliation.AutoSelectThreshold)
	reconciliationService := reconciliation.NewService(
		paymentService, matcher, deps.Config.Reconciliation.ApprovalWorkers, lg)

	disbursementRepo := disbursementpg.NewDisbursementRepository(deps.GormDB)
	disbursementService := disbursement.NewService(disbursementRepo, applicationService, bus, lg)

	handlers := rest.Handlers{
		Application:    application.NewHandler(applicationService),
		Repayment:      repayment.NewHandler(repaymentService),
		Accrual:        accrual.NewHandler(accrualService),
		Payment:        payment.NewHandler(paymentService),
		Reconciliation: reconciliation.NewHandler(reconciliationService),
		Disbursement:   disbursement.NewHandler(disbursementService),
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, handlers, deps.Config.Security.JWTSigningKey, lg)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	return &Dependencies{
		Config: config,
		Logger: logger.LoggerWrapper(),
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
