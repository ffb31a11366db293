package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildcrew/payroll-service/internal/config"
	appHTTP "github.com/buildcrew/payroll-service/internal/handler/http"
	"github.com/buildcrew/payroll-service/internal/pkg/database"
	"github.com/buildcrew/payroll-service/internal/pkg/jwt"
	"github.com/buildcrew/payroll-service/internal/repository/postgresql"
	payrollService "github.com/buildcrew/payroll-service/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.App.LogLevel)
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-service"),
		slog.String("version", version),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	taxTables := payrollService.DefaultTaxTables()
	if cfg.Payroll.TaxTablesPath != "" {
		taxTables, err = payrollService.LoadTaxTables(cfg.Payroll.TaxTablesPath)
		if err != nil {
			slog.Error("Failed to load tax tables", "path", cfg.Payroll.TaxTablesPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Tax tables loaded", "years", taxTables.Years())

	db, err := database.NewPostgreSQLDB(context.Background(), cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	payrollRepo := postgresql.NewPayrollRepository(db)
	timeOffRepo := postgresql.NewTimeOffRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollSvc := payrollService.NewPayrollService(payrollRepo, taxTables, timeOffRepo)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		AllowedOrigins: cfg.App.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
