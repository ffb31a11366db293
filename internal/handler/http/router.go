package http

import (
	"log/slog"

	"github.com/buildcrew/payroll-service/internal/handler/http/middleware"
	"github.com/buildcrew/payroll-service/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(JWTService jwt.Service, payrollHandler PayrollHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequireManager)

			r.Route("/payroll", func(r chi.Router) {
				r.Route("/settings", func(r chi.Router) {
					r.Get("/", payrollHandler.GetSettings)
					r.With(middleware.RequireOwner).Put("/", payrollHandler.UpdateSettings)
				})

				r.Get("/periods/preview", payrollHandler.PreviewPayPeriod)
				r.Post("/taxes/calculate", payrollHandler.CalculateTaxes)

				r.Route("/runs", func(r chi.Router) {
					r.Get("/", payrollHandler.ListRuns)
					r.Post("/", payrollHandler.GenerateRun)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", payrollHandler.GetRun)
						r.Delete("/", payrollHandler.DeleteRun)
						r.Post("/approve", payrollHandler.ApproveRun)
						r.Post("/complete", payrollHandler.CompleteRun)
						r.Post("/exported", payrollHandler.MarkRunExported)
						r.Get("/export", payrollHandler.ExportRun)

						r.Route("/entries/{entryId}", func(r chi.Router) {
							r.Put("/", payrollHandler.UpdateEntry)
							r.Post("/adjustments", payrollHandler.AddAdjustment)
							r.Get("/paystub", payrollHandler.GetPayStub)
						})
					})
				})

				r.Get("/employees/{employeeId}/ytd", payrollHandler.GetEmployeeYTD)
			})
		})
	})
	return r
}
