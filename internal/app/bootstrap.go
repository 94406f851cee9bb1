package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clinic-api/internal/appointment"
	"clinic-api/internal/auth"
	"clinic-api/internal/db"
	"clinic-api/internal/department"
	"clinic-api/internal/doctor"
	"clinic-api/internal/feedback"
	"clinic-api/internal/gallery"
	"clinic-api/internal/maintenance"
	"clinic-api/internal/observability"
	"clinic-api/internal/patient"
	"clinic-api/internal/prescription"
	"clinic-api/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	environment := envOrDefault("APP_ENV", "development")
	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database, logger); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	tokenTTL := envHoursOrDefault("TOKEN_TTL_HOURS", 24)
	sessionIdle := envHoursOrDefault("SESSION_IDLE_HOURS", 24)

	authRepo := auth.NewRepository(database)
	tokens := auth.NewTokenService(jwtSecret, tokenTTL)
	sessions := auth.NewTracker(authRepo, sessionIdle, tokenTTL)
	authService := auth.NewService(authRepo, sessions, tokens)
	authHandler := auth.NewHandler(authService)
	guard := auth.NewGuard(tokens, authRepo, sessions)
	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
	)
	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("SESSION_RETENTION_DAYS", 14),
		envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	)

	userHandler := user.NewHandler(user.NewRepository(database))
	departmentHandler := department.NewHandler(department.NewRepository(database))
	doctorHandler := doctor.NewHandler(doctor.NewRepository(database))
	patientHandler := patient.NewHandler(patient.NewRepository(database))
	appointmentHandler := appointment.NewHandler(appointment.NewRepository(database))
	prescriptionHandler := prescription.NewHandler(prescription.NewRepository(database))
	feedbackHandler := feedback.NewHandler(feedback.NewRepository(database))
	galleryHandler := gallery.NewHandler(gallery.NewRepository(database))

	anyUser := auth.AnyAuthenticated()
	adminOnly := auth.AnyOf(auth.RoleAdmin)
	clinicalStaff := auth.AnyOf(auth.RoleAdmin, auth.RoleStaff, auth.RoleDoctor)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", healthHandler(database))
	mux.HandleFunc("GET /api/internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /api/internal/maintenance/cleanup", cleanupHandler.Handle)

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/create-admin", authHandler.CreateAdmin)
	mux.Handle("GET /api/auth/me", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(authHandler.Me))))
	mux.Handle("POST /api/auth/refresh", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(authHandler.Refresh))))
	mux.Handle("POST /api/auth/logout", guard.Require(anyUser, http.HandlerFunc(authHandler.Logout)))

	mux.HandleFunc("GET /api/users", userHandler.List)
	mux.HandleFunc("GET /api/users/recent", userHandler.Recent)
	mux.Handle("GET /api/users/{id}", guard.Require(adminOnly, http.HandlerFunc(userHandler.Get)))
	mux.Handle("PUT /api/users/{id}", guard.Require(adminOnly, http.HandlerFunc(userHandler.Update)))
	mux.Handle("PATCH /api/users/{id}/status", guard.Require(adminOnly, http.HandlerFunc(userHandler.UpdateStatus)))
	mux.Handle("DELETE /api/users/{id}", guard.Require(adminOnly, http.HandlerFunc(userHandler.Delete)))

	mux.HandleFunc("GET /api/departments", departmentHandler.List)
	mux.HandleFunc("GET /api/departments/{id}", departmentHandler.Get)
	mux.Handle("POST /api/departments", guard.Require(adminOnly, http.HandlerFunc(departmentHandler.Create)))
	mux.Handle("PUT /api/departments/{id}", guard.Require(adminOnly, http.HandlerFunc(departmentHandler.Update)))
	mux.Handle("DELETE /api/departments/{id}", guard.Require(adminOnly, http.HandlerFunc(departmentHandler.Delete)))

	mux.HandleFunc("GET /api/doctors", doctorHandler.List)
	mux.HandleFunc("GET /api/doctors/department/{departmentId}", doctorHandler.ListByDepartment)
	mux.HandleFunc("GET /api/doctors/{id}", doctorHandler.Get)
	mux.Handle("POST /api/doctors", guard.Require(adminOnly, http.HandlerFunc(doctorHandler.Create)))
	mux.Handle("PUT /api/doctors/{id}", guard.Require(adminOnly, http.HandlerFunc(doctorHandler.Update)))
	mux.Handle("DELETE /api/doctors/{id}", guard.Require(adminOnly, http.HandlerFunc(doctorHandler.Delete)))

	mux.Handle("GET /api/patients", guard.Require(clinicalStaff, guard.ValidateSession(http.HandlerFunc(patientHandler.List))))
	mux.Handle("GET /api/patients/{id}", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(patientHandler.Get))))
	mux.Handle("GET /api/patients/user/{userId}", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(patientHandler.GetByUser))))
	mux.Handle("PUT /api/patients/{id}", guard.Require(auth.AnyOf(auth.RolePatient, auth.RoleStaff, auth.RoleAdmin), guard.ValidateSession(http.HandlerFunc(patientHandler.Update))))

	mux.Handle("GET /api/appointments", guard.Require(auth.AnyOf(auth.RoleAdmin, auth.RoleStaff), guard.ValidateSession(http.HandlerFunc(appointmentHandler.List))))
	mux.Handle("GET /api/appointments/patient/{patientId}", guard.Require(auth.AnyOf(auth.RolePatient, auth.RoleAdmin, auth.RoleStaff), guard.ValidateSession(http.HandlerFunc(appointmentHandler.ListByPatient))))
	mux.Handle("GET /api/appointments/doctor/{doctorId}", guard.Require(auth.AnyOf(auth.RoleDoctor, auth.RoleAdmin, auth.RoleStaff), guard.ValidateSession(http.HandlerFunc(appointmentHandler.ListByDoctor))))
	mux.Handle("GET /api/appointments/{id}", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(appointmentHandler.Get))))
	mux.Handle("POST /api/appointments", guard.Require(auth.AnyOf(auth.RolePatient, auth.RoleStaff, auth.RoleAdmin), guard.ValidateSession(http.HandlerFunc(appointmentHandler.Create))))
	mux.Handle("PATCH /api/appointments/{id}/status", guard.Require(clinicalStaff, guard.ValidateSession(http.HandlerFunc(appointmentHandler.UpdateStatus))))
	mux.Handle("PATCH /api/appointments/{id}/cancel", guard.Require(auth.AnyOf(auth.RolePatient, auth.RoleStaff, auth.RoleAdmin), guard.ValidateSession(http.HandlerFunc(appointmentHandler.Cancel))))

	mux.Handle("GET /api/prescriptions", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(prescriptionHandler.List))))
	mux.Handle("GET /api/prescriptions/{id}", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(prescriptionHandler.Get))))
	mux.Handle("POST /api/prescriptions", guard.Require(adminOnly, guard.ValidateSession(http.HandlerFunc(prescriptionHandler.Create))))
	mux.Handle("PUT /api/prescriptions/{id}", guard.Require(adminOnly, guard.ValidateSession(http.HandlerFunc(prescriptionHandler.Update))))
	mux.Handle("DELETE /api/prescriptions/{id}", guard.Require(adminOnly, guard.ValidateSession(http.HandlerFunc(prescriptionHandler.Delete))))

	mux.Handle("GET /api/feedbacks", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(feedbackHandler.List))))
	mux.Handle("GET /api/feedbacks/{id}", guard.Require(anyUser, guard.ValidateSession(http.HandlerFunc(feedbackHandler.Get))))
	mux.Handle("POST /api/feedbacks", guard.Require(auth.AnyOf(auth.RolePatient), guard.ValidateSession(http.HandlerFunc(feedbackHandler.Create))))
	mux.Handle("PUT /api/feedbacks/{id}", guard.Require(auth.AnyOf(auth.RolePatient), guard.ValidateSession(http.HandlerFunc(feedbackHandler.Update))))
	mux.Handle("DELETE /api/feedbacks/{id}", guard.Require(auth.AnyOf(auth.RolePatient), guard.ValidateSession(http.HandlerFunc(feedbackHandler.Delete))))

	mux.HandleFunc("GET /api/gallery", galleryHandler.List)
	mux.HandleFunc("GET /api/gallery/{id}", galleryHandler.Get)
	mux.Handle("POST /api/gallery", guard.Require(adminOnly, http.HandlerFunc(galleryHandler.Create)))
	mux.Handle("PUT /api/gallery/{id}", guard.Require(adminOnly, http.HandlerFunc(galleryHandler.Update)))
	mux.Handle("DELETE /api/gallery/{id}", guard.Require(adminOnly, http.HandlerFunc(galleryHandler.Delete)))

	// The limiter must run before the sanitizer on the login path so
	// sanitizer-rejected login attempts still count toward lockout.
	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			observability.SecurityHeadersMiddleware(environment == "production",
				gateLogin(loginLimiter, auth.SanitizeInput(mux)))))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// gateLogin applies the login rate limiter ahead of everything else on
// the login route and leaves all other routes untouched.
func gateLogin(limiter *auth.LoginRateLimiter, next http.Handler) http.Handler {
	limited := limiter.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
