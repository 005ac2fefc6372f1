package bootstrap

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/appforge-labs/appforge-backend/config"
	httpapi "github.com/appforge-labs/appforge-backend/internal/api/http"
	"github.com/appforge-labs/appforge-backend/internal/api/http/middleware"
	"github.com/appforge-labs/appforge-backend/internal/audit"
	"github.com/appforge-labs/appforge-backend/internal/auth"
	authhttp "github.com/appforge-labs/appforge-backend/internal/auth/http"
	"github.com/appforge-labs/appforge-backend/internal/builder"
	builderhttp "github.com/appforge-labs/appforge-backend/internal/builder/http"
	"github.com/appforge-labs/appforge-backend/internal/generation"
	genhttp "github.com/appforge-labs/appforge-backend/internal/generation/http"
	projecthttp "github.com/appforge-labs/appforge-backend/internal/projects/http"
	"github.com/appforge-labs/appforge-backend/internal/projects/repository"
)

type RouterDeps struct {
	ServiceName string
	Cfg         *config.Config
	Firebase    *FirebaseClients
	AuditDB     *sql.DB // nil disables the audit log
	Sessions    builder.SessionStore
}

// BuildRouter wires every handler onto a gin engine. All clients come in
// as constructed dependencies.
func BuildRouter(dep RouterDeps) (*gin.Engine, *builder.Service) {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.Cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Cfg.App.Version, dep.AuditDB)
	healthHandler.RegisterRoutes(r)

	projectRepo := repository.NewProjectRepository(dep.Firebase.Firestore)
	genClient := generation.NewClient(
		dep.Cfg.Generation.BaseURL,
		dep.Cfg.Generation.APIKey,
		dep.Cfg.Generation.Model,
		dep.Cfg.Generation.MaxTokens,
	)

	var events *audit.EventRepository
	if dep.AuditDB != nil {
		events = audit.NewEventRepository(dep.AuditDB)
	}

	builderSvc := builder.NewService(builder.Options{
		Store:         projectRepo,
		Generator:     builder.ClientGenerator{Client: genClient},
		Sessions:      dep.Sessions,
		Events:        events,
		PublishDelay:  dep.Cfg.App.PublishDelay,
		PublishDomain: dep.Cfg.App.PublishDomain,
	})

	api := r.Group("/api/v1")
	api.Use(middleware.RequestIDMiddleware())

	authhttp.Register(api.Group("/auth"), dep.Firebase.Auth)

	protected := api.Group("")
	protected.Use(auth.FirebaseAuthMiddleware(dep.Firebase.Auth))

	authhttp.RegisterProtected(protected.Group("/auth"), dep.Firebase.Auth)
	projecthttp.Register(protected.Group("/projects"), projectRepo)
	builderhttp.Register(protected.Group("/builder"), builderSvc)

	genHandler := genhttp.NewHandler(genClient, dep.Cfg.Generation.RatePerMinute)
	genHandler.Register(protected)

	return r, builderSvc
}
