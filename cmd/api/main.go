package main

import (
	"context"
	"log"

	"github.com/appforge-labs/appforge-backend/config"
	"github.com/appforge-labs/appforge-backend/internal/bootstrap"
	"github.com/appforge-labs/appforge-backend/internal/builder"
	cronjob "github.com/appforge-labs/appforge-backend/internal/builder/cron"
	"github.com/appforge-labs/appforge-backend/internal/projects/repository"
)

const serviceName = "appforge-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)
	ctx := context.Background()

	firebase, err := bootstrap.InitializeFirebase(ctx, &cfg.Firebase)
	if err != nil {
		log.Fatalf("firebase: %v", err)
	}
	defer firebase.Close()

	auditDB, err := bootstrap.OpenAuditDB(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("audit db: %v", err)
	}
	if auditDB != nil {
		defer auditDB.Close()
	} else {
		log.Println("Audit log disabled (DB_DSN not set)")
	}

	var sessions builder.SessionStore
	redisClient, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = builder.NewRedisSessionStore(redisClient)
	} else {
		log.Println("Builder sessions in memory (REDIS_ADDR not set)")
		sessions = builder.NewMemorySessionStore()
	}

	router, _ := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Cfg:         cfg,
		Firebase:    firebase,
		AuditDB:     auditDB,
		Sessions:    sessions,
	})

	scheduler := cronjob.NewScheduler(sessions, repository.NewProjectRepository(firebase.Firestore))
	scheduler.Start()
	defer scheduler.Stop()

	log.Printf("%s %s listening on :%s", serviceName, cfg.App.Version, cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
