package main

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"twipost/auth"
	"twipost/handlers"
	"twipost/middleware"
	"twipost/storage"
	"twipost/storage/in_memory"
	"twipost/storage/persistent"
	"twipost/storage/persistent_cached"
	"twipost/storage/relational"
	"twipost/utils"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func OpenStorage(ctx context.Context, cfg *utils.Config) (storage.Storage, error) {
	var s storage.Storage
	switch cfg.StorageMode {
	case utils.InMemory:
		s = in_memory.CreateInMemoryStorage()
	case utils.Relational:
		relationalStorage, err := relational.CreateRelationalStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = relationalStorage
	case utils.Mongo:
		mongoStorage, err := persistent.CreateMongoStorage(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		s = mongoStorage
	default:
		return nil, fmt.Errorf("invalid 'STORAGE_MODE' %q", cfg.StorageMode)
	}

	if cfg.RedisURL != "" {
		log.Printf("Caching posts in redis")
		s = persistent_cached.CreatePersistentStorageCachedWithRedis(s, cfg.RedisURL)
	}
	return s, nil
}

func NewRouter(s storage.Storage, cfg *utils.Config) *mux.Router {
	r := mux.NewRouter()

	metrics := middleware.NewMetrics()
	sessions := auth.NewSessions(cfg.SecretKey, cfg.SessionTTL, cfg.SecureCookies)
	handler := handlers.NewHTTPHandler(s, sessions, cfg.PageSize)

	r.Use(middleware.AccessLog, metrics.Middleware, auth.Middleware(sessions, s))
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	handler.Register(r, middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthBurst))
	return r
}

func CreateServer(ctx context.Context, cfg *utils.Config) (*http.Server, error) {
	s, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:      NewRouter(s, cfg),
		Addr:         "0.0.0.0:" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			log.Printf("Failed to close storage: %s", err.Error())
		}
	})
	return srv, nil
}
