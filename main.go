package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "pilgrimage/internal/config"
	intdb "pilgrimage/internal/db"
	router "pilgrimage/internal/http"
	"pilgrimage/internal/repositories/memstore"
	"pilgrimage/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	addr := pflag.String("addr", "", "listen address, overrides APP_ADDR")
	store := pflag.String("store", "", "storage backend: mysql or memory, overrides STORE")
	migrate := pflag.Bool("migrate", false, "create missing tables before serving")
	pflag.Parse()

	env, err := intconfig.LoadEnv(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		env.AppAddr = *addr
	}
	if *store != "" {
		env.Store = *store
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	var (
		stores services.Stores
		ping   func(context.Context) error
	)
	switch env.Store {
	case intconfig.StoreMemory:
		log.Println("[STORE] using in-memory store; data is lost on exit")
		stores = services.MemoryStores(memstore.New())
	default:
		db, err := intconfig.ConnectDB(env)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer intconfig.CloseDB()
		if *migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := intdb.EnsureSchema(ctx, db)
			cancel()
			if err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		stores = services.MySQLStores(db)
		ping = intconfig.PingDB
	}

	rdb, err := intconfig.NewRedisClient(env.RedisURL)
	if err != nil {
		log.Printf("warning: redis disabled: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	api := router.NewAPI(env, stores, rdb, ping)
	r := router.NewRouter(env, router.Deps{API: api, Redis: rdb})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s (store=%s)", env.AppAddr, env.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}

	log.Println("Server stopped cleanly.")
}
