package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/imdbvec/internal/config"
	"github.com/user/imdbvec/internal/handler"
	"github.com/user/imdbvec/internal/importer"
	"github.com/user/imdbvec/internal/middleware"
	"github.com/user/imdbvec/internal/repository"
	"github.com/user/imdbvec/internal/router"
	"github.com/user/imdbvec/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := repository.Migrate(db, cfg.EmbeddingDim); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	pool, err := repository.InitPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("import pool failed: %v", err)
	}
	defer pool.Close()

	repos := repository.NewRepositories(db)

	// Import pipeline: conditional fetch, staging, selection, sync.
	meta := importer.NewMetadataStore(cfg.DataDir)
	fetcher := importer.NewFetcher(cfg.ImdbBaseURL, cfg.DataDir, meta)
	staging := importer.NewStagingLoader()
	selector := importer.NewSelector(cfg.TitleTypes)
	imp := importer.NewImporter(pool, fetcher, staging, selector, cfg.SourceFiles(), cfg.MaxTitles)

	embedding := service.NewEmbeddingService(repos.Title, cfg)
	search := service.NewSearchService(repos, embedding, cfg)
	refresh := service.NewRefreshService(imp, embedding, search, cfg)
	refresh.Start(ctx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.Logger())

	h := handler.NewHandler(repos, cfg, search, refresh)
	router.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	// Stop the refresh scheduler before draining requests.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown:", err)
	}

	log.Println("server exited")
}
