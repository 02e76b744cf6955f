package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/genres"
	"github.com/aicha-kelia/drama-aggregator/internal/logging"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/pkg/database"
	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default ./tafarraj.yaml or ~/.tafarraj/tafarraj.yaml)")
	flag.Parse()

	v, err := utils.NewViper(*cfgFile)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	cfg, err := utils.LoadConfig(v)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	dbCfg := database.Config{Path: cfg.Database.Path}
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	router := newRouter(db.PingContext, shows.NewRepo(db), genres.NewRepo(db), cfg.Server.PageSize, dbCfg.Path)

	// posters mirrored to the local image store are served by this process
	if local := cfg.Images.Local; strings.EqualFold(cfg.Images.Backend, "local") && strings.HasPrefix(local.PublicBaseURL, "/") {
		router.Static(local.PublicBaseURL, local.Dir)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP API server listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Errorf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown error: %v", err)
	}
	log.Info("server stopped")
}

// newRouter wires the read-only catalog routes.
func newRouter(ping func(context.Context) error, showRepo *shows.Repo, genreRepo *genres.Repo, pageSize int, dbPath string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbPath})
	})

	api := router.Group("")
	shows.NewHandler(showRepo, pageSize).RegisterRoutes(api)
	genres.NewHandler(genreRepo).RegisterRoutes(api.Group("/genres"))
	return router
}
