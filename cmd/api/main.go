package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aurahealth/screening-core/internal/application"
	appai "github.com/aurahealth/screening-core/internal/application/ai"
	appanalysis "github.com/aurahealth/screening-core/internal/application/analysis"
	appbatch "github.com/aurahealth/screening-core/internal/application/batch"
	"github.com/aurahealth/screening-core/internal/config"
	domai "github.com/aurahealth/screening-core/internal/domain/ai"
	domanalysis "github.com/aurahealth/screening-core/internal/domain/analysis"
	dombatch "github.com/aurahealth/screening-core/internal/domain/batch"
	domcredits "github.com/aurahealth/screening-core/internal/domain/credits"
	dominference "github.com/aurahealth/screening-core/internal/domain/inference"
	openaiclient "github.com/aurahealth/screening-core/internal/infra/ai/openai"
	"github.com/aurahealth/screening-core/internal/infra/alerts"
	mysqlp "github.com/aurahealth/screening-core/internal/infra/db/mysql"
	postgresp "github.com/aurahealth/screening-core/internal/infra/db/postgres"
	infinference "github.com/aurahealth/screening-core/internal/infra/inference"
	"github.com/aurahealth/screening-core/internal/infra/httpserver"
	imageStore "github.com/aurahealth/screening-core/internal/infra/storage"
	"github.com/aurahealth/screening-core/internal/middleware"
)

type repos struct {
	jobs      dombatch.Repository
	jobErrors dombatch.ErrorRepository
	analyses  domanalysis.Repository
	credits   domcredits.Ledger
	summaries domai.Repository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database
	var db *sql.DB
	var rp repos
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		if err := postgresp.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("postgres schema error: %v", err)
		}
		rp = repos{
			jobs:      postgresp.NewJobRepository(db),
			jobErrors: postgresp.NewJobErrorRepository(db),
			analyses:  postgresp.NewAnalysisRepository(db),
			credits:   postgresp.NewCreditRepository(db),
			summaries: postgresp.NewSummaryRepository(db),
		}
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("mysql schema error: %v", err)
		}
		rp = repos{
			jobs:      mysqlp.NewJobRepository(db),
			jobErrors: mysqlp.NewJobErrorRepository(db),
			analyses:  mysqlp.NewAnalysisRepository(db),
			credits:   mysqlp.NewCreditRepository(db),
			summaries: mysqlp.NewSummaryRepository(db),
		}
	}
	defer db.Close()

	// image resolver: minio bucket, atau static base URL untuk development
	var resolver domanalysis.ImageResolver
	if cfg.Minio.Endpoint != "" {
		store, err := imageStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		resolver = store
	} else {
		resolver = &imageStore.StaticResolver{
			BaseURL:  cfg.Images.BaseURL,
			Modality: cfg.Images.Modality,
		}
		log.Printf("minio not configured, using static image resolver base=%s", cfg.Images.BaseURL)
	}

	// inference client: real model service, atau deterministic mock
	var inferClient dominference.Client
	timeout := time.Duration(cfg.Inference.TimeoutSeconds) * time.Second
	if cfg.Inference.BaseURL != "" {
		inferClient = infinference.NewClient(cfg.Inference.BaseURL, timeout)
	} else {
		inferClient = infinference.MockClient{}
		log.Printf("inference baseURL not configured, using deterministic mock")
	}

	// alert notifier optional
	var notifier domanalysis.AlertNotifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	}

	// init services
	mode := appanalysis.ModeFallback
	if cfg.Inference.Mode == "strict" {
		mode = appanalysis.ModeStrict
	}
	analysisSvc := &appanalysis.Service{
		Repo:      rp.analyses,
		Images:    resolver,
		Ledger:    rp.credits,
		Inference: inferClient,
		Alerts:    notifier,
		Clock:     application.SystemClock{},
		Mode:      mode,
		Timeout:   timeout,
	}

	coordinator := &appbatch.Coordinator{
		Jobs:        rp.jobs,
		Errors:      rp.jobErrors,
		Analyzer:    analysisSvc,
		Clock:       application.SystemClock{},
		Concurrency: cfg.Jobs.MaxConcurrent,
	}

	var aiSvc *appai.Service
	if cfg.OpenAI.APIKey != "" {
		cli := openaiclient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		aiSvc = appai.NewService(cli, rp.summaries, cli.Model)
	}

	// api keys: clinic -> key
	apiKeys := make(map[string]string)
	for _, entry := range cfg.Auth.APIKeys {
		// format: clinic:key
		if parts := strings.SplitN(entry, ":", 2); len(parts) == 2 {
			apiKeys[parts[0]] = parts[1]
		}
	}

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	if cfg.Inference.BaseURL != "" {
		checkers["inference"] = &middleware.HTTPHealthChecker{URL: cfg.Inference.BaseURL + "/health"}
	}

	handler := httpserver.NewRouter(analysisSvc, coordinator, aiSvc, rp.credits, httpserver.Options{
		APIKeys:        apiKeys,
		RatePerMinute:  cfg.RateLimit.RequestsPerMinute,
		HealthCheckers: checkers,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := coordinator.Shutdown(ctx2); err != nil {
		log.Printf("coordinator drain error: %v", err)
	}
}
