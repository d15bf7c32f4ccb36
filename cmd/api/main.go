package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convergence/internal/archive"
	"convergence/internal/gateway/config"
	"convergence/internal/gateway/handler"
	"convergence/internal/gateway/server"
	"convergence/internal/llm"
	"convergence/internal/metrics"
	"convergence/internal/pipeline"
	"convergence/internal/store"
	"convergence/internal/vcs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	st := store.NewFromEnv()
	defer st.Close()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("init gemini client: %v", err)
	}
	defer gemini.Close()

	github := vcs.NewClient(ctx, cfg.GitHubToken)
	if cfg.GitHubToken != "" {
		if login, err := github.VerifyToken(ctx); err != nil {
			log.Printf("github token verification failed: %v", err)
		} else {
			log.Printf("authenticated to GitHub as %s", login)
		}
	}

	var reports *archive.Store
	if cfg.Archive.Enabled {
		reports, err = archive.New(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			log.Printf("report archive disabled: %v", err)
			reports = nil
		}
	}

	orch := &pipeline.Orchestrator{
		Store:   st,
		LLM:     gemini,
		GitHub:  github,
		Archive: reports,
		Metrics: &metrics.Recorder{Store: st},
	}

	svc := handler.NewService(st, orch, cfg.WebhookSecret, cfg.PostToGitHub)
	srv := server.New(cfg.Port, server.NewMux(svc))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
