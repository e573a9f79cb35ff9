// README: Entry point; loads config, wires services, starts HTTP server and
// background workers.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripgen/internal/ai"
	"tripgen/internal/config"
	httptransport "tripgen/internal/http"
	"tripgen/internal/infra"
	"tripgen/internal/maps"
	"tripgen/internal/modules/job"
	"tripgen/internal/modules/recommend"
	"tripgen/internal/modules/schedule"
	"tripgen/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	adapters := []ai.ProviderAdapter{
		ai.NewOpenAIAdapter(cfg.AI.OpenAIKey),
		ai.NewClaudeAdapter(cfg.AI.ClaudeKey),
	}
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiAdapter(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer gemini.Close()
		adapters = append(adapters, gemini)
	}
	selector := ai.NewSelector(adapters, ai.WithProbeTimeout(cfg.AI.ProbeTimeout))
	invoker := ai.NewInvoker(adapters)

	var places schedule.PlaceFinder
	if cfg.Maps.APIKey != "" {
		placesSvc, err := maps.NewPlacesService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		places = placesSvc
	}

	hub := notify.NewHub()

	recommendStore := recommend.NewPGStore(dbPool)
	recommendSvc := recommend.NewService(recommendStore, invoker)

	scheduleStore := schedule.NewPGStore(dbPool)
	scheduleSvc := schedule.NewService(scheduleStore, invoker, places, selector)

	jobStore := job.NewPGStore(dbPool)
	jobQueue := job.NewRedisQueue(redisClient)
	jobSvc := job.NewOrchestrator(jobStore, jobQueue, selector, hub,
		schedule.FullExecutor{Service: scheduleSvc},
		schedule.DayExecutor{Service: scheduleSvc},
		recommendSvc,
	)

	if err := jobSvc.RequeuePending(ctx); err != nil {
		log.Printf("requeue pending: %v", err)
	}

	go jobSvc.RunWorkers(ctx, cfg.Workers.Count)
	go jobSvc.RunRetrySweeper(ctx)
	go runCleanupTicker(ctx, jobSvc, recommendSvc, cfg.Workers.JobRetentionDays)

	handler := httptransport.NewRouter(jobSvc, recommendSvc, scheduleSvc, hub)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func runCleanupTicker(ctx context.Context, jobs *job.Orchestrator, recs *recommend.Service, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retention := time.Duration(retentionDays) * 24 * time.Hour
			if n, err := jobs.CleanupOldJobs(ctx, retention); err != nil {
				log.Printf("job cleanup: %v", err)
			} else if n > 0 {
				log.Printf("job cleanup: removed %d old jobs", n)
			}
			if n, err := recs.CleanupExpired(ctx, retention); err != nil {
				log.Printf("recommendation cleanup: %v", err)
			} else if n > 0 {
				log.Printf("recommendation cleanup: removed %d entries", n)
			}
		}
	}
}
