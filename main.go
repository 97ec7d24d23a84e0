package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"jobledger/config"
	"jobledger/consul"
	"jobledger/handler"
	"jobledger/hub"
	"jobledger/job"
	"jobledger/ledger"
	"jobledger/logger"
	"jobledger/model"
	"jobledger/nomad"
	"jobledger/runtime"
	"jobledger/saga"
	"jobledger/storage"
	"jobledger/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogJSON); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Job table
	jobs := model.DefaultJobs()
	if cfg.JobsFile != "" {
		jobs, err = model.LoadJobs(cfg.JobsFile)
		if err != nil {
			log.Fatalw("jobs", "error", err)
		}
	}
	log.Infow("jobs loaded", "jobs", jobs.Names())

	probes := map[string]handler.Probe{}

	// Container runtime
	var runner runtime.Runner
	switch cfg.Runtime {
	case config.RuntimeNomad:
		nomadClient, err := nomad.NewClient(cfg.NomadAddr, cfg.NomadDatacenter)
		if err != nil {
			log.Fatalw("nomad", "error", err)
		}
		if err := nomadClient.Healthy(); err != nil {
			log.Warnw("nomad not healthy", "addr", cfg.NomadAddr, "error", err)
		}
		runner = nomad.NewRunner(nomadClient)
	case config.RuntimeCLI:
		runner = runtime.NewCLIRunner()
	default:
		runner = runtime.NewDockerRunner(runtime.ParseStrategies(cfg.DockerHosts, cfg.ConnectTimeout))
	}
	probes[runner.Name()] = runner.Ping
	if err := runner.Ping(ctx); err != nil {
		log.Warnw("container engine unavailable, runs will fail until it answers", "runtime", runner.Name(), "error", err)
	}

	l := ledger.New()
	exec := job.NewExecutor(runner, l, jobs, cfg.MaxConcurrent)
	exec.DefaultTimeout = cfg.RunTimeout
	exec.Memory = cfg.RunMemory
	exec.Network = cfg.RunNetwork

	opts := handler.Options{Runtime: runner.Name(), Version: Version}

	// Database
	var sagaStore saga.Store = saga.NewMemoryStore(saga.DefaultMemoryCapacity)
	if cfg.DatabaseURL != "" {
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warnw("database unavailable, history disabled", "error", err)
		} else if err := store.Migrate(ctx, db); err != nil {
			log.Warnw("migration failed, history disabled", "error", err)
			db.Close()
		} else {
			defer db.Close()
			exec.History = db
			opts.History = db
			sagaStore = saga.NewPostgresStore(db.Pool)
			probes["postgres"] = db.Healthy
			log.Info("postgres connected")
		}
	}
	exec.Sagas = sagaStore
	opts.Sagas = sagaStore

	// S3
	if cfg.S3Endpoint != "" {
		s3Client, err := storage.NewClient(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Warnw("S3 storage unavailable", "error", err)
		} else if err := s3Client.EnsureBucket(ctx); err != nil {
			log.Warnw("S3 bucket unavailable, archive disabled", "bucket", cfg.S3Bucket, "error", err)
		} else {
			exec.Archive = s3Client
			opts.Outputs = s3Client
			probes["s3"] = s3Client.Healthy
			log.Infow("S3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", s3Client.Bucket())
		}
	}

	// WebSocket hub
	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins...)
	ws := hub.New(allowedOrigins)
	go ws.Run(ctx)
	exec.Events = ws

	// Scheduler
	sched := job.NewScheduler(exec)
	sched.Sync(jobs)
	sched.Start()
	opts.Schedule = sched

	// Consul
	var consulClient *consul.Client
	if cfg.ConsulAddr != "" {
		consulClient, err = consul.NewClient(cfg.ConsulAddr)
		if err != nil {
			log.Warnw("consul unavailable", "error", err)
			consulClient = nil
		} else {
			probes["consul"] = func(context.Context) error { return consulClient.Healthy() }
		}
	}

	r := newRouter(cfg, exec, l, jobs, opts, probes, ws, allowedOrigins)

	addr := cfg.BindAddr + ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Infow("jobledger listening", "version", Version, "addr", addr, "runtime", runner.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server", "error", err)
		}
	}()

	if consulClient != nil {
		if err := consulClient.Register(cfg.ServiceName, cfg.BindAddr, cfg.Port); err != nil {
			log.Warnw("consul registration failed", "error", err)
		} else {
			log.Infow("registered in consul", "service", cfg.ServiceName)
		}
	}

	<-ctx.Done()

	log.Info("shutting down...")
	if consulClient != nil {
		if err := consulClient.Deregister(); err != nil {
			log.Warnw("consul deregistration failed", "error", err)
		}
	}
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("server shutdown", "error", err)
	}
}
