package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/digest"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/project"
	projectrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/project/repo"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-task-go")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	if cfg.EphemeralSecret {
		sugar.Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	// init db
	dbCfg := database.ConfigFromEnv()
	db, err := database.Connect(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := userrepo.NewUserRepo(db)
	projects := projectrepo.NewProjectRepo(db)
	tasks := taskrepo.NewTaskRepo(db)
	if os.Getenv("DB_AUTO_MIGRATE") != "0" {
		for _, ensure := range []func(context.Context) error{users.EnsureTable, projects.EnsureTable, tasks.EnsureTable} {
			if err := ensure(ctx); err != nil {
				sugar.Fatalf("ensure schema: %v", err)
			}
		}
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}
	userSvc := user.NewUserService(users, user.BcryptHasher{Cost: cfg.BcryptCost})
	resolver := auth.NewResolver(tokens, userSvc)

	// notifications: dispatcher for producers, worker for the queue backends
	var sender notify.Sender = notify.LogSender{Logger: sugar}
	if cfg.Notify.SendGridKey != "" {
		sender = notify.NewSendGridSender(cfg.Notify.SendGridKey, cfg.Notify.FromName, cfg.Notify.FromAddress)
	}
	var (
		dispatcher notify.Dispatcher
		source     notify.Source
	)
	switch cfg.Notify.Queue {
	case "redis":
		rdb, err := notify.OpenRedis(ctx, cfg.Notify.RedisURL)
		if err != nil {
			sugar.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		q := notify.NewRedisQueue(rdb, cfg.Notify.RedisKey)
		dispatcher, source = q, q
	case "sync":
		dispatcher = notify.SyncDispatcher{Sender: sender, Timeout: cfg.Notify.SendTimeout}
	default:
		q := notify.NewMemoryQueue(cfg.Notify.MemoryBuffer)
		dispatcher, source = q, q
	}
	workerDone := make(chan struct{})
	if source != nil {
		w := notify.NewWorker(source, sender, sugar, cfg.Notify.SendTimeout, cfg.Notify.WorkerThreads)
		go func() {
			defer close(workerDone)
			w.Run(ctx)
		}()
	} else {
		close(workerDone)
	}
	trigger := notify.NewTrigger(userSvc, dispatcher, sugar)

	projectSvc := project.NewService(projects)
	taskSvc := task.NewService(tasks, projects, task.Defaults{Status: cfg.DefaultStatus, Priority: cfg.DefaultPriority}, sugar, trigger)

	var scheduler *digest.Scheduler
	if cfg.DigestCron != "" {
		scheduler, err = digest.NewScheduler(cfg.DigestCron, digest.NewService(tasks, dispatcher, sugar), sugar)
		if err != nil {
			sugar.Fatalf("digest: %v", err)
		}
		scheduler.Start()
	}

	// mount http server
	handler := router.RegisterRoutes(router.Deps{
		Logger:      sugar,
		Store:       db,
		Users:       user.NewHandler(userSvc, tokens, sugar),
		Projects:    project.NewHandler(projectSvc, sugar),
		Tasks:       task.NewHandler(taskSvc, sugar),
		RequireUser: auth.Middleware(resolver, sugar),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr, "queue", cfg.Notify.Queue)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	if scheduler != nil {
		scheduler.Stop(doneCtx)
	}
	waitWorker(doneCtx, workerDone, sugar)

	sugar.Info("goodbye")
}

func waitWorker(ctx context.Context, done <-chan struct{}, logger *zap.SugaredLogger) {
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("notification worker did not stop in time")
	}
}
