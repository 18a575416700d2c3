package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"livemap.ai/internal/logging"
	persistlog "livemap.ai/internal/persistence/log"
	"livemap.ai/internal/persistence/mapstore"
	"livemap.ai/internal/sim/tuning"
	"livemap.ai/internal/sim/world"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
	"livemap.ai/internal/transport/admin"
	"livemap.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults are used when missing)")
		dbPath     = flag.String("db", "", "map store path (default: <data>/maps.sqlite)")
		noLogs     = flag.Bool("disable_crossing_log", false, "disable the crossing/audit JSONL logs")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	tuningMissing := os.IsNotExist(err)
	if err != nil {
		if !tuningMissing {
			zap.NewExample().Fatal("load tuning", zap.Error(err))
		}
		tune = tuning.Defaults()
	}

	logger, err := logging.New(logging.Config{
		Level:      tune.Log.Level,
		File:       tune.Log.File,
		MaxSizeMB:  tune.Log.MaxSizeMB,
		MaxBackups: tune.Log.MaxBackups,
		MaxAgeDays: tune.Log.MaxAgeDays,
	})
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	if tuningMissing {
		logger.Info("tuning not found; using defaults", zap.String("path", *tuningPath))
	}

	ctx, cancel := signalContext()
	defer cancel()

	dbp := strings.TrimSpace(*dbPath)
	if dbp == "" {
		dbp = filepath.Join(*dataDir, "maps.sqlite")
	}
	store, err := mapstore.Open(dbp)
	if err != nil {
		logger.Fatal("open map store", zap.String("path", dbp), zap.Error(err))
	}
	defer store.Close()

	w, err := world.New(world.Config{
		Maps:                tune.Maps,
		DefaultWindow:       tune.DefaultFOV.Window(),
		DefaultVersion:      fov.Version{Major: tune.DefaultLiveVersion.Major, Minor: tune.DefaultLiveVersion.Minor},
		Incremental:         tune.Stream.Incremental,
		MaxBlocksPerRequest: tune.Stream.MaxBlocksPerRequest,
	}, store, logger.Named("world"))
	if err != nil {
		logger.Fatal("world", zap.Error(err))
	}
	w.SetBlockWriter(store)

	if !*noLogs {
		crossings := persistlog.NewCrossingLogger(*dataDir)
		defer crossings.Close()
		audits := persistlog.NewAuditLogger(*dataDir)
		defer audits.Close()
		w.SetCrossingLogger(crossings)
		w.SetAuditLogger(audits)
	}

	worldDone := startWorld(ctx, w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})

	enableAdminHTTP := envBool("LM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("LM_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		mux.Handle("/admin/", localOnly(admin.NewRouter(w, logger.Named("admin"))))
	} else {
		logger.Info("admin endpoints disabled (LM_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, tune.Stream.OutQueue, logger.Named("ws")).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", *addr), zap.Int("maps", len(tune.Maps)), zap.Bool("incremental", tune.Stream.Incremental))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ListenAndServe", zap.Error(err))
	}
	cancel()
	<-worldDone
	logger.Info("world stopped; closing logs and map store")
}

// startWorld runs the world loop. The returned channel is closed once Run has
// returned, after which no more crossing or audit writes happen.
func startWorld(ctx context.Context, w *world.World, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", zap.Error(err))
		}
	}()
	return done
}
