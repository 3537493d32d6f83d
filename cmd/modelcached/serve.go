package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"modelcache/internal/config"
	"modelcache/internal/httpapi"
	"modelcache/internal/manager"
	"modelcache/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// serveFlags overlay the config file; only flags set on the command line win.
type serveFlags struct {
	addr             string
	modelsDir        string
	defaultModel     string
	policy           string
	maxModels        int
	maxMB            int64
	preloadStrategy  string
	adaptiveStrategy string
	gcPolicy         string
	engine           string
	corsEnabled      bool
	corsOrigins      []string
	acquireTimeout   time.Duration
	logEvents        bool
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache daemon and its HTTP API",
		Example: "  modelcached serve --models-dir ~/models/llm --max-models 2\n" +
			"  modelcached serve --config modelcache.yaml --log-format json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, f)
		},
	}
	bindServeFlags(cmd.Flags(), f)
	return cmd
}

func bindServeFlags(fl *pflag.FlagSet, f *serveFlags) {
	fl.StringVar(&f.addr, "addr", config.DefaultAddr, "HTTP listen address (defaults MODELCACHE_ADDR)")
	fl.StringVar(&f.modelsDir, "models-dir", config.DefaultModelsDir, "Directory to scan for *.gguf model files (defaults MODELCACHE_MODELS_DIR)")
	fl.StringVar(&f.defaultModel, "default-model", "", "Model id used when a request omits one")
	fl.StringVar(&f.policy, "policy", config.DefaultCachePolicy, "Eviction policy: lru|lfu|fifo")
	fl.IntVar(&f.maxModels, "max-models", config.DefaultMaxModels, "Maximum resident models (0 = unbounded)")
	fl.Int64Var(&f.maxMB, "max-mb", 0, "Cache byte budget in MB (0 = unbounded)")
	fl.StringVar(&f.preloadStrategy, "preload-strategy", config.DefaultPreloadStrategy, "Preload ordering: frequency|recency|size|sequential")
	fl.StringVar(&f.adaptiveStrategy, "adaptive-strategy", config.DefaultAdaptiveStrategy, "Capacity controller: conservative|balanced|aggressive")
	fl.StringVar(&f.gcPolicy, "gc-policy", config.DefaultGCPolicy, "GC policy: mark_and_sweep|generational|reference_count")
	fl.StringVar(&f.engine, "engine", config.DefaultEngineBackend, "Load backend: warm|llama")
	fl.BoolVar(&f.corsEnabled, "cors-enabled", false, "Enable CORS")
	fl.StringSliceVar(&f.corsOrigins, "cors-origins", nil, "Allowed CORS origins (comma separated)")
	fl.DurationVar(&f.acquireTimeout, "acquire-timeout", 0, "Maximum time POST /cache/{id} waits for a load (0 = none)")
	fl.BoolVar(&f.logEvents, "log-events", false, "Log every manager event at debug level")
}

// apply copies the flags the user set onto cfg.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string) bool { return fs.Changed(name) }
	if set("addr") {
		cfg.Addr = f.addr
	}
	if set("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if set("default-model") {
		cfg.DefaultModel = f.defaultModel
	}
	if set("policy") {
		cfg.Cache.Policy = f.policy
	}
	if set("max-models") {
		cfg.Cache.MaxModels = f.maxModels
	}
	if set("max-mb") {
		cfg.Cache.MaxMB = f.maxMB
	}
	if set("preload-strategy") {
		cfg.Preload.Strategy = f.preloadStrategy
	}
	if set("adaptive-strategy") {
		cfg.Adaptive.Strategy = f.adaptiveStrategy
	}
	if set("gc-policy") {
		cfg.GC.Policy = f.gcPolicy
	}
	if set("engine") {
		cfg.Engine.Backend = f.engine
	}
	if set("cors-enabled") {
		cfg.HTTP.CORSEnabled = f.corsEnabled
	}
	if set("cors-origins") {
		cfg.HTTP.CORSOrigins = f.corsOrigins
	}
	if set("acquire-timeout") {
		cfg.HTTP.AcquireTimeoutMs = int(f.acquireTimeout / time.Millisecond)
	}
}

// resolveServeConfig merges file, environment and flags, then applies
// defaults and validates.
func resolveServeConfig(fs *pflag.FlagSet, opts *rootOptions, f *serveFlags) (config.Config, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}
	f.apply(fs, &cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *rootOptions, f *serveFlags) error {
	cfg, err := resolveServeConfig(cmd.Flags(), opts, f)
	if err != nil {
		return err
	}
	level := opts.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	log, err := newLogger(cmd.ErrOrStderr(), level, opts.logFormat)
	if err != nil {
		return err
	}

	mc, err := manager.FromConfig(cfg)
	if err != nil {
		return err
	}
	mc.Logger = &log
	mgr, err := manager.NewWithConfig(mc)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("close manager")
		}
	}()
	if f.logEvents {
		mgr.SetEventPublisher(manager.NewLogPublisher(log, zerolog.DebugLevel))
	}
	models, err := mgr.Discover("")
	if err != nil {
		// Partial discovery still serves what registered.
		log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("discover")
	}
	log.Info().Int("models", len(models)).Str("dir", cfg.ModelsDir).Msg("registry ready")

	if err := metrics.Register(prometheus.DefaultRegisterer, mgr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetAcquireTimeout(time.Duration(cfg.HTTP.AcquireTimeoutMs) * time.Millisecond)
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, cfg.HTTP.CORSMethods, cfg.HTTP.CORSHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := mgr.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("policy", cfg.Cache.Policy).Str("engine", cfg.Engine.Backend).Msg("modelcached listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server error")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return runErr
}
