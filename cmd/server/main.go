package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"w3itch.games/internal/config"
	"w3itch.games/internal/hostfs"
	"w3itch.games/internal/hosting/deploylog"
	"w3itch.games/internal/hosting/engine"
	"w3itch.games/internal/hosting/hostdb"
	"w3itch.games/internal/hosting/sandbox"
	"w3itch.games/internal/hosting/staging"
	"w3itch.games/internal/transport/web"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to hostd.yaml (empty: defaults + env)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "hosting data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[hostd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	layout := hostfs.NewLayout(cfg.DataDir)
	if err := layout.Ensure(); err != nil {
		logger.Fatalf("prepare data dir: %v", err)
	}

	store, err := hostdb.Open(layout.DBPath())
	if err != nil {
		logger.Fatalf("open host db: %v", err)
	}
	defer store.Close()

	ports, err := sandbox.NewAllocator(cfg.Sandbox.BasePort, store)
	if err != nil {
		logger.Fatalf("load port bindings: %v", err)
	}

	hub := sandbox.NewLogHub()
	sup := sandbox.NewSupervisor(cfg.Sandbox.Binary, cfg.SandboxStopTimeout(), hub, logger)

	deploys := deploylog.New(layout.DeployLogDir())
	defer deploys.Close()

	deployer := staging.NewDeployer(logger)
	indexTool := staging.IndexTool{
		Bin:    cfg.EasyRPG.IndexTool,
		Depth:  cfg.EasyRPG.IndexDepth,
		Strict: cfg.EasyRPG.IndexStrict,
		Log:    logger,
	}

	handlers := map[engine.Engine]engine.Handler{
		engine.EasyRPG:      engine.NewEasyRPGHandler(layout, deployer, indexTool),
		engine.HTML:         engine.NewHTMLHandler(layout, deployer),
		engine.Downloadable: engine.NewDownloadHandler(),
	}
	if cfg.Sandbox.Binary != "" {
		handlers[engine.Sandbox] = engine.NewSandboxHandler(layout, deployer, ports, sup, cfg.Sandbox.GameID, logger)
	} else {
		logger.Printf("sandbox engine disabled (no binary configured)")
	}
	dispatcher := engine.NewDispatcher(handlers)

	ctx, cancel := signalContext()
	defer cancel()

	// Bring previously deployed worlds back up before serving traffic.
	if cfg.Sandbox.Binary != "" {
		resumeWorlds(ctx, layout, ports, sup, logger)
	}

	srv := web.NewServer(web.Options{
		Layout:         layout,
		Dispatcher:     dispatcher,
		Store:          store,
		DeployLog:      deploys,
		Ports:          ports,
		Supervisor:     sup,
		LogHub:         hub,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", srv.WriteMetrics)
	srv.Register(mux)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (engines: %v)", cfg.Listen, dispatcher.Engines())
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.SandboxStopTimeout()+5*time.Second)
	defer stopCancel()
	sup.Close(stopCtx)
}

// resumeWorlds restarts the server for every world whose directory survived
// the last shutdown. A world that fails to start is logged and skipped; its
// next upload retries.
func resumeWorlds(ctx context.Context, layout hostfs.Layout, ports *sandbox.Allocator, sup *sandbox.Supervisor, logger *log.Logger) {
	for world, port := range ports.Bindings() {
		if _, err := os.Stat(layout.World(world)); err != nil {
			continue
		}
		cfgPath := layout.ServerConfig(port)
		if err := sandbox.ApplyPortConfig(cfgPath, port, world); err != nil {
			logger.Printf("resume world %s: %v", world, err)
			continue
		}
		if err := sup.Start(ctx, world, port, cfgPath); err != nil {
			logger.Printf("resume world %s on port %d: %v", world, port, err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
