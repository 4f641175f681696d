package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bubblewire/bubblewire/internal/config"
	"github.com/bubblewire/bubblewire/internal/gateway"
	"github.com/bubblewire/bubblewire/internal/llm"
	"github.com/bubblewire/bubblewire/internal/session"
	"github.com/bubblewire/bubblewire/internal/stream"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("bubblewire v%s\n", version)
	case "init":
		if err := initConfig(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "serve":
		if err := serve(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bubblewire - streaming bubble gateway")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bubblewire serve     Start the gateway server")
	fmt.Println("  bubblewire init      Write a starter config file")
	fmt.Println("  bubblewire version   Show version info")
}

func initConfig() error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.CreateFromExample(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func serve() error {
	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Environment from .env, if present; real environment wins.
	godotenv.Load()

	home := config.ResolveHome()
	slog.Info("bubblewire starting", "version", version, "home", home)

	for _, dir := range []string{
		config.SessionDir(),
		config.LogsDir(),
	} {
		os.MkdirAll(dir, 0755)
	}

	cfgPath := config.ResolveConfigPath("")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("config not found, using embedded defaults", "path", cfgPath, "error", err)
		cfg, err = config.LoadFromExample()
		if err != nil {
			return err
		}
	}
	config.Set(cfg)

	store := session.NewStore(cfg.Sessions.Dir)
	if err := store.Load(); err != nil {
		slog.Warn("failed to load session store", "error", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	pipeline := stream.NewPipeline(backend, store, store, pipelineOptions(cfg))

	janitor, err := session.NewJanitor(store, cfg.Sessions.TTL(), cfg.Sessions.JanitorSpec)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := config.NewWatcher(config.Path(), cfg.ReloadDebounce(), func(c *config.Config) {
		pipeline.SetOptions(pipelineOptions(c))
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	srv := gateway.NewServer(config.Get, pipeline, store)
	return srv.Start(ctx)
}

func pipelineOptions(cfg *config.Config) stream.Options {
	return stream.Options{
		PaceInterval: cfg.Chat.PaceInterval(),
		RetryBackoff: cfg.Chat.RetryBackoff(),
		Phrases:      cfg.Validation,
	}
}

func buildBackend(cfg *config.Config) (llm.Client, error) {
	name, prov, err := config.ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}
	switch prov.ClientType(name) {
	case "anthropic":
		return llm.NewAnthropicClient(prov.APIKey, prov.BaseURL), nil
	default:
		return llm.NewOpenAIClient(prov.APIKey, prov.BaseURL), nil
	}
}
