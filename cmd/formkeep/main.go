// Command formkeep is the form-state preservation daemon. It attaches to a
// browser, watches the configured pages and persists in-progress form input
// so it survives client-driven navigations.
//
// Usage:
//
//	formkeep -config formkeep.yaml          # preserve forms on configured pages
//	formkeep -url https://example.com/form  # quick single-page mode
//	formkeep -config formkeep.yaml -mcp     # additionally serve MCP tools on stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/formkeep"
	"github.com/hazyhaar/formkeep/form/rodform"
	"github.com/hazyhaar/formkeep/internal/idgen"
	"github.com/hazyhaar/formkeep/store"
)

func main() {
	configPath := flag.String("config", "", "path to formkeep.yaml config file")
	singleURL := flag.String("url", "", "preserve forms on a single URL")
	listen := flag.String("listen", ":8732", "diagnostics HTTP address, empty to disable")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *listen, *serveMCP); err != nil {
		logger.Error("formkeep: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, listen string, serveMCP bool) error {
	cfg, err := resolveConfig(configPath, singleURL)
	if err != nil {
		return err
	}
	if len(cfg.Pages) == 0 {
		fmt.Fprintln(os.Stderr, "usage: formkeep -config <file> | -url <url>")
		os.Exit(1)
	}

	kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	sess, err := rodform.Connect(ctx, rodform.Config{
		RemoteURL: cfg.Browser.Remote,
		Stealth:   cfg.Browser.Stealth,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	keepers := make(map[string]*formkeep.Keeper, len(cfg.Pages))
	order := make([]string, 0, len(cfg.Pages))
	for _, pc := range cfg.Pages {
		page, err := sess.Open(ctx, pc.URL)
		if err != nil {
			logger.Error("formkeep: open page", "id", pc.ID, "url", pc.URL, "error", err)
			continue
		}
		defer page.Close()

		k, err := formkeep.New(cfg, kv, page.Discoverer(ctx), formkeep.WithLogger(logger))
		if err != nil {
			return err
		}
		k.SetPageURL(pc.URL)
		k.Rebuild(ctx)

		keepers[pc.ID] = k
		order = append(order, pc.ID)
		logger.Info("formkeep: page attached", "id", pc.ID, "url", pc.URL)
	}
	if len(keepers) == 0 {
		return fmt.Errorf("formkeep: no page could be opened")
	}

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "formkeep",
			Version: "1.0.0",
		}, nil)
		// Tool names are global per server, so only the first page's
		// keeper is exposed over MCP.
		keepers[order[0]].RegisterMCP(mcpSrv)
		if len(order) > 1 {
			logger.Warn("formkeep: MCP exposes first page only", "id", order[0])
		}
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("formkeep: MCP server", "error", err)
			}
		}()
	}

	var srv *http.Server
	if listen != "" {
		r := chi.NewRouter()
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if len(order) == 1 {
			r.Mount("/", keepers[order[0]].Routes())
		} else {
			for id, k := range keepers {
				r.Mount("/pages/"+id, k.Routes())
			}
		}

		srv = &http.Server{
			Addr:              listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			logger.Info("formkeep: diagnostics server starting", "addr", listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("formkeep: diagnostics server", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("formkeep: shutting down")

	// Flush pending debounces before the tabs go away.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, k := range keepers {
		k.PageUnloading(flushCtx)
	}

	if srv != nil {
		if err := srv.Shutdown(flushCtx); err != nil {
			logger.Error("formkeep: shutdown", "error", err)
		}
	}
	return nil
}

func resolveConfig(configPath, singleURL string) (*formkeep.Config, error) {
	var cfg *formkeep.Config
	if configPath != "" {
		c, err := formkeep.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = formkeep.DefaultConfig()
	}
	if singleURL != "" {
		cfg.Pages = []formkeep.PageConfig{{ID: idgen.New(), URL: singleURL}}
	}
	return cfg, nil
}

func openStore(cfg *formkeep.Config) (store.KV, error) {
	if cfg.StorageType == formkeep.StorageBrowser {
		return store.OpenSQLite(cfg.DBPath)
	}
	return store.NewMemory(), nil
}
