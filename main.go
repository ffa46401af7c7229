// Command battleship starts the two-player battleship server.
//
// It supports two modes:
//  1. default: runs the HTTP server exposing the REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Every flag can also be set through a BATTLESHIP_* environment variable or a
// .env file in the working directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/battleship/api"
	"github.com/wricardo/mcp-training/battleship/game/config"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/session"
	"github.com/wricardo/mcp-training/battleship/transport/mcp"
	"github.com/wricardo/mcp-training/battleship/transport/natsbus"
	"github.com/wricardo/mcp-training/battleship/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Battleship Game Server"
)

const defaultAPIURL = "http://localhost:8080"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "battleship",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   config.DefaultHost,
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("BATTLESHIP_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("BATTLESHIP_PORT", "PORT"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("BATTLESHIP_DEBUG"),
			},
			&cli.DurationFlag{
				Name:    "idle-timeout",
				Value:   config.DefaultIdleTimeout,
				Usage:   "Close rooms with no activity for this long (0 disables)",
				Sources: cli.EnvVars("BATTLESHIP_IDLE_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "reap-interval",
				Value:   config.DefaultReapInterval,
				Usage:   "How often idle rooms are checked",
				Sources: cli.EnvVars("BATTLESHIP_REAP_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "results-history",
				Value:   config.DefaultResultsHistory,
				Usage:   "Finished games kept in memory",
				Sources: cli.EnvVars("BATTLESHIP_RESULTS_HISTORY"),
			},
			&cli.IntFlag{
				Name:    "max-ships",
				Usage:   "Maximum ships per fleet (0 is unlimited)",
				Sources: cli.EnvVars("BATTLESHIP_MAX_SHIPS"),
			},
			&cli.IntFlag{
				Name:    "max-ship-cells",
				Usage:   "Maximum cells per ship (0 is unlimited)",
				Sources: cli.EnvVars("BATTLESHIP_MAX_SHIP_CELLS"),
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "Mirror room events to this NATS server",
				Sources: cli.EnvVars("BATTLESHIP_NATS_URL", "NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-subject",
				Value:   config.DefaultNATSSubject,
				Usage:   "Subject prefix for mirrored events",
				Sources: cli.EnvVars("BATTLESHIP_NATS_SUBJECT"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("BATTLESHIP_NGROK", "NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runHTTPServer,
		Commands: []*cli.Command{
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server, with an internal HTTP API if none is reachable",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   defaultAPIURL,
						Usage:   "REST API the MCP tools call",
						Sources: cli.EnvVars("BATTLESHIP_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
		},
	}
}

// configFromCommand collects and validates the flag values
func configFromCommand(cmd *cli.Command) (config.Config, error) {
	cfg := config.Config{
		Host:           cmd.String("host"),
		Port:           int(cmd.Int("port")),
		Debug:          cmd.Bool("debug"),
		IdleTimeout:    cmd.Duration("idle-timeout"),
		ReapInterval:   cmd.Duration("reap-interval"),
		ResultsHistory: int(cmd.Int("results-history")),
		MaxShips:       int(cmd.Int("max-ships")),
		MaxShipCells:   int(cmd.Int("max-ship-cells")),
		NATSURL:        cmd.String("nats-url"),
		NATSSubject:    cmd.String("nats-subject"),
		Ngrok:          cmd.Bool("ngrok"),
		NgrokAuth:      cmd.String("ngrok-auth"),
		NgrokDomain:    cmd.String("ngrok-domain"),
	}
	return cfg, cfg.Validate()
}

// newLogger writes to stderr so the stdio MCP transport keeps stdout
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: debug}))
}

// services is everything one server process runs
type services struct {
	hub     *websocket.Hub
	game    service.GameService
	handler http.Handler
	nats    io.Closer
}

// initializeServices wires the hub, the optional NATS mirror, the room
// registry, and the REST/WebSocket handler. The caller runs the hub.
func initializeServices(cfg config.Config, logger *slog.Logger) (*services, error) {
	hub := websocket.NewHub(logger)

	var broadcaster session.Broadcaster = hub
	var closer io.Closer
	if cfg.NATSURL != "" {
		conn, err := natsbus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		broadcaster = natsbus.NewMirror(hub, conn, cfg.NATSSubject, logger)
		closer = drainer{conn.Drain}
		logger.Info("mirroring room events to NATS", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
	}

	manager := session.NewManager(logger,
		session.WithBroadcaster(broadcaster),
		session.WithRules(cfg.Rules()),
		session.WithResultHistory(cfg.ResultsHistory),
	)
	gameService := service.NewGameService(manager, logger)
	wsHandler := websocket.NewHandler(hub, gameService, logger)

	return &services{
		hub:     hub,
		game:    gameService,
		handler: api.NewServer(gameService, http.HandlerFunc(wsHandler.HandleWebSocket), logger),
		nats:    closer,
	}, nil
}

func (s *services) Close() error {
	if s.nats == nil {
		return nil
	}
	return s.nats.Close()
}

type drainer struct{ drain func() error }

func (d drainer) Close() error { return d.drain() }

// newMainRouter combines the API with the /mcp HTTP endpoint
func newMainRouter(apiHandler http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiHandler)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
	return mainRouter
}

// reapIdleRooms closes rooms that stopped moving until ctx is done
func reapIdleRooms(ctx context.Context, gameService service.GameService, cfg config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := gameService.ReapIdle(ctx, cfg.IdleTimeout); removed > 0 {
				logger.Info("reaped idle rooms", "count", removed, "idle_timeout", cfg.IdleTimeout)
			}
		}
	}
}

// localURL is the address the in-process MCP client dials
func localURL(cfg config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Debug)
	logger.Info("starting", "app", AppName, "version", Version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.hub.Run(ctx)
	}()

	if !cfg.Ngrok && cfg.NgrokDomain != "" {
		logger.Warn("ngrok-domain is ignored without --ngrok", "domain", cfg.NgrokDomain)
	}

	if cfg.IdleTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reapIdleRooms(ctx, svc.game, cfg, logger)
		}()
	}

	mainRouter := newMainRouter(svc.handler, mcp.NewClient(localURL(cfg)))

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Addr())
		logger.Info("endpoints",
			"rest", "http://"+cfg.Addr()+"/api",
			"websocket", "ws://"+cfg.Addr()+"/ws",
			"mcp", "http://"+cfg.Addr()+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, mainRouter, logger)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err = <-serveErr:
		logger.Error("HTTP server failed", "error", err)
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg config.Config, handler http.Handler, logger *slog.Logger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Info("using custom ngrok domain", "domain", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"rest", ngrokURL+"/api",
		"websocket", strings.Replace(ngrokURL, "https://", "wss://", 1)+"/ws",
		"mcp", ngrokURL+"/mcp",
		"qr", ngrokURL+"/qr?url="+ngrokURL+"/api/rules")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// apiAvailable reports whether a battleship API answers at baseURL
func apiAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(strings.TrimSuffix(baseURL, "/") + "/healthz")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It reuses the API at --api-url when
// one answers, otherwise it starts an internal HTTP API bound to a random
// loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Debug)

	baseURL := cmd.String("api-url")
	if apiAvailable(baseURL) {
		logger.Info("external API server found, using it for MCP", "url", baseURL)
	} else {
		logger.Info("no external API server found, starting internal HTTP server", "checked", baseURL)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		svc, err := initializeServices(cfg, logger)
		if err != nil {
			listener.Close()
			return err
		}
		defer svc.Close()
		go svc.hub.Run(ctx)
		if cfg.IdleTimeout > 0 {
			go reapIdleRooms(ctx, svc.game, cfg, logger)
		}

		internal := &http.Server{Handler: svc.handler}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer internal.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server started", "url", baseURL)
	}

	// Create MCP client pointing to the selected server
	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
