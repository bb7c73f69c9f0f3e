package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-token-lifecycle/internal/config"
	"github.com/jrsteele09/go-token-lifecycle/server"
	"github.com/jrsteele09/go-token-lifecycle/sessions/oidcsession"
	"github.com/jrsteele09/go-token-lifecycle/token/lifecycle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	EnvFile string `help:"Optional .env file loaded before reading the environment." default:".env" type:"path"`
	Port    string `help:"Listen port, overrides PORT."`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("token-lifecycle"),
		kong.Description("Authenticates against an OIDC provider and keeps the access token fresh."),
	)

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if err := godotenv.Load(CLI.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("godotenv.Load %s: %w", CLI.EnvFile, err)
	}
	if CLI.Port != "" {
		_ = os.Setenv("PORT", CLI.Port)
	}

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager, err := lifecycle.NewManager(oidcsession.New(c), c)
	if err != nil {
		return fmt.Errorf("lifecycle.NewManager: %w", err)
	}

	// The application is only mounted once the startup token is known.
	token, err := manager.Initialize(ctx).Wait(ctx)
	if err != nil {
		return nil // Interrupted during the handshake
	}
	if token == "" {
		log.Warn().Msg("Starting unauthenticated")
	}

	stopRefresh := manager.Start(ctx)
	defer stopRefresh()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           server.New(c, manager),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
