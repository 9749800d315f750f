package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
	"github.com/irdkwmnsb/remotecam/internal/signalling"
	"github.com/irdkwmnsb/remotecam/internal/utils"
)

const defaultConfigDir = "conf"

func main() {
	var logLevel slog.LevelVar
	slog.SetDefault(utils.NewLogger(os.Stderr, &logLevel))

	configDir := os.Getenv("REMOTECAM_CONFIG_DIR")
	if configDir == "" {
		configDir = defaultConfigDir
	}

	manager, err := config.NewManager(configDir)
	if err != nil {
		slog.Error("failed to load config", "dir", configDir, "error", err)
		os.Exit(1)
	}
	defer manager.Close()

	cfg := manager.Get()
	logLevel.Set(utils.ParseLogLevel(cfg.Server.LogLevel))
	metrics.StartTime.Set(float64(time.Now().Unix()))

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	server, err := signalling.NewServer(&cfg, app)
	if err != nil {
		slog.Error("can not start signalling server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager.SetUpdateCallback(func(updated *config.AppConfig) {
		logLevel.Set(utils.ParseLogLevel(updated.Server.LogLevel))
		server.ApplyConfig(updated)
	})

	server.SetupWebSocketsAndApi()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("shutting down")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}()

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	security := cfg.Security
	if security.TLSCrtFile != nil && security.TLSKeyFile != nil {
		slog.Info("running TLS signalling server", "addr", addr)
		err = app.ListenTLS(addr, *security.TLSCrtFile, *security.TLSKeyFile)
	} else {
		slog.Info("running signalling server", "addr", addr)
		err = app.Listen(addr)
	}
	if err != nil {
		slog.Error("signalling server stopped", "error", err)
		os.Exit(1)
	}
}
