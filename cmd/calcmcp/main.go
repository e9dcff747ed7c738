// Command calcmcp serves the calculator MCP tool over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/localrivet/calcmcp/auth"
	"github.com/localrivet/calcmcp/config"
	"github.com/localrivet/calcmcp/logx"
	"github.com/localrivet/calcmcp/resolver"
	"github.com/localrivet/calcmcp/server"
	"github.com/localrivet/calcmcp/tools"
	mcphttp "github.com/localrivet/calcmcp/transport/http"
)

const serverName = "calculator-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "calcmcp: %v\n", err)
		os.Exit(2)
	}

	logger, err := logx.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calcmcp: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	res := resolver.New(
		resolver.WithTimeout(cfg.FetchTimeout),
		resolver.WithMaxBodyBytes(cfg.MaxBodyBytes),
		resolver.WithLogger(logger),
	)

	srv := server.NewServer(serverName, server.WithLogger(logger))
	tools.RegisterCalculator(srv, res)

	validator := auth.NewAPIKeyValidator(cfg.APIKey)
	if !validator.Configured() {
		logger.Warn("API_KEY is not set; tool routes will answer with a configuration error")
	}
	gate := &auth.Gate{Validator: validator, Origins: cfg.AllowedOrigins}

	transport := mcphttp.NewTransport(mcphttp.Config{
		Addr:              cfg.Addr,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		HealthRequireAuth: cfg.HealthRequireAuth,
	}, srv, gate, logger)

	if err := transport.Start(); err != nil {
		logger.Error("failed to start HTTP transport", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}
	logger.Info("calcmcp started",
		"addr", transport.Addr(),
		"origin_check", cfg.AllowedOrigins.Enabled(),
		"fetch_timeout", cfg.FetchTimeout.String(),
	)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return transport.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("calcmcp exited", "code", exitCode)
	os.Exit(exitCode)
}
