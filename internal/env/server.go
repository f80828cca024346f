package environment

import (
	"context"
	"log/slog"
	"net/http"

	"queue-bot/internal/config"
)

type Servers struct {
	HTTP struct {
		Observability *http.Server
		API           *http.Server
	}
}

func newServers(ctx context.Context, cfg config.Config, logger *slog.Logger, services *Services) *Servers {
	var servers Servers

	servers.HTTP.API = &http.Server{
		Addr:              cfg.API.ADDR(),
		Handler:           services.API.Routes(),
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.WithGroup("http").Handler(), slog.LevelWarn),
	}
	servers.HTTP.Observability = initObservability(ctx, logger.WithGroup("http"), services, cfg)

	return &servers
}
