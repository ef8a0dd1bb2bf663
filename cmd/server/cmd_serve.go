package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duragraph/duragraph/cmd/server/config"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/composition"
	"github.com/duragraph/duragraph/internal/infrastructure/http/handlers"
	httpmw "github.com/duragraph/duragraph/internal/infrastructure/http/middleware"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/tracing"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	otelecho "go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server for graph registration and run submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			tp, err := tracing.NewProvider(ctx, tracing.Config{
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				Insecure:    cfg.Tracing.Insecure,
			})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()

			pool, err := postgres.NewPool(ctx, postgres.Config{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				Database: cfg.Database.Database,
				SSLMode:  cfg.Database.SSLMode,
				MaxConns: cfg.Database.MaxConns,
				MinConns: cfg.Database.MinConns,
			})
			var execRepo *postgres.ExecutionRepository
			var graphRepo workflow.GraphRepository
			if err != nil {
				fmt.Fprintln(os.Stderr, "database unavailable, falling back to in-memory state:", err)
			} else {
				defer postgres.Close(pool)
				execRepo = postgres.NewExecutionRepository(pool)
				graphRepo = postgres.NewGraphRepository(pool, postgres.NewEventStore(pool))
			}

			metrics := monitoring.NewMetrics("duragraph")

			bus := eventbus.New()
			var rt *composition.Runtime
			if execRepo != nil {
				rt = composition.Build(cfg, bus, execRepo, metrics)
			} else {
				rt = composition.Build(cfg, bus, nil, metrics)
			}

			e := echo.New()
			e.HideBanner = true
			e.HTTPErrorHandler = httpmw.ErrorHandler()
			e.Use(echomw.Recover())
			e.Use(otelecho.Middleware(cfg.Tracing.ServiceName))
			e.Use(httpmw.Logger())
			e.Use(httpmw.Metrics(metrics))
			e.Use(httpmw.SimpleRateLimit(20, 40))

			system := handlers.NewSystemHandler(GetVersion().String(), cfg.LLM.DefaultModel, graphStoreLabel(graphRepo))
			e.GET("/ok", system.Ok)
			e.GET("/info", system.Info)
			e.GET("/metrics", httpmw.MetricsEndpoint())

			graphRuns := handlers.NewGraphRunHandler(rt.Engine, rt.Options, graphRepo)
			graphGroup := e.Group("/graphs", httpmw.OptionalAuth(cfg.Auth.JWTSecret))
			if len(cfg.Auth.APIKeys) > 0 {
				graphGroup.Use(httpmw.APIKeyAuth(cfg.Auth.APIKeys))
			}
			graphGroup.POST("", graphRuns.RegisterGraph)
			graphGroup.POST("/:id/runs", graphRuns.CreateRun)

			addr := cfg.ServerAddr()
			go func() {
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					fmt.Fprintln(os.Stderr, "server stopped:", err)
				}
			}()
			fmt.Println("duragraph serving on", addr)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}

// graphStoreLabel reports which workflow.GraphRepository backend /info should
// advertise.
func graphStoreLabel(repo workflow.GraphRepository) string {
	if repo == nil {
		return "memory"
	}
	return "postgres"
}
