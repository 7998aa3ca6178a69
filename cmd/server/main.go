package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects"
	"github.com/planora/planora/pkg/authz"
	"github.com/planora/planora/pkg/configuration"
	"github.com/planora/planora/pkg/eventbus"
	"github.com/planora/planora/pkg/metrics"
	"github.com/planora/planora/pkg/middleware"
	"github.com/planora/planora/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}

	authzService, err := authz.NewService(authz.Config{
		ModelPath:  conf.Authz.ModelPath,
		PolicyPath: conf.Authz.PolicyPath,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("failed to initialize authorization: %v", err)
	}
	authz.Setup(authzService)

	bus := newChangeBus(conf, logger)
	defer func() {
		_ = bus.Close()
	}()

	module := projects.NewModule(projects.ModuleOptions{
		Pool:   pool,
		Bus:    bus,
		Logger: logger,
	})

	controllers := module.Controllers()
	if conf.Prometheus.Enabled {
		controllers = append(controllers, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	httpServer := server.NewHTTPServer(controllers, []mux.MiddlewareFunc{
		middleware.WithLogger(logger),
		middleware.WithPool(pool),
	})

	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := httpServer.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// newChangeBus selects the fan-out transport: in-process for a single server,
// Redis pub/sub when multiple servers must share one logical bus.
func newChangeBus(conf *configuration.Configuration, logger *logrus.Logger) eventbus.EventBus {
	if conf.ChangeBus.Transport == "redis" {
		client := redis.NewClient(&redis.Options{Addr: conf.ChangeBus.RedisURL})
		return eventbus.NewRedisBus(logger, client, conf.ChangeBus.QueueSize)
	}
	return eventbus.NewMemoryBus(logger, conf.ChangeBus.QueueSize)
}
