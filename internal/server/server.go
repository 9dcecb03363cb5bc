package server

import (
	"fmt"
	"net/http"
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	metrics     *metrics.Collector
	now         func() time.Time
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, collector *metrics.Collector) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, collector)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, collector *metrics.Collector) *Server {
	return &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		metrics:     collector,
		now:         time.Now,
	}
}
