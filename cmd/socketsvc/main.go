package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/avvvet/matchvote-services/internal/nats"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/matchvote-services/configs"

	"github.com/avvvet/matchvote-services/internal/socketsvc/broker"
	"github.com/avvvet/matchvote-services/internal/socketsvc/handlers"
	"github.com/avvvet/matchvote-services/internal/socketsvc/routes"
	"github.com/avvvet/matchvote-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

// heartbeats missed before the match service is reported down
const missedBeats = 3

func main() {
	config.LoadEnv(SERVICE_NAME)

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	config.Logging(SERVICE_NAME+"_service", settings.LogOutput, settings.LogLevel)
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	// Connect to NATS
	n, err := nats.Connect(settings.NatsURL, settings.NatsToken, SERVICE_NAME+" service")
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}

	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Initialize websocket registry and the broker relaying match events to it
	s := ws.NewWs()
	b := broker.NewBroker(n.Conn, s.Broadcast, missedBeats*settings.HeartbeatEvery)

	subEvents, err := b.Subscribe(comm.SubjectMatchEvents)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.SubjectMatchEvents, err)
		os.Exit(1)
	}
	subHeartbeat, err := b.SubscribeHeartbeat(comm.SubjectHeartbeat)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.SubjectHeartbeat, err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(settings.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(settings.RateLimit, 1*time.Minute))

	// Initialize routes
	routes.SetRoutes(r, handlers.NewHandler(s, instanceId, b.MatchServiceAlive))

	// Create server with timeout settings
	server := &http.Server{
		Addr:        ":" + settings.SocketServicePort,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	subEvents.Unsubscribe()
	subHeartbeat.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
