package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/errgroup"

	config "github.com/avvvet/matchvote-services/configs"
	mongodb "github.com/avvvet/matchvote-services/internal/db"
	"github.com/avvvet/matchvote-services/internal/matchsvc/audit"
	"github.com/avvvet/matchvote-services/internal/matchsvc/broker"
	"github.com/avvvet/matchvote-services/internal/matchsvc/db"
	"github.com/avvvet/matchvote-services/internal/matchsvc/handlers"
	"github.com/avvvet/matchvote-services/internal/matchsvc/imagestore"
	"github.com/avvvet/matchvote-services/internal/matchsvc/service"
	"github.com/avvvet/matchvote-services/internal/matchsvc/store"
	nats "github.com/avvvet/matchvote-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "match"

func main() {
	config.LoadEnv(SERVICE_NAME)

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	config.Logging(SERVICE_NAME+"_service", settings.LogOutput, settings.LogLevel)
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	if err := settings.RequireDB(); err != nil {
		log.Fatal(err)
	}

	if err := db.Migrate(settings.DBUrl); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// pg connection
	pg, err := db.Connect(settings.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.Close()
	log.Printf("pg connection established successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// NATS is optional: the api works without live events
	var events interface {
		service.EventPublisher
		broker.HeartbeatPublisher
	} = broker.Noop{}
	n, err := nats.Connect(settings.NatsURL, settings.NatsToken, SERVICE_NAME+" service")
	if err != nil {
		log.Warnf("unable to connect to NATS server, events disabled: %v", err)
	} else {
		defer n.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		events = broker.NewBroker(n.Conn)
	}

	// vote ledger is optional too
	var recorder service.VoteRecorder = audit.Noop{}
	if settings.MongoURI != "" {
		mdb, disconnect, err := mongodb.ConnectToDB(settings.MongoURI)
		if err != nil {
			log.Warnf("vote ledger disabled: %v", err)
		} else {
			defer disconnect()
			ledger, err := audit.NewLedger(ctx, mdb, settings.VoteLedgerTTL)
			if err != nil {
				log.Warnf("vote ledger disabled: %v", err)
			} else {
				recorder = ledger
			}
		}
	}

	images, err := newImageStore(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to init image store: %v", err)
	}

	matchStore := store.NewMatchStore(pg)
	matchService := service.NewMatchService(matchStore, events)
	voteService := service.NewVoteService(matchStore, recorder, events)

	sched, err := broker.StartHeartbeat(events, SERVICE_NAME, instanceId, settings.HeartbeatEvery)
	if err != nil {
		log.Fatalf("Failed to start heartbeat: %v", err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(settings.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(settings.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(matchService, voteService, images, handlers.Options{
		Service:       SERVICE_NAME,
		InstanceID:    instanceId,
		VoteRateLimit: settings.VoteRateLimit,
	})
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + settings.MatchServicePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Wait for interrupt signal to gracefully shutdown the server
		<-gCtx.Done()

		if err := sched.Shutdown(); err != nil {
			log.Warnf("heartbeat scheduler shutdown: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("%s service stopped with error: %+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func newImageStore(ctx context.Context, s config.Settings) (imagestore.Store, error) {
	if s.ImageStore == config.ImageStoreR2 {
		return imagestore.NewR2Store(ctx, imagestore.R2Config{
			AccountID:       s.R2AccountID,
			AccessKeyID:     s.R2AccessKeyID,
			SecretAccessKey: s.R2SecretKey,
			BucketName:      s.R2Bucket,
			PublicBaseURL:   s.R2PublicBaseURL,
		})
	}
	return imagestore.NewLocalStore(s.ImageDir, s.ImagePublicPrefix), nil
}
