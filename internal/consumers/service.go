package consumers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ticketshow/internal/cache"
	"ticketshow/internal/config"
	"ticketshow/internal/database"
	"ticketshow/internal/external"
	"ticketshow/internal/jobs"
	"ticketshow/internal/logger"
	"ticketshow/internal/messaging"
	"ticketshow/internal/models"
	"ticketshow/internal/notify"
	"ticketshow/internal/repository"
	"ticketshow/internal/scheduler"
	"ticketshow/internal/search"
	"ticketshow/internal/service"

	"github.com/nats-io/stan.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const queueGroup = "notifications"

// ConsumerService runs the delayed job scheduler and the event consumers
type ConsumerService struct {
	db        *database.DB
	nats      *messaging.NATSClient
	valkey    *cache.ValkeyClient
	scheduler *scheduler.Scheduler
	handlers  *Handlers
	metrics   *http.Server

	cfg    *config.Config
	subs   []stan.Subscription
	cancel context.CancelFunc
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Get().Warn("Failed to register pool metrics", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	var repos *repository.Repositories
	if es, err := search.NewElasticsearchClient(cfg.Elasticsearch); err != nil {
		logger.Get().Warn("Elasticsearch unavailable, movie details will be missing from notifications", "error", err)
		repos = repository.NewRepositories(db)
	} else {
		repos = repository.NewRepositoriesWithElasticsearch(db, es)
	}

	// Valkey is optional; without it profiles are not cached and
	// duplicate notifications are not suppressed
	valkey, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		logger.Get().Warn("Valkey unavailable, running without cache", "error", err)
		valkey = nil
	}

	var (
		profileCache service.ProfileCache
		tracker      notify.DeliveryTracker
		evictor      ProfileEvictor
	)
	if valkey != nil {
		profileCache, tracker, evictor = valkey, valkey, valkey
	}

	jobScheduler := scheduler.New(repos.Jobs, cfg.Scheduler)
	profiles := service.NewProfileService(profileCache, external.NewIdentityClient(cfg.Identity), repos.Users)
	bookings := service.NewBookingService(
		repos.Shows,
		repos.Bookings,
		external.NewPaymentClient(cfg.Payment),
		jobScheduler,
		natsClient,
		profiles,
		repos.Movies,
		cfg.Booking,
	)

	dispatcher := notify.NewDispatcher(
		external.NewMailer(cfg.Mailer),
		repos.Bookings,
		repos.Shows,
		repos.Movies,
		repos.Users,
		tracker,
		cfg.Notify,
	)

	cleanup := jobs.NewCleanupJob(repos.Bookings, repos.Shows, repos.Jobs, cfg.Jobs.RetentionMonths)
	if err := jobs.Register(context.Background(), jobScheduler, bookings, cleanup, cfg.Jobs); err != nil {
		natsClient.Close()
		db.Close()
		return nil, err
	}

	return &ConsumerService{
		db:        db,
		nats:      natsClient,
		valkey:    valkey,
		scheduler: jobScheduler,
		handlers:  NewHandlers(dispatcher, repos.Users, evictor),
		cfg:       cfg,
	}, nil
}

// Start subscribes to every consumed subject and starts the job runner
func (cs *ConsumerService) Start() error {
	logger.Get().Info("Starting NATS consumers...")

	routes := map[string]func(context.Context, []byte) error{
		models.EventBookingConfirmed: cs.handlers.HandleBookingConfirmed,
		models.EventShowAdded:        cs.handlers.HandleShowAdded,
		models.EventUserUpserted:     cs.handlers.HandleUserUpserted,
		models.EventUserDeleted:      cs.handlers.HandleUserDeleted,
	}
	for subject, handle := range routes {
		sub, err := cs.nats.SubscribeQueue(subject, queueGroup, cs.deliver(subject, handle))
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs.cancel = cancel
	cs.scheduler.Start(ctx)
	cs.serveMetrics()
	return nil
}

// serveMetrics exposes job and notification counters for scraping
func (cs *ConsumerService) serveMetrics() {
	if cs.cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	cs.metrics = &http.Server{
		Addr:              cs.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Get().Info("Serving consumer metrics", "addr", cs.cfg.MetricsAddr)
		if err := cs.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Error("Metrics listener failed", "error", err)
		}
	}()
}

// deliver adapts a payload handler to a manually acked subscription
func (cs *ConsumerService) deliver(subject string, handle func(context.Context, []byte) error) stan.MsgHandler {
	maxDeliveries := cs.cfg.Notify.MaxDeliveries
	timeout := cs.cfg.NATS.AckWait
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(m *stan.Msg) {
		ctx := logger.ContextWithRequestID(context.Background(), fmt.Sprintf("%s-%d", subject, m.Sequence))
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := handle(ctx, m.Data)
		log := logger.WithContext(ctx).With("subject", subject, "redeliveries", m.RedeliveryCount)
		ack := shouldAck(err, m.RedeliveryCount, maxDeliveries)

		switch {
		case err == nil:
		case ack:
			log.Error("Dropping event", "error", err)
		default:
			log.Warn("Event handling failed, awaiting redelivery", "error", err)
		}

		if ack {
			if err := m.Ack(); err != nil {
				log.Error("Failed to ack message", "error", err)
			}
		}
	}
}

// Shutdown stops the job runner and closes subscriptions and connections
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	if cs.cancel != nil {
		cs.cancel()
	}

	stopped := make(chan struct{})
	go func() {
		cs.scheduler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Get().Warn("Job runner did not stop in time")
	}

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			logger.Get().Warn("Failed to close subscription", "error", err)
		}
	}

	if cs.metrics != nil {
		if err := cs.metrics.Shutdown(ctx); err != nil {
			logger.Get().Warn("Failed to stop metrics listener", "error", err)
		}
	}

	if err := cs.nats.Close(); err != nil {
		logger.Get().Error("Error closing NATS connection", "error", err)
	}
	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}
	return cs.db.Close()
}
