package main

import (
	"context"
	"fmt"

	"github.com/atoz-auto/autoshop-api/config"
	"github.com/atoz-auto/autoshop-api/events"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/realtime"
	"github.com/atoz-auto/autoshop-api/routes"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// application is the fully wired API: router plus everything that needs
// closing on shutdown.
type application struct {
	router  *gin.Engine
	hub     *realtime.Hub
	metrics *metrics.Registry
	closers []func() error
}

// buildApp wires stores, payment processing and the realtime hub onto db.
// Optional backends (Stripe, Redis, Kafka, S3) are used when configured.
func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*application, error) {
	app := &application{metrics: metrics.New()}

	resolver, err := identity.NewResolver(identity.ResolverConfig{
		Secret:    cfg.JWT.Secret,
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		ClockSkew: cfg.JWT.ClockSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("identity resolver: %w", err)
	}

	var gateway services.PaymentGateway
	if cfg.Stripe.SandboxMode() {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, payments run against the sandbox gateway")
		gateway = services.NewSandboxGateway()
	} else {
		stripeGateway, err := services.NewStripeGateway(cfg.Stripe.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("stripe gateway: %w", err)
		}
		gateway = stripeGateway
	}

	var guard services.DeliveryGuard = services.NewMemoryGuard(cfg.Redis.WebhookTTL)
	if cfg.Redis.URL != "" {
		client, err := services.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		redisGuard, err := services.NewRedisGuard(client, cfg.Redis.WebhookTTL, "stripe")
		if err != nil {
			return nil, err
		}
		guard = redisGuard
		log.Info().Dur("ttl", cfg.Redis.WebhookTTL).Msg("webhook dedupe backed by redis")
	}

	var archive services.EventArchive
	if cfg.AWS.S3Bucket != "" {
		s3Archive, err := services.NewS3Archive(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		archive = s3Archive
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("webhook payloads archived to s3")
	}

	orderLookup := services.NewOrderStore(db, nil, nil)
	app.hub = realtime.NewHub(realtime.OrderAuthorizer(orderLookup), realtime.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        app.metrics,
	})

	publishers := events.Multi{app.hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		publishers = append(publishers, kafka)
		app.closers = append(app.closers, kafka.Close)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("order events mirrored to kafka")
	}

	orders := services.NewOrderStore(db, publishers, app.metrics)
	reconciler := services.NewPaymentReconciler(db, gateway, cfg.Stripe.Currency, app.metrics)
	webhooks := services.NewWebhookProcessor(cfg.Stripe.WebhookSecret, reconciler, guard, archive, app.metrics)

	app.router = routes.New(routes.Options{
		Logger:         log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, routes.Dependencies{
		Tokens:    resolver,
		Orders:    orders,
		Payments:  reconciler,
		Webhooks:  webhooks,
		Employees: services.NewEmployeeStore(db),
		Hub:       app.hub,
		Metrics:   app.metrics,
	})

	log.Info().Str("gateway", gateway.Name()).Msg("application wired")
	return app, nil
}

// Close disconnects realtime clients and releases backend connections.
func (a *application) Close() error {
	a.hub.Close()
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}
