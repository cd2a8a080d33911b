package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sleads/portal/pkg/api"
	"github.com/sleads/portal/pkg/audit"
	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/billing"
	"github.com/sleads/portal/pkg/cms"
	"github.com/sleads/portal/pkg/config"
	"github.com/sleads/portal/pkg/dynamic"
	"github.com/sleads/portal/pkg/email"
	"github.com/sleads/portal/pkg/files"
	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/orgs"
	"github.com/sleads/portal/pkg/pdf"
	"github.com/sleads/portal/pkg/projects"
	"github.com/sleads/portal/pkg/storage"
	"github.com/sleads/portal/pkg/tasks"
)

const googleIssuer = "https://accounts.google.com"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := storage.NewPostgres(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		return err
	}
	logger.Info("connected to postgres")

	var redisClient *storage.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("connected to redis")
	} else {
		logger.Warn("no redis URL configured, CMS cache runs in-memory only")
	}

	var s3Client *storage.S3Client
	if cfg.Storage.S3Bucket != "" {
		s3Client, err = storage.NewS3Client(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize S3: %w", err)
		}
	}

	authenticator, err := buildAuthenticator(ctx, cfg, auth.NewPostgresStore(db))
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	// Domain services
	fileService := files.NewPostgresService(db)
	projectService := projects.NewPostgresService(db, fileService)
	orgService := orgs.NewPostgresService(db)

	cache := cms.NewCache(cfg.Storage.L1CacheSize, cfg.Storage.CacheTTL, redisClient, metrics)
	cmsService := cms.NewPostgresService(db, cache)

	queue := tasks.NewPostgresQueue(db, metrics)
	auditService := audit.NewService(db, logger)
	billingService := billing.NewPostgresService(db, queue, auditService, logger)
	dynamicService := dynamic.NewPostgresService(db)

	emailClient := email.NewClient(email.Config{
		BrevoAPIKey:  cfg.Email.BrevoAPIKey,
		ResendAPIKey: cfg.Email.ResendAPIKey,
		FromAddress:  cfg.Email.FromAddress,
		FromName:     cfg.Email.FromName,
	}, logger, metrics)

	// Deferred task worker: the billing send pipeline plus invitation mail
	worker := tasks.NewWorker(queue, tasks.NewRetryPolicy(tasks.DefaultRetryConfig()), metrics)
	pipeline := billing.NewSendPipeline(
		billingService,
		pdf.NewClient(cfg.PDF.RenderURL, metrics),
		pdf.NewS3Uploader(s3Client),
		fileService,
		emailClient,
		orgService,
		logger,
	)
	pipeline.Register(worker)
	worker.Register("invitation_email", invitationEmailHandler(emailClient, orgService, cfg.SiteURL))
	worker.Start(ctx, 5*time.Second)

	// Periodic maintenance
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@hourly", func() {
		if err := orgService.CleanupExpiredInvitations(); err != nil {
			logger.WithError(err).Warn("invitation cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule invitation cleanup: %w", err)
	}
	_, err = scheduler.AddFunc("@every 5m", func() {
		swept, err := queue.SweepStuck(ctx, 15*time.Minute)
		if err != nil {
			logger.WithError(err).Warn("task sweep failed")
			return
		}
		if swept > 0 {
			logger.WithField("count", swept).Info("returned stuck tasks to the queue")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task sweep: %w", err)
	}
	scheduler.Start()

	server := api.NewServer(api.Dependencies{
		Config:        cfg,
		Authenticator: authenticator,
		Orgs:          orgService,
		Projects:      projectService,
		Files:         fileService,
		CMS:           cmsService,
		Billing:       billingService,
		Dynamic:       dynamicService,
		Queue:         queue,
		Audit:         auditService,
		Logger:        logger,
		Metrics:       metrics,
	})

	var handler http.Handler = server.Handler()
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "portal-api")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisUnderlying(redisClient))
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("portal API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := cfg.Watch(gctx, os.Getenv("PORTAL_CONFIG_FILE"), logger); err != nil {
			logger.WithError(err).Warn("config watcher stopped")
		}
		return nil
	})
	if otelProviders != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("failed to create otel metrics: %w", err)
		}
		g.Go(func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					stats := db.Stats()
					otelMetrics.UpdateDBConnectionStats(gctx, stats.InUse, stats.Idle, stats.MaxOpenConnections)
				}
			}
		})
	}

	// Stages run in reverse registration order: storage goes down last,
	// the health server first.
	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("storage", func(context.Context) error {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				return err
			}
		}
		return db.Close()
	})
	sm.RegisterShutdownFunc("telemetry", func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})
	sm.RegisterShutdownFunc("background work", func(context.Context) error {
		scheduler.Stop()
		worker.Stop()
		cancel()
		return nil
	})
	sm.RegisterShutdownFunc("health server", func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := sm.WaitForShutdown(); err != nil {
		return err
	}
	return g.Wait()
}

// buildAuthenticator wires the configured OIDC providers. Returns nil when
// none are configured, which leaves the management API unauthenticated; the
// role middleware then rejects every request.
func buildAuthenticator(ctx context.Context, cfg *config.Config, store auth.Store) (*auth.Authenticator, error) {
	var providers []auth.ProviderConfig

	if cfg.Auth.GoogleClientID != "" {
		providers = append(providers, auth.ProviderConfig{
			Name:         "google",
			Issuer:       googleIssuer,
			ClientID:     cfg.Auth.GoogleClientID,
			ClientSecret: cfg.Auth.GoogleClientSecret,
			RedirectURL:  cfg.SiteURL + "/auth/callback/google",
		})
	}

	// GitHub has no native OIDC login; it is expected behind an
	// OIDC-compliant proxy whose issuer comes from the environment.
	if cfg.Auth.GithubClientID != "" {
		if issuer := os.Getenv("GITHUB_OIDC_ISSUER"); issuer != "" {
			providers = append(providers, auth.ProviderConfig{
				Name:         "github",
				Issuer:       issuer,
				ClientID:     cfg.Auth.GithubClientID,
				ClientSecret: cfg.Auth.GithubClientSecret,
				RedirectURL:  cfg.SiteURL + "/auth/callback/github",
			})
		}
	}

	if len(providers) == 0 {
		return nil, nil
	}
	return auth.NewAuthenticator(ctx, providers, store, cfg.Auth.AdminUserIDs)
}

type invitationEmailPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
	OrgID int64  `json:"org_id"`
}

// invitationEmailHandler mails an organization invitation with its accept
// link. Registered as a deferred task so invitation creation never blocks
// on the email provider.
func invitationEmailHandler(sender email.Sender, orgService orgs.Service, siteURL string) tasks.Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload invitationEmailPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal invitation payload: %w", err)
		}

		orgName := "an organization"
		if org, err := orgService.GetOrganization(payload.OrgID); err == nil {
			orgName = org.Name
		}

		link := fmt.Sprintf("%s/invitations/accept?token=%s", siteURL, payload.Token)
		return sender.Send(ctx, &email.Message{
			To:      payload.Email,
			Subject: fmt.Sprintf("You have been invited to %s", orgName),
			HTMLBody: fmt.Sprintf(
				"<p>You have been invited to join <strong>%s</strong>.</p><p><a href=%q>Accept the invitation</a></p>",
				orgName, link),
		})
	}
}

func redisUnderlying(c *storage.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client()
}
