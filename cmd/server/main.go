package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abstracta/skywalking-copilot/internal/agent"
	"github.com/abstracta/skywalking-copilot/internal/agent/openai"
	historyrepo "github.com/abstracta/skywalking-copilot/internal/agent/repository"
	alarmrepo "github.com/abstracta/skywalking-copilot/internal/alarm/repository"
	alarmservice "github.com/abstracta/skywalking-copilot/internal/alarm/service"
	"github.com/abstracta/skywalking-copilot/internal/config"
	"github.com/abstracta/skywalking-copilot/internal/db"
	healthhandler "github.com/abstracta/skywalking-copilot/internal/health/handler"
	"github.com/abstracta/skywalking-copilot/internal/interaction"
	"github.com/abstracta/skywalking-copilot/internal/logger"
	"github.com/abstracta/skywalking-copilot/internal/render"
	"github.com/abstracta/skywalking-copilot/internal/server"
	sessionrepo "github.com/abstracta/skywalking-copilot/internal/session/repository"
	"github.com/abstracta/skywalking-copilot/internal/skywalking"
	"github.com/abstracta/skywalking-copilot/internal/telemetry"
	telemetryotel "github.com/abstracta/skywalking-copilot/internal/telemetry/otel"
	"github.com/abstracta/skywalking-copilot/internal/telemetry/producer"
)

const (
	serviceName     = "skywalking-copilot"
	serviceVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if !cfg.LLMEnabled() {
		return errors.New("config: AZURE_ENDPOINT, AZURE_API_KEY and AZURE_DEPLOYMENT_NAME must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Insecure:       cfg.OTLPInsecure,
	}, log)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown", zap.Error(err))
		}
	}()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	sw, err := skywalking.NewClient(skywalking.Config{
		BaseURL: cfg.SkyWalkingURL,
		Layer:   cfg.SkyWalkingServiceLayer,
	}, skywalking.NewHTTPTransport(cfg.SkyWalkingURL, cfg.SkyWalkingTimeout), log)
	if err != nil {
		return err
	}
	if err := sw.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = sw.Close() }()

	renderer, err := render.New()
	if err != nil {
		return err
	}

	emitters := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AlarmKafkaTopic); kp != nil {
		emitters = append(emitters, kp)
		defer func() { _ = kp.Close() }()
		log.Info("publishing alarm notifications", zap.String("topic", cfg.AlarmKafkaTopic))
	}

	alarms := alarmservice.NewService(sw, alarmrepo.NewPostgresRepository(database), emitters, log)
	interactions := interaction.NewService(sw, alarms, renderer, interaction.Config{
		TracePollRetries: cfg.TracePollRetries,
		TracePollDelay:   cfg.TracePollDelay,
		AlarmWindow:      cfg.AlarmWindow,
		AlarmLimit:       cfg.AlarmLimit,
	}, log)

	llm, err := openai.NewClient(openai.Config{
		Endpoint:   cfg.AzureEndpoint,
		APIKey:     cfg.AzureAPIKey,
		Deployment: cfg.AzureDeploymentName,
		APIVersion: cfg.AzureAPIVersion,
		Model:      cfg.ModelName,
	})
	if err != nil {
		return err
	}
	assistant := agent.New(
		llm,
		agent.NewToolbox(sw, renderer, cfg.DashboardWindow),
		historyrepo.NewPostgresRepository(database),
		agent.Config{SystemPrompt: renderer.SystemPrompt(), MaxIterations: cfg.AgentMaxIterations},
		log,
	)

	health := healthhandler.NewServer(database, sw)
	handler := server.NewHandler(
		sessionrepo.NewPostgresRepository(database),
		assistant,
		interactions,
		renderer,
		health,
		server.HTTPConfig{
			ServiceName:  serviceName,
			AppURL:       cfg.AppURL,
			SupportEmail: cfg.SupportEmail,
			AssetsDir:    cfg.AssetsDir,
		},
		log,
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := server.NewGRPCServer(server.Deps{Health: health}, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		// alarm notifications are emitted in the background
		time.Sleep(telemetry.ShutdownDrainDuration)
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
