package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/database"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/repository/history"
	repository "github.com/oshokin/catpoint/internal/repository/state"
	"github.com/oshokin/catpoint/internal/service/security"
	"github.com/oshokin/catpoint/internal/version"
)

// Options controls the catpoint-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the JSON state path of the file storage driver.
	StateFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// statusReadHeaderTimeout bounds slow clients of the status endpoint.
const statusReadHeaderTimeout = 5 * time.Second

// Run starts the panel and blocks until ctx is canceled or the gRPC server stops.
//
//nolint:funlen // Startup wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	configureLogger(settings)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint-server")

	if opts.StateFile != "" {
		settings.Storage.StateFile = opts.StateFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	// The database holds the event history for every storage driver.
	db, err := database.Open(ctx, settings.Storage.Database)
	if err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	var repo repository.Repository

	switch settings.Storage.Driver {
	case config.StorageSQLite:
		repo = repository.NewSQLiteRepository(db)
	default:
		repo = repository.NewFileRepository(settings.Storage.StateFile)
	}

	snapshot, err := loadSnapshot(ctx, repo)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	events := history.NewStore(db)

	engine := security.New(
		newClassifier(settings.Classifier),
		security.WithSnapshot(snapshot),
		security.WithConfidenceThreshold(settings.Classifier.ConfidenceThreshold),
		security.WithObserver(logObserver(ctx)),
		security.WithObserver(events.Observer(ctx)),
	)

	svc := newService(engine, repo, events)

	stopAdapters, err := startAdapters(ctx, settings, engine, svc)
	if err != nil {
		return err
	}

	defer stopAdapters()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(ctx)))
	api.Register(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Catpoint server listening",
		"version", version.Short(),
		"listen_address", listenAddress,
		"storage", settings.Storage.Driver,
		"classifier", settings.Classifier.Kind,
		"alarm_status", snapshot.AlarmStatus,
		"arming_status", snapshot.ArmingStatus)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// configureLogger applies the configured level and format to the global logger.
func configureLogger(settings *config.Config) {
	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		level = logger.Level()
	}

	format, _ := logger.ParseFormat(settings.LogFormat)
	logger.Configure(level, format)
}

// newClassifier builds the configured image classifier.
func newClassifier(settings config.Classifier) classifier.Classifier {
	if settings.Kind == config.ClassifierHTTP {
		return classifier.NewHTTP(settings.Endpoint, settings.Timeout)
	}

	return classifier.NewFake()
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}

// loggingInterceptor names the request logger after the method and logs failures.
func loggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	parent := logger.FromContext(base)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.WithKV(logger.ToContext(ctx, parent), "method", info.FullMethod)
		started := time.Now()

		resp, err := handler(ctx, req)
		if err != nil {
			logger.WarnKV(ctx, "Request failed", "error", err, "duration", time.Since(started).String())
		} else {
			logger.DebugKV(ctx, "Request served", "duration", time.Since(started).String())
		}

		return resp, err
	}
}

// serveStatus runs the websocket status endpoint until ctx is canceled.
func serveStatus(ctx context.Context, address string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler)

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: statusReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusReadHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Status endpoint listening", "listen_address", address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve status: %w", err)
	}

	return nil
}
