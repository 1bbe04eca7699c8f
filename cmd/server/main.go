package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"snapfeed/internal/auth"
	"snapfeed/internal/config"
	apphttp "snapfeed/internal/http"
	"snapfeed/internal/repository/sqlstore"
	"snapfeed/internal/service"
	"snapfeed/internal/storage"
	"snapfeed/web"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(sqlstore.Options{
		Driver:          cfg.Database.Driver,
		Path:            cfg.Database.Path,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("init schema: %v", err)
	}

	tokens, err := auth.NewManager(auth.Config{
		Secret:          cfg.Auth.Secret,
		PreviousSecrets: cfg.Auth.PreviousSecrets,
		TokenLifetime:   cfg.Auth.TokenLifetime,
		ResetLifetime:   cfg.Auth.ResetLifetime,
		VerifyLifetime:  cfg.Auth.VerifyLifetime,
	})
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	host, err := buildHost(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup media host: %v", err)
	}

	userService := service.NewUserService(tokens, service.LogNotifier{Logger: logger}, logger)
	postService := service.NewPostService(host, service.PostServiceConfig{
		TempDir: cfg.Upload.TempDir,
		Tag:     cfg.Upload.Tag,
		Logger:  logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(store, userService, postService, apphttp.Options{
		Static:       web.Assets(),
		AllowOrigins: cfg.CORS.AllowOrigins,
		Logger:       logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildHost(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Host, error) {
	switch cfg.Storage.Provider {
	case "imagekit":
		logger.Infof("using imagekit media host (%s)", cfg.ImageKit.URLEndpoint)
		return storage.NewImageKitHost(storage.ImageKitOptions{
			PublicKey:    cfg.ImageKit.PublicKey,
			PrivateKey:   cfg.ImageKit.PrivateKey,
			URLEndpoint:  cfg.ImageKit.URLEndpoint,
			Folder:       cfg.ImageKit.Folder,
			UploadPrefix: cfg.ImageKit.UploadPrefix,
			APIPrefix:    cfg.ImageKit.APIPrefix,
		})
	case "s3":
		return buildS3Host(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Storage.Provider)
	}
}

func buildS3Host(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Host, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	if cfg.Storage.AccessKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Host(client, storage.S3Options{
		Bucket:        cfg.Storage.Bucket,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	}), nil
}
