package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/clonehub/config"
	"github.com/yoockh/clonehub/internal/api/handlers"
	"github.com/yoockh/clonehub/internal/api/middleware"
	"github.com/yoockh/clonehub/internal/api/routes"
	"github.com/yoockh/clonehub/internal/cache"
	"github.com/yoockh/clonehub/internal/logger"
	"github.com/yoockh/clonehub/internal/models"
	mongorepo "github.com/yoockh/clonehub/internal/repositories/mongo"
	pgrepo "github.com/yoockh/clonehub/internal/repositories/postgres"
	"github.com/yoockh/clonehub/internal/services"
	"github.com/yoockh/clonehub/internal/storage"
	"github.com/yoockh/clonehub/internal/workers"

	gcs "cloud.google.com/go/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	db := config.MongoDB()
	if err := config.EnsureMongoIndexes(db); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}
	log.Info("MongoDB connected")

	var viewCache cache.Cache = cache.Nop{}
	switch err := config.InitRedis(); {
	case err == nil:
		viewCache = cache.NewRedisCache(config.RedisClient)
		log.Info("Redis connected")
	case errors.Is(err, config.ErrNotConfigured):
		log.Warn("Redis not configured; clone view cache and orphan sweeper disabled")
	default:
		log.WithError(err).Fatal("Redis init error")
	}

	var gcsClient *gcs.Client
	if cfg.BlobBackend == config.BlobGCS || cfg.MediaBackend == config.MediaGCS {
		gcsClient, err = storage.NewGCSClient(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcsClient.Close()
	}

	var blobs storage.BlobStore
	switch cfg.BlobBackend {
	case config.BlobGCS:
		blobs = storage.NewGCSStore(gcsClient, cfg.GCSBucket, "documents")
	default:
		blobs = storage.NewGridFSStore(db, cfg.GridFSBucket)
	}

	var media storage.MediaHost
	switch cfg.MediaBackend {
	case config.MediaCloudinary:
		h, err := storage.NewCloudinaryHost(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.WithError(err).Fatal("Cloudinary init error")
		}
		media = h
	case config.MediaGCS:
		media = storage.NewGCSMediaHost(gcsClient, cfg.GCSBucket)
	default:
		log.Warn("no media host configured; clone images keep the default avatar")
	}

	deps := services.CloneServiceDeps{
		Clones: mongorepo.NewCloneRepo(db),
		Files:  mongorepo.NewFileRepo(db),
		Links:  mongorepo.NewLinkRepo(db),
		Users:  mongorepo.NewUserRepo(db),
		Blobs:  blobs,
		Media:  media,
		Pages:  storage.NewPDFInspector(cfg.PDFInspectMaxBytes),
		Cache:  viewCache,
		Logger: log,
		Config: services.IngestConfig{
			BackendURL:        cfg.BackendURL,
			MediaFolder:       cfg.MediaFolder,
			MediaQuality:      cfg.MediaQuality,
			ImageTimeout:      cfg.ImageUploadTimeout,
			ImageMaxBytes:     cfg.ImageMaxBytes,
			DocumentMaxBytes:  cfg.DocumentMaxBytes,
			DocumentTimeout:   cfg.DocumentUploadTimeout,
			UploadConcurrency: cfg.UploadConcurrency,
			CacheTTL:          cfg.CloneCacheTTL,
		},
	}

	if config.RedisClient != nil {
		sweeper := &workers.OrphanSweeper{
			Redis:  config.RedisClient,
			Store:  blobs,
			Logger: log,
		}
		if err := sweeper.Start(ctx); err != nil {
			log.WithError(err).Fatal("orphan sweeper")
		}
		deps.Orphans = sweeper
	}

	cloneSvc := services.NewCloneService(deps)
	fileSvc := services.NewFileService(deps.Clones, deps.Files, blobs, log, cfg.BackendURL)

	rd := routes.Deps{
		Clone: handlers.NewCloneHandler(cloneSvc),
		File:  handlers.NewFileHandler(fileSvc),
		JWT: middleware.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
	}

	switch err := config.InitPostgres(); {
	case err == nil:
		if err := config.PostgresDB.AutoMigrate(&models.Conversation{}); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
		convSvc := services.NewConversationService(pgrepo.NewConversationRepo(config.PostgresDB))
		rd.Conversation = handlers.NewConversationHandler(convSvc)
		log.Info("PostgreSQL connected")
	case errors.Is(err, config.ErrNotConfigured):
		log.Warn("PostgreSQL not configured; conversation routes disabled")
	default:
		log.WithError(err).Fatal("PostgreSQL init error")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.MultipartMemory
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, rd)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	shutdown(log, srv)
}

func shutdown(log *logrus.Logger, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(ctx)
	}
	if config.RedisClient != nil {
		_ = config.RedisClient.Close()
	}
	log.Info("stopped")
}
