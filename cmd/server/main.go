package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fleettrack/internal/cache"
	"fleettrack/internal/config"
	"fleettrack/internal/core/repository"
	"fleettrack/internal/core/service"
	"fleettrack/internal/dispatch"
	"fleettrack/internal/events"
	"fleettrack/internal/geocode"
	"fleettrack/internal/logger"
	"fleettrack/internal/protocol/server"
)

func main() {
	cfg := config.LoadConfig()

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// Storage: MongoDB when configured, in-memory otherwise so the
	// server still runs for local development.
	var (
		devices      repository.DeviceRepository
		locations    repository.LocationRepository
		trips        repository.TripRepository
		tripSettings repository.TripSettingsRepository
	)
	if cfg.MongoURI != "" {
		db, err := config.ConnectMongoDB(cfg)
		if err != nil {
			zapLogger.Fatal("mongodb connection failed", zap.Error(err))
		}
		zapLogger.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))
		devices = repository.NewMongoDeviceRepository(db)
		locations = repository.NewMongoLocationRepository(db)
		trips = repository.NewMongoTripRepository(db)
		tripSettings = repository.NewMongoTripSettingsRepository(db)
	} else {
		zapLogger.Warn("MONGODB_URI not set, using in-memory storage")
		devices = repository.NewInMemoryDeviceRepository()
		locations = repository.NewInMemoryLocationRepository()
		trips = repository.NewInMemoryTripRepository()
		tripSettings = repository.NewInMemoryTripSettingsRepository()
	}

	cache.Initialize(cfg.RedisURL, zapLogger)
	defer cache.Close()

	var publisher events.Publisher = events.Noop{}
	var mqttPub *events.MQTTPublisher
	if cfg.MQTTBroker != "" {
		pub, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, zapLogger)
		if err != nil {
			zapLogger.Warn("mqtt unavailable, live events disabled", zap.Error(err))
		} else {
			publisher = pub
			mqttPub = pub
			defer pub.Close()
		}
	}

	geocoder := geocode.NewNominatim(cfg.GeocoderBaseURL)

	deviceService := service.NewDeviceService(devices, zapLogger)
	tripService := service.NewTripService(trips, locations, tripSettings, geocoder, zapLogger)
	ingestService := service.NewIngestService(
		deviceService, locations, tripService, publisher,
		uint8(cfg.MinSatellites), zapLogger)

	tcpServer := server.NewTCPServer(server.Config{
		Addr:             cfg.TCPAddr,
		LoginTimeout:     cfg.LoginTimeout,
		IdleTimeout:      cfg.IdleTimeout,
		CommandTimeout:   cfg.CommandTimeout,
		MaxFramingErrors: cfg.MaxFramingErrors,
	}, ingestService, zapLogger)
	if err := tcpServer.Start(); err != nil {
		zapLogger.Fatal("tracker server failed to start", zap.Error(err))
	}

	dispatcher := dispatch.NewDispatcher(tcpServer.Registry(), cfg.CommandTimeout, zapLogger)
	if mqttPub != nil {
		if err := mqttPub.ServeCommands(dispatcher); err != nil {
			zapLogger.Warn("mqtt command relay disabled", zap.Error(err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down")
	tcpServer.Stop()
}
