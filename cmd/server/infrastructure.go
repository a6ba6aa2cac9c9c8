package main

import (
	"context"
	"fmt"

	"rental_app_backend/internal/config"
	"rental_app_backend/internal/database"
	"rental_app_backend/internal/events"
	"rental_app_backend/internal/geo"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/storage"
	"rental_app_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// infrastructure holds the configured backends and what must be closed on exit.
type infrastructure struct {
	Applications repositories.ApplicationRepository
	Admins       repositories.AdminRepository
	Drafts       repositories.DraftRepository
	Blobs        storage.BlobStore
	Broker       events.Broker
	Sender       notifications.Sender
	Geo          geo.Autocompleter

	closers []func() error
}

func (i *infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			utils.LogWarn(err, "Close failed during shutdown")
		}
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Autosave.Store == "redis" || cfg.Events.Driver == "redis"
}

func buildInfrastructure(ctx context.Context, cfg *config.Config) (*infrastructure, error) {
	infra := &infrastructure{}

	switch cfg.App.Backend {
	case "postgres":
		db, err := database.InitDB(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, db.Close)
		if cfg.Database.Postgres.ApplySchema {
			if err := database.ApplySchema(ctx, db); err != nil {
				infra.Close()
				return nil, err
			}
		}
		infra.Applications = repositories.NewApplicationRepository(db)
		infra.Admins = repositories.NewAdminRepository(db)
	case "memory":
		utils.LogWarn(nil, "Using in-memory application store; data is lost on restart")
		infra.Applications = repositories.NewMemoryApplicationRepository()
		infra.Admins = repositories.NewMemoryAdminRepository()
	default:
		return nil, fmt.Errorf("unknown app backend %q", cfg.App.Backend)
	}

	var rdb *redis.Client
	if needsRedis(cfg) {
		client, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			infra.Close()
			return nil, err
		}
		rdb = client
		infra.closers = append(infra.closers, rdb.Close)
	}

	if cfg.Autosave.Store == "redis" {
		infra.Drafts = repositories.NewRedisDraftRepository(rdb, cfg.Autosave.SnapshotTTL)
	} else {
		infra.Drafts = repositories.NewMemoryDraftRepository()
	}

	if cfg.Events.Driver == "redis" {
		broker := events.NewRedisBroker(rdb, cfg.Events.Channel)
		ready := make(chan struct{})
		go func() {
			if err := broker.Run(ctx, ready); err != nil {
				utils.LogError(err, "Event relay stopped")
			}
		}()
		select {
		case <-ready:
		case <-ctx.Done():
			infra.Close()
			return nil, ctx.Err()
		}
		infra.Broker = broker
	} else {
		infra.Broker = events.NewMemoryBroker()
	}

	if cfg.Storage.Driver == "s3" {
		store, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.S3Bucket, cfg.AWS.EndpointURL)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Blobs = store
	} else {
		infra.Blobs = storage.NewMemoryStore()
	}

	switch cfg.Notifications.Driver {
	case "ses":
		sender, err := notifications.NewAWSSender(ctx, cfg.AWS.Region, cfg.AWS.SESFrom, cfg.AWS.SNSEnabled)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Sender = sender
	case "kafka":
		sender := notifications.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		infra.closers = append(infra.closers, sender.Close)
		infra.Sender = sender
	default:
		infra.Sender = notifications.LogSender{}
	}

	infra.Geo = geo.NewGeoapifyClient(cfg.Geoapify.BaseURL, cfg.Geoapify.APIKey, cfg.Geoapify.Timeout, rdb, cfg.Geoapify.CacheTTL)

	utils.LogInfo("Infrastructure ready", map[string]interface{}{
		"backend":       cfg.App.Backend,
		"autosave":      cfg.Autosave.Store,
		"events":        cfg.Events.Driver,
		"storage":       cfg.Storage.Driver,
		"notifications": cfg.Notifications.Driver,
	})
	return infra, nil
}
