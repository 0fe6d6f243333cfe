package internal

import (
	"context"
	"fmt"

	"github.com/2beens/workoutlog/internal/backup"
	"github.com/2beens/workoutlog/internal/config"
	"github.com/2beens/workoutlog/internal/db"
	"github.com/2beens/workoutlog/internal/workouts"
	"github.com/2beens/workoutlog/internal/workouts/memory"
	"github.com/2beens/workoutlog/internal/workouts/postgres"
	"github.com/2beens/workoutlog/internal/workouts/sqlite"
	"github.com/2beens/workoutlog/internal/workouts/tablestore"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type StoreSecrets struct {
	PostgresUser     string
	PostgresPassword string
	TableStoreKey    string
	TracingEnabled   bool
}

// OpenedStore is the record store over the configured backend, plus what
// the backend needs at shutdown.
type OpenedStore struct {
	Store *workouts.Store
	// Collector exports backend pool stats, nil when the backend has none.
	Collector prometheus.Collector
	close     func()
}

func (o *OpenedStore) Close() {
	if o.close != nil {
		o.close()
	}
}

func OpenStore(ctx context.Context, cfg *config.Config, secrets StoreSecrets) (*OpenedStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         secrets.PostgresUser,
			DBPassword:     secrets.PostgresPassword,
			TracingEnabled: secrets.TracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}

		repo := postgres.NewRepo(dbPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Errorf("ensure workouts schema: %s", err)
		}

		return &OpenedStore{
			Store: workouts.NewStore(repo),
			Collector: pgxpoolprometheus.NewCollector(
				dbPool,
				map[string]string{"db_name": cfg.PostgresDBName},
			),
			close: func() {
				log.Debugln("closing db pool ...")
				dbPool.Close() // blocking operation
				log.Debugln("db pool closed")
			},
		}, nil
	case config.BackendSqlite:
		backend, err := sqlite.Open(cfg.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &OpenedStore{
			Store: workouts.NewStore(backend),
			close: func() {
				if err := backend.Close(); err != nil {
					log.Errorf("close sqlite: %s", err)
				}
			},
		}, nil
	case config.BackendTableStore:
		if secrets.TableStoreKey == "" {
			log.Warnln("table store api key not set")
		}
		client := tablestore.NewClient(cfg.TableStoreURL, cfg.TableStoreTable, secrets.TableStoreKey)
		return &OpenedStore{Store: workouts.NewStore(client)}, nil
	case config.BackendMemory:
		log.Warnln("using the in-memory backend, workouts are lost on restart")
		return &OpenedStore{Store: workouts.NewStore(memory.NewBackend())}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

type ArchiveSecrets struct {
	S3AccessKeyID     string
	S3SecretAccessKey string
	// GDriveCredentials is a service account credentials json
	GDriveCredentials []byte
}

// OpenArchiver returns the configured off-site archiver, nil when none is configured.
func OpenArchiver(ctx context.Context, cfg *config.Config, secrets ArchiveSecrets) (backup.Archiver, error) {
	switch cfg.BackupArchive {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveS3:
		archiver, err := backup.NewS3Archiver(ctx, backup.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     secrets.S3AccessKeyID,
			SecretAccessKey: secrets.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return archiver, nil
	case config.ArchiveGDrive:
		if len(secrets.GDriveCredentials) == 0 {
			return nil, fmt.Errorf("google drive credentials not set")
		}
		archiver, err := backup.NewDriveArchiver(ctx, cfg.GDriveFolderName, option.WithCredentialsJSON(secrets.GDriveCredentials))
		if err != nil {
			return nil, err
		}
		return archiver, nil
	default:
		return nil, fmt.Errorf("unknown backup archive: %s", cfg.BackupArchive)
	}
}
