package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/workoutlog/internal"
	"github.com/2beens/workoutlog/internal/backup"
	"github.com/2beens/workoutlog/internal/config"
	"github.com/2beens/workoutlog/internal/logging"
	"github.com/2beens/workoutlog/internal/telemetry/metrics"
	"github.com/2beens/workoutlog/pkg"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var createExportFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

type options struct {
	exportPath  string
	restorePath string
	archive     bool
}

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	exportPath := flag.String("export", "", "write a full csv backup to this path (- for stdout)")
	restorePath := flag.String("restore", "", "replace all workouts with the csv backup at this path")
	archive := flag.Bool("archive", false, "upload a snapshot to the configured backup archive")
	logsPath := flag.String("logs-path", "", "logs file path (empty for stdout)")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of this password for WORKOUTLOG_ADMIN_PASSWORD_HASH and exit")
	flag.Parse()

	if *hashPassword != "" {
		if err := printPasswordHash(*hashPassword, os.Stdout); err != nil {
			log.Fatalf("hash password: %s", err)
		}
		return
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      *logsPath,
		LogToStdout:      *logsPath == "",
		LogLevel:         cfg.LogLevel,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "workoutlog-backups",
	})

	opts := options{
		exportPath:  *exportPath,
		restorePath: *restorePath,
		archive:     *archive,
	}
	if err := opts.validate(); err != nil {
		log.Fatalln(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opened, err := internal.OpenStore(ctx, cfg, internal.StoreSecrets{
		PostgresUser:     os.Getenv("WORKOUTLOG_POSTGRES_USER"),
		PostgresPassword: os.Getenv("WORKOUTLOG_POSTGRES_PASS"),
		TableStoreKey:    os.Getenv("WORKOUTLOG_TABLESTORE_KEY"),
	})
	if err != nil {
		log.Fatalf("open store: %s", err)
	}
	defer opened.Close()

	gdriveCredentials, err := readCredentials(os.Getenv("WORKOUTLOG_GDRIVE_CREDENTIALS"))
	if err != nil {
		log.Fatalf("read google drive credentials: %s", err)
	}
	archiver, err := internal.OpenArchiver(ctx, cfg, internal.ArchiveSecrets{
		S3AccessKeyID:     os.Getenv("WORKOUTLOG_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("WORKOUTLOG_S3_SECRET_ACCESS_KEY"),
		GDriveCredentials: gdriveCredentials,
	})
	if err != nil {
		log.Fatalf("open backup archiver: %s", err)
	}

	metricsManager := metrics.NewManager("backend", "backups", prometheus.NewRegistry())
	service := backup.NewService(opened.Store, archiver, metricsManager)

	start := time.Now()
	if err := run(ctx, opts, service, os.Stdout); err != nil {
		log.Fatalf("%+v", err)
	}
	log.Infof("backups done in %s", time.Since(start))
}

func printPasswordHash(password string, stdout io.Writer) error {
	hash, err := pkg.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

// readCredentials returns nil for an empty path.
func readCredentials(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("credentials file %s not found", path)
	}
	return os.ReadFile(path)
}

func (o options) validate() error {
	set := 0
	for _, on := range []bool{o.exportPath != "", o.restorePath != "", o.archive} {
		if on {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of -export, -restore or -archive must be given")
	}
	return nil
}

func run(ctx context.Context, opts options, service *backup.Service, stdout io.Writer) error {
	switch {
	case opts.exportPath != "":
		return export(ctx, opts.exportPath, service, stdout)
	case opts.restorePath != "":
		f, err := os.Open(opts.restorePath)
		if err != nil {
			return fmt.Errorf("open backup file: %w", err)
		}
		defer f.Close()

		restored, err := service.Restore(ctx, f)
		if err != nil {
			return fmt.Errorf("restore %s: %w", opts.restorePath, err)
		}
		log.Infof("restored %d workouts from %s", len(restored), opts.restorePath)
		return nil
	case opts.archive:
		location, err := service.Archive(ctx)
		if err != nil {
			return err
		}
		log.Infof("backup archived to %s", location)
		return nil
	}
	return opts.validate()
}

func export(ctx context.Context, path string, service *backup.Service, stdout io.Writer) (err error) {
	out := stdout
	if path != "-" {
		f, cErr := createExportFile(path)
		if cErr != nil {
			return fmt.Errorf("create export file: %w", cErr)
		}
		defer func() {
			if cErr := f.Close(); cErr != nil && err == nil {
				err = fmt.Errorf("close export file: %w", cErr)
			}
		}()
		out = f
	}

	count, err := service.WriteBackup(ctx, out)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Infof("exported %d workouts", count)
	return nil
}
