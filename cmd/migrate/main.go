package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/customer-segmentation/internal/config"
	infraBQ "github.com/dvloznov/customer-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/customer-segmentation/internal/infra/postgres"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

// target is one sink whose tables can be created ahead of the first run.
type target struct {
	Name    string
	Migrate func(ctx context.Context) error
}

var (
	configPath = flag.String("config", "", "Path to YAML config (default rfm.yaml if present)")
	dryRun     = flag.Bool("dry-run", false, "List the sinks that would be migrated without touching them")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	targets := targetsFor(cfg)
	if len(targets) == 0 {
		log.Info().Msg("No result sinks configured. Nothing to migrate.")
		return
	}

	for _, t := range targets {
		if *dryRun {
			log.Info().Str("sink", t.Name).Msg("[DRY RUN] would migrate")
			continue
		}

		log.Info().Str("sink", t.Name).Msg("[RUN] migrating")
		if err := t.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Str("sink", t.Name).Msg("Migration failed")
		}
		log.Info().Str("sink", t.Name).Msg("[OK] up to date")
	}

	fmt.Printf("Migrated %d sink(s)\n", len(targets))
}

// targetsFor lists the configured sinks that own a schema. Kafka topics
// are created by the broker and are not included.
func targetsFor(cfg *config.Config) []target {
	var targets []target

	if bq := cfg.Sinks.BigQuery; bq.Enabled() {
		table := infraBQ.TableRef{ProjectID: bq.Project, DatasetID: bq.Dataset, TableID: bq.Table}
		targets = append(targets, target{
			Name: "bigquery:" + table.String(),
			Migrate: func(ctx context.Context) error {
				repo, err := infraBQ.NewSegmentRepository(ctx, table)
				if err != nil {
					return err
				}
				defer repo.Close()
				return repo.EnsureTable(ctx)
			},
		})
	}

	if pg := cfg.Sinks.Postgres; pg.Enabled() {
		dsn := pg.DSN
		targets = append(targets, target{
			Name: "postgres",
			Migrate: func(ctx context.Context) error {
				store, err := postgres.NewSegmentStore(ctx, dsn)
				if err != nil {
					return err
				}
				defer store.Close()
				return store.EnsureSchema(ctx)
			},
		})
	}

	return targets
}
