package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/customer-segmentation/internal/config"
	"github.com/dvloznov/customer-segmentation/internal/dataset"
	"github.com/dvloznov/customer-segmentation/internal/gcsuploader"
	infraBQ "github.com/dvloznov/customer-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/customer-segmentation/internal/infra/kafka"
	"github.com/dvloznov/customer-segmentation/internal/infra/postgres"
	"github.com/dvloznov/customer-segmentation/internal/insights"
	"github.com/dvloznov/customer-segmentation/internal/logger"
	"github.com/dvloznov/customer-segmentation/internal/pipeline"
	"github.com/dvloznov/customer-segmentation/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "segment":
		runSegment(os.Args[2:])
	case "summary":
		runSummary(os.Args[2:])
	case "explore":
		runExplore(os.Args[2:])
	case "upload":
		runUpload(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("RFM Customer Segmentation CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  segment   Segment customers and export one segment's ids")
	fmt.Println("  summary   Print count and mean recency, frequency and monetary per segment")
	fmt.Println("  explore   Print an overview of the raw dataset")
	fmt.Println("  upload    Upload a dataset file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nInputs may be local .xlsx/.csv files, gs://bucket/object URIs or bq://project/dataset/table.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// inputFlags are shared by every command that reads a dataset.
type inputFlags struct {
	configPath    *string
	input         *string
	sheet         *string
	referenceDate *string
	logLevel      *string
}

func addInputFlags(fs *flag.FlagSet) inputFlags {
	return inputFlags{
		configPath:    fs.String("config", "", "Path to YAML config (default rfm.yaml if present)"),
		input:         fs.String("input", "", "Dataset path or URI"),
		sheet:         fs.String("sheet", "", "Workbook sheet name"),
		referenceDate: fs.String("reference-date", "", "Date recency is measured from (YYYY-MM-DD); default is the day after the last invoice"),
		logLevel:      fs.String("log-level", "", "Log level (debug, info, warn, error)"),
	}
}

// load reads the config and applies flag overrides on top of it.
func (f inputFlags) load() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *f.input != "" {
		cfg.Input.Path = *f.input
	}
	if *f.sheet != "" {
		cfg.Input.Sheet = *f.sheet
	}
	if *f.referenceDate != "" {
		cfg.Analysis.ReferenceDate = *f.referenceDate
	}
	if *f.logLevel != "" {
		cfg.LogLevel = *f.logLevel
	}

	return cfg, logger.NewWithOptions(logger.Options{Level: cfg.LogLevel})
}

func pipelineOptions(cfg *config.Config, log zerolog.Logger) pipeline.Options {
	opts := pipeline.Options{
		Input:              cfg.Input.Path,
		Sheet:              cfg.Input.Sheet,
		CancellationMarker: cfg.Analysis.CancellationMarker,
		ExportPath:         cfg.ExportPath(),
	}

	ref, ok, err := cfg.ReferenceDate()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reference date")
	}
	if ok {
		opts.ReferenceDate = &ref
	}

	seg, err := cfg.Segment()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid export segment")
	}
	opts.Segment = seg
	return opts
}

// openPublishers connects every configured result sink.
func openPublishers(ctx context.Context, cfg *config.Config) ([]pipeline.Publisher, error) {
	var pubs []pipeline.Publisher

	if bq := cfg.Sinks.BigQuery; bq.Enabled() {
		repo, err := infraBQ.NewSegmentRepository(ctx, infraBQ.TableRef{
			ProjectID: bq.Project,
			DatasetID: bq.Dataset,
			TableID:   bq.Table,
		})
		if err != nil {
			return pubs, err
		}
		pubs = append(pubs, repo)
	}

	if pg := cfg.Sinks.Postgres; pg.Enabled() {
		store, err := postgres.NewSegmentStore(ctx, pg.DSN)
		if err != nil {
			return pubs, err
		}
		pubs = append(pubs, store)
	}

	if k := cfg.Sinks.Kafka; k.Enabled() {
		pubs = append(pubs, kafka.NewProducer(k.Brokers, k.Topic))
	}

	return pubs, nil
}

func closePublishers(log zerolog.Logger, pubs []pipeline.Publisher) {
	for _, p := range pubs {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Str("sink", p.Name()).Msg("Failed to close sink")
		}
	}
}

// runWithSinks runs the pipeline with the sinks returned by open. Sinks are
// closed before it returns, also when connecting or the run fails.
func runWithSinks(ctx context.Context, opts pipeline.Options, open func(context.Context) ([]pipeline.Publisher, error)) (*pipeline.PipelineState, error) {
	if open != nil {
		pubs, err := open(ctx)
		defer closePublishers(logger.FromContext(ctx), pubs)
		if err != nil {
			return nil, fmt.Errorf("connecting result sink: %w", err)
		}
		opts.Publishers = pubs
	}
	return pipeline.Run(ctx, opts)
}

func runSegment(args []string) {
	fs := flag.NewFlagSet("segment", flag.ExitOnError)
	in := addInputFlags(fs)
	segment := fs.String("segment", "", "Segment to export (e.g. Need_Attention, Champions)")
	output := fs.String("output", "", "Export path, local or gs://")
	noSinks := fs.Bool("no-sinks", false, "Skip configured BigQuery, Postgres and Kafka sinks")
	fs.Parse(args)

	cfg, log := in.load()
	if *segment != "" {
		cfg.Export.Segment = *segment
	}
	if *output != "" {
		cfg.Export.Path = *output
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	open := func(ctx context.Context) ([]pipeline.Publisher, error) { return openPublishers(ctx, cfg) }
	if *noSinks {
		open = nil
	}

	state, err := runWithSinks(ctx, pipelineOptions(cfg, log), open)
	if err != nil {
		log.Fatal().Err(err).Msg("Segmentation failed")
	}

	for _, s := range state.Summary {
		log.Info().Str("segment", string(s.Segment)).Int("customers", s.Count).Msg("Segment size")
	}
	fmt.Printf("Exported %s to %s (run %s)\n", cfg.Export.Segment, cfg.ExportPath(), state.Run.ID)
}

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	in := addInputFlags(fs)
	fs.Parse(args)

	cfg, log := in.load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	opts := pipelineOptions(cfg, log)
	opts.SkipExport = true

	state, err := pipeline.Run(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Segmentation failed")
	}

	fmt.Printf("Reference date: %s\n\n", state.Run.ReferenceDate)
	if err := report.Segments(os.Stdout, state.Summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to print summary")
	}
}

func runExplore(args []string) {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	in := addInputFlags(fs)
	top := fs.Int("top", insights.DefaultTop, "Entries per ranked list")
	fs.Parse(args)

	cfg, log := in.load()
	ctx := logger.WithContext(context.Background(), log)

	src, err := dataset.Open(cfg.Input.Path, dataset.OpenOptions{Sheet: cfg.Input.Sheet})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dataset")
	}

	rows, err := src.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	rep := insights.Explore(rows, cfg.Analysis.CancellationMarker, *top)
	if err := report.Insights(os.Stdout, rep); err != nil {
		log.Fatal().Err(err).Msg("Failed to print report")
	}
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local dataset file")
	fs.Parse(args)

	log := logger.New()

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
