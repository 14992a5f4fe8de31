package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/customer-segmentation/internal/dataset"
	infraBQ "github.com/dvloznov/customer-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

// ingest copies a workbook or CSV export into a BigQuery table so later
// runs can read it with -input bq://project/dataset/table.
func main() {
	log := logger.New()

	input := flag.String("input", "", "Dataset path or gs:// URI (.xlsx or .csv)")
	sheet := flag.String("sheet", dataset.DefaultSheet, "Workbook sheet name")
	table := flag.String("table", "", "Destination table (bq://project/dataset/table)")
	flag.Parse()

	if *input == "" || *table == "" {
		log.Fatal().Msg("Usage: ingest -input PATH -table bq://project/dataset/table")
	}

	ref, err := infraBQ.ParseTableURI(*table)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid destination table")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, err := dataset.Open(*input, dataset.OpenOptions{Sheet: *sheet})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dataset")
	}

	log.Info().Str("input", *input).Str("table", ref.String()).Msg("Starting ingestion")

	rows, err := src.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	dest, err := infraBQ.NewTransactionTable(ctx, ref)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open BigQuery table")
	}
	defer dest.Close()

	if err := dest.Insert(ctx, rows); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d rows into %s\n", len(rows), ref)
}
