// Package report stores ingested screening reports for the results
// service.
package report

import (
	"context"
	"time"
)

// Record is one stored screening report.
type Record struct {
	ID         string
	RunDate    string
	ReceivedAt time.Time
	Inserted   int
	Document   map[string]any
}

// Store defines the interface for screening report persistence. One
// record is held per run date; re-ingesting a date replaces it.
type Store interface {
	// Save stores the ingest document under its run date.
	Save(ctx context.Context, runDate string, doc map[string]any) (*Record, error)

	// Latest returns the record with the most recent run date.
	Latest(ctx context.Context) (*Record, error)

	// ByDate returns the record for one run date.
	ByDate(ctx context.Context, runDate string) (*Record, error)

	// Dates returns the held run dates, newest first.
	Dates(ctx context.Context) ([]string, error)

	// Count returns the number of records held.
	Count(ctx context.Context) int
}
