// Package pipeline contains background jobs that run alongside the API
// server. The archiver periodically snapshots commodity quotes and the
// staking aggregate into object storage for offline analysis.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// QuoteReader is the slice of the price oracle the archiver needs.
type QuoteReader interface {
	GetPrices(ctx context.Context, symbols []domain.CommoditySymbol, region domain.Region) []domain.BatchQuote
}

// AggregateReader is the slice of the staking ledger the archiver needs.
type AggregateReader interface {
	GetAggregate(ctx context.Context) (domain.LedgerAggregate, error)
}

// Archiver writes periodic JSONL snapshots of quotes and ledger aggregates
// to blob storage.
type Archiver struct {
	quotes    QuoteReader
	ledger    AggregateReader
	blob      domain.BlobWriter
	interval  time.Duration
	prefix    string
	region    domain.Region
	logger    *slog.Logger
}

// NewArchiver creates a new Archiver. Snapshots are taken every interval and
// written under prefix in the configured bucket.
func NewArchiver(quotes QuoteReader, ledger AggregateReader, blob domain.BlobWriter, interval time.Duration, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		quotes:   quotes,
		ledger:   ledger,
		blob:     blob,
		interval: interval,
		prefix:   prefix,
		region:   domain.RegionGlobal,
		logger:   logger,
	}
}

// Run takes snapshots on a fixed interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started",
		slog.Duration("interval", a.interval),
		slog.String("prefix", a.prefix),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Snapshot(ctx); err != nil {
				a.logger.Error("snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Snapshot executes a single archive run: one JSONL object holding the
// current quote for every tracked commodity, and one JSON object holding the
// ledger aggregate.
func (a *Archiver) Snapshot(ctx context.Context) error {
	now := time.Now().UTC()

	if err := a.snapshotQuotes(ctx, now); err != nil {
		return fmt.Errorf("pipeline: quote snapshot: %w", err)
	}
	if err := a.snapshotLedger(ctx, now); err != nil {
		return fmt.Errorf("pipeline: ledger snapshot: %w", err)
	}

	a.logger.Info("snapshot complete", slog.Time("taken_at", now))
	return nil
}

func (a *Archiver) snapshotQuotes(ctx context.Context, now time.Time) error {
	results := a.quotes.GetPrices(ctx, domain.Symbols, a.region)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	written := 0
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("skipping unresolved quote",
				slog.String("symbol", string(res.Symbol)),
				slog.String("error", res.Err.Error()),
			)
			continue
		}
		if err := enc.Encode(res.Quote); err != nil {
			return fmt.Errorf("encode quote %s: %w", res.Symbol, err)
		}
		written++
	}

	if written == 0 {
		a.logger.Warn("no quotes available, skipping quote snapshot")
		return nil
	}

	key := a.objectKey("quotes", now, "jsonl")
	if err := a.blob.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return err
	}

	a.logger.Info("archived quotes", slog.String("key", key), slog.Int("count", written))
	return nil
}

func (a *Archiver) snapshotLedger(ctx context.Context, now time.Time) error {
	agg, err := a.ledger.GetAggregate(ctx)
	if err != nil {
		return fmt.Errorf("read aggregate: %w", err)
	}

	payload, err := json.Marshal(struct {
		TakenAt time.Time `json:"takenAt"`
		domain.LedgerAggregate
	}{TakenAt: now, LedgerAggregate: agg})
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}

	key := a.objectKey("ledger", now, "json")
	if err := a.blob.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return err
	}

	a.logger.Info("archived ledger aggregate", slog.String("key", key))
	return nil
}

// objectKey builds a date-partitioned object key, e.g.
// "snapshots/quotes/2026/08/29/quotes-153000.jsonl".
func (a *Archiver) objectKey(kind string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%s.%s",
		a.prefix, kind, now.Format("2006/01/02"), kind, now.Format("150405"), ext)
}
