package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// fakeBlob captures every Put.
type fakeBlob struct {
	puts map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{puts: make(map[string][]byte)}
}

func (b *fakeBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	b.puts[path] = buf.Bytes()
	return nil
}

type fakeQuotes struct {
	results []domain.BatchQuote
}

func (f *fakeQuotes) GetPrices(ctx context.Context, symbols []domain.CommoditySymbol, region domain.Region) []domain.BatchQuote {
	return f.results
}

type fakeAggregates struct {
	agg domain.LedgerAggregate
	err error
}

func (f *fakeAggregates) GetAggregate(ctx context.Context) (domain.LedgerAggregate, error) {
	return f.agg, f.err
}

func testArchiver(quotes QuoteReader, ledger AggregateReader, blob domain.BlobWriter) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiver(quotes, ledger, blob, time.Hour, "snapshots", logger)
}

func TestSnapshot_WritesQuotesAndLedger(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuotes{results: []domain.BatchQuote{
		{Symbol: domain.SymbolTea, Quote: domain.PriceQuote{Symbol: domain.SymbolTea, Price: 2.45}},
		{Symbol: domain.SymbolGold, Err: errors.New("upstream down")},
		{Symbol: domain.SymbolCoffee, Quote: domain.PriceQuote{Symbol: domain.SymbolCoffee, Price: 4.10}},
	}}
	ledger := &fakeAggregates{agg: domain.LedgerAggregate{TotalValueLocked: 350, ActiveStakers: 2, AverageAPY: 12.4}}

	a := testArchiver(quotes, ledger, blob)
	require.NoError(t, a.Snapshot(context.Background()))
	require.Len(t, blob.puts, 2)

	var quoteBody, ledgerBody []byte
	for key, body := range blob.puts {
		switch {
		case strings.Contains(key, "/quotes/"):
			quoteBody = body
			assert.True(t, strings.HasSuffix(key, ".jsonl"), key)
		case strings.Contains(key, "/ledger/"):
			ledgerBody = body
			assert.True(t, strings.HasSuffix(key, ".json"), key)
		default:
			t.Fatalf("unexpected object key %q", key)
		}
		assert.True(t, strings.HasPrefix(key, "snapshots/"), key)
	}

	// Errored symbols are skipped, one JSONL line per resolved quote.
	lines := strings.Split(strings.TrimSpace(string(quoteBody)), "\n")
	require.Len(t, lines, 2)
	var first domain.PriceQuote
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, domain.SymbolTea, first.Symbol)

	var snap struct {
		TakenAt          time.Time `json:"takenAt"`
		TotalValueLocked float64   `json:"totalValueLocked"`
	}
	require.NoError(t, json.Unmarshal(ledgerBody, &snap))
	assert.Equal(t, 350.0, snap.TotalValueLocked)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestSnapshot_SkipsQuoteObjectWhenNothingResolved(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuotes{results: []domain.BatchQuote{
		{Symbol: domain.SymbolTea, Err: errors.New("upstream down")},
	}}
	ledger := &fakeAggregates{}

	a := testArchiver(quotes, ledger, blob)
	require.NoError(t, a.Snapshot(context.Background()))

	for key := range blob.puts {
		assert.NotContains(t, key, "/quotes/")
	}
}

func TestSnapshot_LedgerReadFailure(t *testing.T) {
	blob := newFakeBlob()
	quotes := &fakeQuotes{results: []domain.BatchQuote{
		{Symbol: domain.SymbolTea, Quote: domain.PriceQuote{Symbol: domain.SymbolTea, Price: 2.45}},
	}}
	ledger := &fakeAggregates{err: errors.New("connection refused")}

	a := testArchiver(quotes, ledger, blob)
	assert.Error(t, a.Snapshot(context.Background()))
}
