package forecast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// fakeForecaster records calls and returns canned results.
type fakeForecaster struct {
	result         Result
	forecastErr    error
	narrative      string
	narrativeErr   error
	narrativeCalls int
}

func (f *fakeForecaster) Forecast(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon) (Result, error) {
	if f.forecastErr != nil {
		return Result{}, f.forecastErr
	}
	return f.result, nil
}

func (f *fakeForecaster) Narrative(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon, result Result) (string, error) {
	f.narrativeCalls++
	if f.narrativeErr != nil {
		return "", f.narrativeErr
	}
	return f.narrative, nil
}

func (f *fakeForecaster) Model() string { return "fake-model" }

// fakeQuotes is a fixed quote source.
type fakeQuotes struct {
	quote   domain.PriceQuote
	err     error
	history []domain.PriceQuote
}

func (f *fakeQuotes) GetPrice(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	if f.err != nil {
		return domain.PriceQuote{}, f.err
	}
	return f.quote, nil
}

func (f *fakeQuotes) History(symbol domain.CommoditySymbol, region domain.Region) []domain.PriceQuote {
	return f.history
}

func testEngine(quotes QuoteSource, fc Forecaster) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return New(quotes, fc, Config{Timeout: time.Second, Clock: clock}, logger)
}

func teaQuote() domain.PriceQuote {
	return domain.PriceQuote{
		Symbol:   domain.SymbolTea,
		Region:   domain.RegionAfrica,
		Price:    2.45,
		Currency: "USD",
	}
}

func TestPredict_Success(t *testing.T) {
	fc := &fakeForecaster{result: Result{PredictedPrice: 2.61, Confidence: 0.72}}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon7D, false)
	require.NoError(t, err)

	require.NotNil(t, pred.PredictedPrice)
	assert.Equal(t, 2.61, *pred.PredictedPrice)
	require.NotNil(t, pred.Confidence)
	assert.Equal(t, 0.72, *pred.Confidence)
	assert.Nil(t, pred.Narrative)
	assert.Equal(t, "fake-model", pred.Model)
	assert.Equal(t, "USD", pred.Currency)
}

func TestPredict_NullFilledOnForecastFailure(t *testing.T) {
	fc := &fakeForecaster{forecastErr: errors.New("model timeout")}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon1D, true)
	require.NoError(t, err)

	assert.Nil(t, pred.PredictedPrice)
	assert.Nil(t, pred.Confidence)
	assert.Nil(t, pred.Narrative)
	assert.Equal(t, domain.SymbolTea, pred.Symbol)
	assert.Equal(t, domain.Horizon1D, pred.Horizon)
	// Forecast already failed; no narrative attempt either.
	assert.Equal(t, 0, fc.narrativeCalls)
}

func TestPredict_NarrativeSkippedWhenNotRequested(t *testing.T) {
	fc := &fakeForecaster{
		result:    Result{PredictedPrice: 2.61, Confidence: 0.5},
		narrative: "should never be generated",
	}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon3D, false)
	require.NoError(t, err)

	assert.Nil(t, pred.Narrative)
	assert.Equal(t, 0, fc.narrativeCalls)
}

func TestPredict_NarrativeIncludedWhenRequested(t *testing.T) {
	fc := &fakeForecaster{
		result:    Result{PredictedPrice: 2.61, Confidence: 0.5},
		narrative: "prices should firm up on strong export demand",
	}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon3D, true)
	require.NoError(t, err)

	require.NotNil(t, pred.Narrative)
	assert.Equal(t, "prices should firm up on strong export demand", *pred.Narrative)
	assert.Equal(t, 1, fc.narrativeCalls)
}

func TestPredict_NarrativeFailureKeepsForecast(t *testing.T) {
	fc := &fakeForecaster{
		result:       Result{PredictedPrice: 2.61, Confidence: 0.5},
		narrativeErr: errors.New("model overloaded"),
	}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon3D, true)
	require.NoError(t, err)

	require.NotNil(t, pred.PredictedPrice)
	assert.Nil(t, pred.Narrative)
}

func TestPredict_ConfidenceClamped(t *testing.T) {
	fc := &fakeForecaster{result: Result{PredictedPrice: 2.61, Confidence: 1.7}}
	e := testEngine(&fakeQuotes{quote: teaQuote()}, fc)

	pred, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon7D, false)
	require.NoError(t, err)
	require.NotNil(t, pred.Confidence)
	assert.Equal(t, 1.0, *pred.Confidence)
}

func TestPredict_UnknownHorizonRejected(t *testing.T) {
	e := testEngine(&fakeQuotes{quote: teaQuote()}, &fakeForecaster{})

	_, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon("2d"), false)
	assert.ErrorIs(t, err, domain.ErrUnknownHorizon)
}

func TestPredict_QuoteFailurePropagates(t *testing.T) {
	e := testEngine(&fakeQuotes{err: domain.ErrPriceUnavailable}, &fakeForecaster{})

	_, err := e.Predict(context.Background(), domain.SymbolTea, domain.RegionAfrica, domain.Horizon7D, false)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}
