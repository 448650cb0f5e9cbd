package domain

import "time"

// Prediction is a point forecast for a commodity price over a fixed horizon.
// Nil PredictedPrice/Confidence/Narrative signal "unknown": the forecasting
// capability failed and the engine null-filled rather than erroring, so
// callers always receive a renderable record.
//
// Predictions are created on demand and never cached by the engine; AsOf
// reflects generation time, not the age of the underlying quote.
type Prediction struct {
	Symbol         CommoditySymbol `json:"symbol"`
	Region         Region          `json:"region"`
	Horizon        Horizon         `json:"horizon"`
	PredictedPrice *float64        `json:"predictedPrice"`
	Currency       string          `json:"currency"`
	Confidence     *float64        `json:"confidence"`
	Narrative      *string         `json:"narrative"`
	AsOf           time.Time       `json:"asOf"`
	Model          string          `json:"model"`
}
