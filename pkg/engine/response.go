package engine

import "github.com/properlytics/properlytics-go/pkg/models"

// PredictionResponse is the aggregate result of one prediction request:
// point estimate, confidence band and the ranked attribution summary.
// Immutable once constructed; it has no identity beyond the request.
type PredictionResponse struct {
	Cena       float64             `json:"cena"`
	PriceMin   float64             `json:"price_min"`
	PriceMax   float64             `json:"price_max"`
	ShapValues AttributionMap      `json:"shap_values"`
	Type       models.PropertyType `json:"type"`
}

// FlatPredictionResponse additionally carries the counterfactual value
// drivers and the legacy predicted_price alias of cena
type FlatPredictionResponse struct {
	PredictionResponse
	PredictedPrice float64     `json:"predicted_price"`
	Components     []Component `json:"components"`
}
