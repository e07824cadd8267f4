package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
	"github.com/properlytics/properlytics-go/utils"
)

// PipelineSource resolves the currently loaded pipeline for a property
// type. Implementations return models.ErrModelUnavailable for unloaded
// slots.
type PipelineSource interface {
	Pipeline(t models.PropertyType) (*ml.Pipeline, error)
}

// Engine turns one validated property record plus one trained pipeline into
// a price estimate, a confidence band, an attribution summary and, for
// flats, a ranked list of counterfactual value drivers. All
// sub-computations of one request run strictly sequentially against an
// immutable base vector.
type Engine struct {
	source     PipelineSource
	logger     *utils.Logger
	plotMargin float64
}

// NewEngine creates a prediction engine over the given pipeline source
func NewEngine(source PipelineSource, logger *utils.Logger, plotMargin float64) *Engine {
	if logger == nil {
		logger = utils.NewLogger()
	}
	if plotMargin <= 0 {
		plotMargin = DefaultPlotMargin
	}
	return &Engine{
		source:     source,
		logger:     logger,
		plotMargin: plotMargin,
	}
}

// PredictFlat estimates a flat's price and explains the estimate
func (e *Engine) PredictFlat(ctx context.Context, in *models.FlatInput) (*FlatPredictionResponse, error) {
	pipeline, err := e.source.Pipeline(models.PropertyFlat)
	if err != nil {
		return nil, err
	}

	vec := AdaptFlat(in)
	price, err := PredictPoint(pipeline, vec)
	if err != nil {
		e.logFailure(models.PropertyFlat, err)
		return nil, err
	}

	attributions := ExtractAttributions(pipeline, vec)
	components := Decompose(ctx, pipeline, models.PropertyFlat, vec, price)
	priceMin, priceMax := PriceBand(price, FlatMargin)

	e.logServed(models.PropertyFlat, price, len(components))
	return &FlatPredictionResponse{
		PredictionResponse: PredictionResponse{
			Cena:       price,
			PriceMin:   priceMin,
			PriceMax:   priceMax,
			ShapValues: attributions,
			Type:       models.PropertyFlat,
		},
		PredictedPrice: price,
		Components:     components,
	}, nil
}

// PredictHouse estimates a house's price and explains the estimate
func (e *Engine) PredictHouse(ctx context.Context, in *models.HouseInput) (*PredictionResponse, error) {
	pipeline, err := e.source.Pipeline(models.PropertyHouse)
	if err != nil {
		return nil, err
	}
	return e.predict(ctx, pipeline, AdaptHouse(in), models.PropertyHouse, HouseMargin)
}

// PredictPlot estimates a plot's price and explains the estimate
func (e *Engine) PredictPlot(ctx context.Context, in *models.PlotInput) (*PredictionResponse, error) {
	pipeline, err := e.source.Pipeline(models.PropertyPlot)
	if err != nil {
		return nil, err
	}
	return e.predict(ctx, pipeline, AdaptPlot(in), models.PropertyPlot, e.plotMargin)
}

func (e *Engine) predict(ctx context.Context, pipeline *ml.Pipeline, vec *ml.FeatureVector, propertyType models.PropertyType, margin float64) (*PredictionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	price, err := PredictPoint(pipeline, vec)
	if err != nil {
		e.logFailure(propertyType, err)
		return nil, err
	}

	attributions := ExtractAttributions(pipeline, vec)
	priceMin, priceMax := PriceBand(price, margin)

	e.logServed(propertyType, price, 0)
	return &PredictionResponse{
		Cena:       price,
		PriceMin:   priceMin,
		PriceMax:   priceMax,
		ShapValues: attributions,
		Type:       propertyType,
	}, nil
}

func (e *Engine) logServed(propertyType models.PropertyType, price float64, components int) {
	e.logger.Info("prediction served",
		utils.Component("engine"),
		utils.RequestID(uuid.New().String()),
		utils.String("property_type", string(propertyType)),
		utils.Float("cena", price),
		utils.Int("components", components),
	)
}

func (e *Engine) logFailure(propertyType models.PropertyType, err error) {
	e.logger.Error("inference failed", err,
		utils.Component("engine"),
		utils.String("property_type", string(propertyType)),
	)
}
