package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

// stubSource serves fixed pipelines per property type
type stubSource struct {
	pipelines map[models.PropertyType]*ml.Pipeline
}

func (s *stubSource) Pipeline(t models.PropertyType) (*ml.Pipeline, error) {
	p, ok := s.pipelines[t]
	if !ok || p == nil {
		return nil, fmt.Errorf("%s: %w", t, models.ErrModelUnavailable)
	}
	return p, nil
}

// servingPipeline trains a small forest over area and heating, the two
// columns every adapter emits
func servingPipeline(t *testing.T, propertyType string) *ml.Pipeline {
	t.Helper()

	areas := []float64{30, 40, 50, 60, 70, 80, 35, 45, 55, 65, 75, 85}
	heatings := []string{"urban", "gas", "urban", "gas", "urban", "gas", "urban", "gas", "urban", "gas", "urban", "gas"}
	prep := ml.FitPreprocessor(
		map[string][]float64{"area": areas}, []string{"area"},
		map[string][]string{"heating": heatings}, []string{"heating"},
	)

	var X [][]float64
	var y []float64
	for i, area := range areas {
		vec := ml.NewFeatureVector()
		vec.Set("area", area)
		vec.Set("heating", heatings[i])
		row, err := prep.Transform(vec)
		require.NoError(t, err)
		X = append(X, row)
		target := area * 10000
		if heatings[i] == "gas" {
			target += 25000
		}
		y = append(y, target)
	}

	forest := ml.NewRegressionForest(10, 6, 2, 1, 7)
	require.NoError(t, forest.Fit(X, y))

	return &ml.Pipeline{
		ID:            propertyType + "-fixture",
		PropertyType:  propertyType,
		Preprocessing: prep,
		Model:         forest,
	}
}

func servingEngine(t *testing.T) *Engine {
	t.Helper()
	source := &stubSource{pipelines: map[models.PropertyType]*ml.Pipeline{
		models.PropertyFlat:  servingPipeline(t, "flat"),
		models.PropertyHouse: servingPipeline(t, "house"),
		models.PropertyPlot:  servingPipeline(t, "plot"),
	}}
	return NewEngine(source, nil, 0)
}

func TestPredictFlatServesFullResponse(t *testing.T) {
	engine := servingEngine(t)

	resp, err := engine.PredictFlat(context.Background(), &models.FlatInput{
		Area: 54, Rooms: 3, Floor: 2, TotalFloors: 4, Year: 2008,
		BuildType: "block", Material: "brick", Heating: "district",
		Market: "secondary", ConstructionStatus: "ready_to_use",
		HasLift: 1, City: "Warszawa", Province: "mazowieckie",
	})
	require.NoError(t, err)

	assert.Greater(t, resp.Cena, 0.0)
	assert.Equal(t, resp.Cena, resp.PredictedPrice, "predicted_price aliases cena")
	assert.Less(t, resp.PriceMin, resp.Cena)
	assert.Greater(t, resp.PriceMax, resp.Cena)
	assert.Equal(t, models.PropertyFlat, resp.Type)
	assert.NotEmpty(t, resp.ShapValues, "a tree pipeline should always yield attributions")
	assert.NotNil(t, resp.Components)
}

func TestPredictHouseAndPlotOmitComponents(t *testing.T) {
	engine := servingEngine(t)

	house, err := engine.PredictHouse(context.Background(), &models.HouseInput{
		AreaHouse: 140, AreaPlot: 600, Rooms: 5, Floors: 2, Year: 1998,
		BuildType: "detached", ConstructionStatus: "ready_to_use",
		Material: "brick", HeatingType: "gas",
		City: "Kraków", Province: "małopolskie",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PropertyHouse, house.Type)
	assert.Greater(t, house.Cena, 0.0)

	data, err := json.Marshal(house)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "components", "house responses carry no counterfactual drivers")
	assert.NotContains(t, string(data), "predicted_price")

	plot, err := engine.PredictPlot(context.Background(), &models.PlotInput{
		Area: 1200, Type: "building", LocationType: "suburban",
		City: "Gdynia", Province: "pomorskie",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PropertyPlot, plot.Type)
}

func TestFlatResponseJSONShape(t *testing.T) {
	engine := servingEngine(t)
	resp, err := engine.PredictFlat(context.Background(), &models.FlatInput{
		Area: 54, Heating: "district", City: "Warszawa", Province: "mazowieckie",
	})
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"cena", "price_min", "price_max", "shap_values", "type", "predicted_price", "components"} {
		assert.Contains(t, decoded, key, "flat response must carry %s", key)
	}

	var shap map[string]float64
	require.NoError(t, json.Unmarshal(decoded["shap_values"], &shap),
		"shap_values must encode as a JSON object")
}

func TestUnloadedSlotFailsOnlyThatPropertyType(t *testing.T) {
	source := &stubSource{pipelines: map[models.PropertyType]*ml.Pipeline{
		models.PropertyFlat: servingPipeline(t, "flat"),
	}}
	engine := NewEngine(source, nil, 0)

	_, err := engine.PredictHouse(context.Background(), &models.HouseInput{
		AreaHouse: 140, AreaPlot: 600, City: "Kraków", Province: "małopolskie",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))

	_, err = engine.PredictFlat(context.Background(), &models.FlatInput{
		Area: 54, Heating: "district", City: "Warszawa", Province: "mazowieckie",
	})
	assert.NoError(t, err, "the loaded slot keeps serving while another is empty")
}

func TestCancelledContextAbortsHouseAndPlotRequests(t *testing.T) {
	engine := servingEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.PredictHouse(ctx, &models.HouseInput{
		AreaHouse: 140, AreaPlot: 600, City: "Kraków", Province: "małopolskie",
	})
	assert.True(t, errors.Is(err, context.Canceled), "a cancelled house request should not be served")

	_, err = engine.PredictPlot(ctx, &models.PlotInput{
		Area: 1200, Type: "building", LocationType: "suburban",
		City: "Gdynia", Province: "pomorskie",
	})
	assert.True(t, errors.Is(err, context.Canceled), "a cancelled plot request should not be served")
}

func TestPlotMarginIsConfigurable(t *testing.T) {
	source := &stubSource{pipelines: map[models.PropertyType]*ml.Pipeline{
		models.PropertyPlot: servingPipeline(t, "plot"),
	}}
	engine := NewEngine(source, nil, 0.10)

	resp, err := engine.PredictPlot(context.Background(), &models.PlotInput{
		Area: 60, Type: "building", LocationType: "city",
		City: "Gdynia", Province: "pomorskie",
	})
	require.NoError(t, err)

	wantMin, wantMax := PriceBand(resp.Cena, 0.10)
	assert.Equal(t, wantMin, resp.PriceMin, "plots should use the configured margin")
	assert.Equal(t, wantMax, resp.PriceMax)
}
