package engine

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

// amenityStub prices a flat from its amenities and heating only, so every
// other probe yields a zero delta and drops out
func amenityStub() *stubPredictor {
	return &stubPredictor{fn: func(v *ml.FeatureVector) (float64, error) {
		price := 400000.0
		if e, _ := v.Float("elevator"); e == 1 {
			price += 50000
		}
		if b, _ := v.Float("balcony/garden"); b == 1 {
			price += 20000
		}
		if p, _ := v.Float("parking"); p == 1 {
			price += 30000
		}
		if h, _ := v.Text("heating"); h == "urban" {
			price += 10000
		}
		return price, nil
	}}
}

func amenityFlatBase() *ml.FeatureVector {
	return AdaptFlat(&models.FlatInput{
		Area: 54, Rooms: 3, Floor: 2, TotalFloors: 4, Year: 2008,
		BuildType: "block", Material: "brick", Heating: "district",
		Market: "secondary", ConstructionStatus: "ready_to_use",
		HasLift: 1, HasOutdoor: 1, HasParking: 1,
		City: "Warszawa", Province: "mazowieckie",
	})
}

func TestDecomposeFlatMeasuresSignedDeltas(t *testing.T) {
	stub := amenityStub()
	base := amenityFlatBase()
	basePrice, err := PredictPoint(stub, base)
	require.NoError(t, err)

	components := Decompose(context.Background(), stub, models.PropertyFlat, base, basePrice)
	require.Len(t, components, 4, "only probes with a non-zero delta should survive")

	byLabel := make(map[string]float64, len(components))
	for _, c := range components {
		byLabel[c.Label] = c.Delta
	}
	assert.Equal(t, 50000.0, byLabel["winda"], "removing the elevator should cost its full premium")
	assert.Equal(t, 30000.0, byLabel["miejsce parkingowe"])
	assert.Equal(t, 20000.0, byLabel["balkon/ogród"])
	assert.Equal(t, 10000.0, byLabel["ogrzewanie miejskie zamiast elektrycznego"])

	for i := 1; i < len(components); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(components[i-1].Delta), math.Abs(components[i].Delta),
			"components must be ordered by descending absolute delta")
	}
}

func TestDecomposeNeverMutatesTheBaseVector(t *testing.T) {
	stub := amenityStub()
	base := amenityFlatBase()
	basePrice, err := PredictPoint(stub, base)
	require.NoError(t, err)

	Decompose(context.Background(), stub, models.PropertyFlat, base, basePrice)

	elevator, _ := base.Float("elevator")
	assert.Equal(t, 1.0, elevator, "probes must work on copies, never on the base vector")
	heating, _ := base.Text("heating")
	assert.Equal(t, "urban", heating)

	again := Decompose(context.Background(), stub, models.PropertyFlat, base, basePrice)
	first := Decompose(context.Background(), stub, models.PropertyFlat, base, basePrice)
	assert.Equal(t, first, again, "decomposition of an unchanged vector must be idempotent")
}

func TestDecomposeAbsorbsProbeFailures(t *testing.T) {
	stub := &stubPredictor{fn: func(v *ml.FeatureVector) (float64, error) {
		if h, _ := v.Text("heating"); h == "electrical" {
			return 0, fmt.Errorf("encoder rejected the row")
		}
		price := 400000.0
		if e, _ := v.Float("elevator"); e == 1 {
			price += 50000
		}
		return price, nil
	}}
	base := amenityFlatBase()
	basePrice, err := PredictPoint(stub, base)
	require.NoError(t, err)

	components := Decompose(context.Background(), stub, models.PropertyFlat, base, basePrice)
	byLabel := make(map[string]float64, len(components))
	for _, c := range components {
		byLabel[c.Label] = c.Delta
	}
	assert.NotContains(t, byLabel, "ogrzewanie miejskie zamiast elektrycznego",
		"a failed probe drops its component only")
	assert.Contains(t, byLabel, "winda", "other probes proceed after a failure")
}

func TestDecomposeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := amenityStub()
	base := amenityFlatBase()
	components := Decompose(ctx, stub, models.PropertyFlat, base, 500000)
	assert.Empty(t, components, "a cancelled request should not run any probes")
}

func TestFloorProbeContrastPolicy(t *testing.T) {
	withElevator := ml.NewFeatureVector()
	withElevator.Set("elevator", 1)
	pr := floorProbe(withElevator, "5")
	assert.Equal(t, "0", fmt.Sprintf("%v", pr.contrast), "mid floors with an elevator compare against the ground floor")
	assert.Equal(t, "5. piętro z windą", pr.label)

	withoutElevator := ml.NewFeatureVector()
	withoutElevator.Set("elevator", 0)
	pr = floorProbe(withoutElevator, "5")
	assert.Equal(t, "1", fmt.Sprintf("%v", pr.contrast), "mid floors without an elevator compare against the first floor")
	assert.Equal(t, "5. piętro bez windy", pr.label)

	pr = floorProbe(withElevator, "0")
	assert.Equal(t, "3", fmt.Sprintf("%v", pr.contrast), "the ground floor compares against a mid floor")

	pr = floorProbe(withElevator, ml.HighFloorBucket)
	assert.Equal(t, "3", fmt.Sprintf("%v", pr.contrast))
}

func TestYearProbeContrastPolicy(t *testing.T) {
	pr := yearProbe(2020)
	assert.Equal(t, 1980, pr.contrast, "modern construction compares against a communist-era year")
	assert.Contains(t, pr.label, "nowe budownictwo")

	pr = yearProbe(1970)
	assert.Equal(t, 2024, pr.contrast, "older construction compares against a new build")
	assert.Contains(t, pr.label, "PRL")
}

func TestEraTagBoundaries(t *testing.T) {
	assert.Equal(t, "przedwojenne", EraTag(1944))
	assert.Equal(t, "budownictwo z czasów PRL", EraTag(1945))
	assert.Equal(t, "budownictwo z czasów PRL", EraTag(1989))
	assert.Equal(t, "lata 90./2000", EraTag(1990))
	assert.Equal(t, "lata 90./2000", EraTag(2012))
	assert.Equal(t, "nowe budownictwo", EraTag(2013))
}

func TestDecomposeHouseUsesItsOwnContrastTable(t *testing.T) {
	stub := &stubPredictor{fn: func(v *ml.FeatureVector) (float64, error) {
		price := 800000.0
		if h, _ := v.Text("heating"); h == "gas" {
			price += 40000
		}
		if p, _ := v.Float("parking"); p == 1 {
			price += 25000
		}
		return price, nil
	}}
	base := AdaptHouse(&models.HouseInput{
		AreaHouse: 140, AreaPlot: 600, Rooms: 5, Floors: 2, Year: 1998,
		BuildType: "detached", ConstructionStatus: "ready_to_use",
		Material: "brick", HeatingType: "gas", HasGarage: 1,
		City: "Kraków", Province: "małopolskie",
	})
	basePrice, err := PredictPoint(stub, base)
	require.NoError(t, err)

	components := Decompose(context.Background(), stub, models.PropertyHouse, base, basePrice)
	byLabel := make(map[string]float64, len(components))
	for _, c := range components {
		byLabel[c.Label] = c.Delta
	}
	assert.Equal(t, 40000.0, byLabel["ogrzewanie gazowe zamiast elektrycznego"])
	assert.Equal(t, 25000.0, byLabel["garaż"])
}

func TestDecomposePlotUsesItsOwnContrastTable(t *testing.T) {
	stub := &stubPredictor{fn: func(v *ml.FeatureVector) (float64, error) {
		price := 200000.0
		if pt, _ := v.Text("plot_type"); pt == "building" {
			price += 80000
		}
		return price, nil
	}}
	base := AdaptPlot(&models.PlotInput{
		Area: 1200, Type: "building", LocationType: "suburban",
		IsHardAccess: 0, City: "Gdynia", Province: "pomorskie",
	})
	basePrice, err := PredictPoint(stub, base)
	require.NoError(t, err)

	components := Decompose(context.Background(), stub, models.PropertyPlot, base, basePrice)
	byLabel := make(map[string]float64, len(components))
	for _, c := range components {
		byLabel[c.Label] = c.Delta
	}
	assert.Equal(t, 80000.0, byLabel["działka budowlana zamiast rolnej"])
	assert.NotContains(t, byLabel, "dojazd utwardzony", "absent amenities get no removal probe")
}
