package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

func textAt(t *testing.T, vec *ml.FeatureVector, name string) string {
	t.Helper()
	val, ok := vec.Text(name)
	require.True(t, ok, "vector should carry %s", name)
	return val
}

func floatAt(t *testing.T, vec *ml.FeatureVector, name string) float64 {
	t.Helper()
	val, ok := vec.Float(name)
	require.True(t, ok, "vector should carry %s", name)
	return val
}

func TestAdaptFlatTranslatesVocabulary(t *testing.T) {
	vec := AdaptFlat(&models.FlatInput{
		Area: 54.5, Rooms: 3, Floor: 2, TotalFloors: 4, Year: 2008,
		BuildType: "apartment_building", Material: "plate", Heating: "district",
		Market: "primary", ConstructionStatus: "for_renovation",
		HasLift: 1, HasOutdoor: 0, HasParking: 1,
		City: "Warszawa", District: "Mokotów", Province: "Mazowieckie",
	})

	assert.Equal(t, "urban", textAt(t, vec, "heating"), "district heating should map to the training value")
	assert.Equal(t, "PRIMARY", textAt(t, vec, "market"))
	assert.Equal(t, "block", textAt(t, vec, "building_type"))
	assert.Equal(t, "concrete_plate", textAt(t, vec, "building_material"))
	assert.Equal(t, "to_renovation", textAt(t, vec, "finishing"))

	assert.Equal(t, 54.5, floatAt(t, vec, "area"))
	assert.Equal(t, 4.0, floatAt(t, vec, "floors_in_building"), "totalFloors should rename to the training column")
	assert.Equal(t, 2008.0, floatAt(t, vec, "year_built"))
	assert.Equal(t, "2", textAt(t, vec, "floor"), "low floors stay literal")

	assert.Equal(t, 1.0, floatAt(t, vec, "elevator"))
	assert.Equal(t, 0.0, floatAt(t, vec, "balcony/garden"))
	assert.Equal(t, 1.0, floatAt(t, vec, "parking"))

	assert.Equal(t, "warszawa", textAt(t, vec, "city"), "location text should be lowercased")
	assert.Equal(t, "mokotów", textAt(t, vec, "district"))
	assert.Equal(t, "mazowieckie", textAt(t, vec, "region"), "province should rename to region")
}

func TestAdaptFlatBucketsHighFloorsAndDefaultsDistrict(t *testing.T) {
	vec := AdaptFlat(&models.FlatInput{Floor: 12, Heating: "electric", City: "Łódź"})
	assert.Equal(t, ml.HighFloorBucket, textAt(t, vec, "floor"))
	assert.Equal(t, "electrical", textAt(t, vec, "heating"))
	assert.Equal(t, UnknownCategory, textAt(t, vec, "district"), "missing district should fall back to the sentinel")
}

func TestAdaptFlatPassesUntranslatedValuesThrough(t *testing.T) {
	vec := AdaptFlat(&models.FlatInput{Heating: "gas", Market: "secondary", Material: "brick"})
	assert.Equal(t, "gas", textAt(t, vec, "heating"), "values without a translation entry pass through")
	assert.Equal(t, "SECONDARY", textAt(t, vec, "market"))
	assert.Equal(t, "brick", textAt(t, vec, "building_material"))
}

func TestAdaptHouseVocabulary(t *testing.T) {
	vec := AdaptHouse(&models.HouseInput{
		AreaHouse: 140, AreaPlot: 600, Rooms: 5, Floors: 2, Year: 1998,
		BuildType: "detached", ConstructionStatus: "ready_to_use",
		Material: "wood", HeatingType: "", HasGarage: 1,
		City: "Kraków", Province: "Małopolskie",
	})

	assert.Equal(t, 140.0, floatAt(t, vec, "area"), "areaHouse should rename to the shared area column")
	assert.Equal(t, 600.0, floatAt(t, vec, "plot_area"))
	assert.Equal(t, UnknownCategory, textAt(t, vec, "heating"), "missing heating should fall back to the sentinel")
	assert.Equal(t, 1.0, floatAt(t, vec, "parking"), "garage maps onto the shared parking flag")
	assert.Equal(t, UnknownCategory, textAt(t, vec, "district"), "houses never carry a district")
	assert.Equal(t, "kraków", textAt(t, vec, "city"))

	assert.False(t, vec.Has("market"), "the house model was not trained on market")
	assert.False(t, vec.Has("roof_type"), "roof type is accepted but not modeled")
}

func TestAdaptPlotVocabulary(t *testing.T) {
	vec := AdaptPlot(&models.PlotInput{
		Area: 1200, Type: "building", LocationType: "suburban",
		IsHardAccess: 1, City: "Gdynia", Province: "Pomorskie",
	})

	assert.Equal(t, "building", textAt(t, vec, "plot_type"), "type should rename to plot_type")
	assert.Equal(t, "suburban", textAt(t, vec, "purpose"), "locationType should rename to purpose")
	assert.Equal(t, 1.0, floatAt(t, vec, "access_road"))
	assert.Equal(t, UnknownCategory, textAt(t, vec, "utilities"), "utilities are not collected and stay unknown")
	assert.Equal(t, "pomorskie", textAt(t, vec, "region"))
}
