package engine

import (
	"strings"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

// Taxonomy normalization: the public API vocabulary (field names and
// enumerated values) is mapped onto the vocabulary the pipelines were
// trained on. Translation is best effort, not validation: values without a
// table entry pass through unchanged and the trained encoder decides what
// to do with them.

// UnknownCategory is the training-time encoding of an absent text field
const UnknownCategory = "unknown"

// valueTranslations maps public enumerated values to training values,
// per column. Only these columns are translated at all.
var valueTranslations = map[string]map[string]string{
	"heating": {
		"district": "urban",
		"electric": "electrical",
	},
	"market": {
		"primary":   "PRIMARY",
		"secondary": "SECONDARY",
	},
	"building_type": {
		"apartment_building": "block",
	},
	"building_material": {
		"plate": "concrete_plate",
	},
	"finishing": {
		"for_renovation": "to_renovation",
	},
}

// translateValue looks up a training-vocabulary value for a public one.
// Unknown values pass through.
func translateValue(column, value string) string {
	table, ok := valueTranslations[column]
	if !ok {
		return value
	}
	if translated, ok := table[value]; ok {
		return translated
	}
	return value
}

// normalizeText lowercases and trims categorical key text so training-time
// casing differences never split one category into two
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// textOrUnknown substitutes the training-time sentinel for missing text
func textOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownCategory
	}
	return normalizeText(s)
}

// flag coerces an amenity value to a canonical 0/1 integer
func flag(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}

// AdaptFlat maps a flat record onto the flat model's feature vector
func AdaptFlat(in *models.FlatInput) *ml.FeatureVector {
	vec := ml.NewFeatureVector()
	vec.Set("area", in.Area)
	vec.Set("rooms", in.Rooms)
	vec.Set("floor", ml.FloorBucket(in.Floor))
	vec.Set("floors_in_building", in.TotalFloors)
	vec.Set("year_built", in.Year)

	vec.Set("building_type", translateValue("building_type", in.BuildType))
	vec.Set("building_material", translateValue("building_material", in.Material))
	vec.Set("heating", translateValue("heating", in.Heating))
	vec.Set("market", translateValue("market", in.Market))
	vec.Set("finishing", translateValue("finishing", in.ConstructionStatus))

	vec.Set("elevator", flag(in.HasLift))
	vec.Set("balcony/garden", flag(in.HasOutdoor))
	vec.Set("parking", flag(in.HasParking))

	vec.Set("city", normalizeText(in.City))
	vec.Set("district", textOrUnknown(in.District))
	vec.Set("region", normalizeText(in.Province))
	return vec
}

// AdaptHouse maps a house record onto the house model's feature vector
func AdaptHouse(in *models.HouseInput) *ml.FeatureVector {
	vec := ml.NewFeatureVector()
	vec.Set("area", in.AreaHouse)
	vec.Set("plot_area", in.AreaPlot)
	vec.Set("rooms", in.Rooms)
	vec.Set("floors", in.Floors)
	vec.Set("year_built", in.Year)

	vec.Set("building_type", translateValue("building_type", in.BuildType))
	vec.Set("building_material", translateValue("building_material", in.Material))
	vec.Set("heating", translateValue("heating", textOrUnknown(in.HeatingType)))
	vec.Set("finishing", translateValue("finishing", in.ConstructionStatus))
	vec.Set("parking", flag(in.HasGarage))

	vec.Set("city", normalizeText(in.City))
	vec.Set("district", UnknownCategory)
	vec.Set("region", normalizeText(in.Province))
	return vec
}

// AdaptPlot maps a plot record onto the plot model's feature vector
func AdaptPlot(in *models.PlotInput) *ml.FeatureVector {
	vec := ml.NewFeatureVector()
	vec.Set("area", in.Area)
	vec.Set("plot_type", in.Type)
	vec.Set("purpose", in.LocationType)
	vec.Set("access_road", flag(in.IsHardAccess))
	vec.Set("utilities", UnknownCategory)

	vec.Set("city", normalizeText(in.City))
	vec.Set("district", UnknownCategory)
	vec.Set("region", normalizeText(in.Province))
	return vec
}
