package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

// Component is one labeled, signed price delta from a single-feature
// counterfactual substitution: "switching this feature from its current
// value to the chosen baseline changes the price by Delta".
type Component struct {
	Label string  `json:"label"`
	Delta float64 `json:"delta"`
}

// probe is one planned counterfactual: override a single feature with a
// contrast value and measure the price delta
type probe struct {
	feature  string
	contrast any
	label    string
}

// Decompose measures the value drivers of one prediction. For each
// semantically meaningful feature of the property type it picks one
// contrast value (the next most normal alternative, not an exhaustive
// sweep), re-runs the point prediction with only that field overridden and
// records the signed delta. A failed probe drops that component only; the
// rest of the decomposition proceeds. The base vector is never mutated.
func Decompose(ctx context.Context, p Predictor, propertyType models.PropertyType, base *ml.FeatureVector, basePrice float64) []Component {
	var probes []probe
	switch propertyType {
	case models.PropertyFlat:
		probes = flatProbes(base)
	case models.PropertyHouse:
		probes = houseProbes(base)
	case models.PropertyPlot:
		probes = plotProbes(base)
	}

	components := make([]Component, 0, len(probes))
	for _, pr := range probes {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		contrasted := base.With(pr.feature, pr.contrast)
		price, err := PredictPoint(p, contrasted)
		if err != nil {
			continue
		}
		delta := round2(basePrice - price)
		if delta == 0 {
			continue
		}
		components = append(components, Component{Label: pr.label, Delta: delta})
	}

	sort.SliceStable(components, func(i, j int) bool {
		return math.Abs(components[i].Delta) > math.Abs(components[j].Delta)
	})
	return components
}

// EraTag names the construction era of a building year. Used only in
// component labels, never in the comparison itself.
func EraTag(year int) string {
	switch {
	case year < 1945:
		return "przedwojenne"
	case year <= 1989:
		return "budownictwo z czasów PRL"
	case year <= 2012:
		return "lata 90./2000"
	default:
		return "nowe budownictwo"
	}
}

// materialNames localizes training-vocabulary material values for labels
var materialNames = map[string]string{
	"brick":          "cegła",
	"concrete_plate": "wielka płyta",
	"concrete":       "beton",
	"silikat":        "silikat",
	"breezeblock":    "pustak",
	"wood":           "drewno",
}

func materialName(value string) string {
	if name, ok := materialNames[value]; ok {
		return name
	}
	return value
}

// flatBuildingNames localizes flat building types for labels
var flatBuildingNames = map[string]string{
	"block":     "blok",
	"tenement":  "kamienica",
	"apartment": "apartamentowiec",
	"house":     "dom",
}

// houseBuildingNames localizes house building types for labels
var houseBuildingNames = map[string]string{
	"detached":      "dom wolnostojący",
	"semi_detached": "bliźniak",
	"ribbon":        "szeregowiec",
	"manor":         "dworek",
}

// plotTypeNames localizes plot types for labels
var plotTypeNames = map[string]string{
	"building":     "budowlana",
	"agricultural": "rolna",
	"recreational": "rekreacyjna",
	"investment":   "inwestycyjna",
	"forest":       "leśna",
	"habitat":      "siedliskowa",
}

func localized(table map[string]string, value string) string {
	if name, ok := table[value]; ok {
		return name
	}
	return value
}

// flatProbes builds the flat contrast-policy table for one base vector.
// Features absent from the vector are skipped, because all property types
// share one inference code path with different feature sets.
func flatProbes(base *ml.FeatureVector) []probe {
	var probes []probe

	if heating, ok := base.Text("heating"); ok {
		switch heating {
		case "urban":
			probes = append(probes, probe{"heating", "electrical", "ogrzewanie miejskie zamiast elektrycznego"})
		case "electrical":
			probes = append(probes, probe{"heating", "urban", "ogrzewanie elektryczne zamiast miejskiego"})
		default:
			probes = append(probes, probe{"heating", "urban", "ogrzewanie inne niż miejskie"})
		}
	}

	if market, ok := base.Text("market"); ok {
		if market == "PRIMARY" {
			probes = append(probes, probe{"market", "SECONDARY", "rynek pierwotny zamiast wtórnego"})
		} else {
			probes = append(probes, probe{"market", "PRIMARY", "rynek wtórny zamiast pierwotnego"})
		}
	}

	if finishing, ok := base.Text("finishing"); ok {
		switch finishing {
		case "ready_to_use":
			probes = append(probes, probe{"finishing", "to_renovation", "stan gotowy do zamieszkania zamiast do remontu"})
		case "to_renovation":
			probes = append(probes, probe{"finishing", "ready_to_use", "stan do remontu zamiast gotowego do zamieszkania"})
		default:
			probes = append(probes, probe{"finishing", "ready_to_use", "stan wykończenia inny niż gotowy do zamieszkania"})
		}
	}

	if material, ok := base.Text("building_material"); ok {
		if material == "concrete_plate" {
			probes = append(probes, probe{"building_material", "brick", "wielka płyta zamiast cegły"})
		} else {
			probes = append(probes, probe{"building_material", "concrete_plate",
				fmt.Sprintf("materiał %s zamiast wielkiej płyty", materialName(material))})
		}
	}

	if floor, ok := base.Text("floor"); ok {
		probes = append(probes, floorProbe(base, floor))
	}

	if buildingType, ok := base.Text("building_type"); ok {
		if buildingType == "block" {
			probes = append(probes, probe{"building_type", "apartment", "blok zamiast apartamentowca"})
		} else {
			probes = append(probes, probe{"building_type", "block",
				fmt.Sprintf("%s zamiast bloku", localized(flatBuildingNames, buildingType))})
		}
	}

	if year, ok := base.Float("year_built"); ok {
		probes = append(probes, yearProbe(int(year)))
	}

	probes = append(probes, amenityProbes(base, []amenity{
		{"elevator", "winda"},
		{"balcony/garden", "balkon/ogród"},
		{"parking", "miejsce parkingowe"},
	})...)

	return probes
}

// floorProbe picks the most informative floor contrast. Mid and high floors
// are compared against ground level or the first floor depending on whether
// the building has an elevator.
func floorProbe(base *ml.FeatureVector, floor string) probe {
	switch floor {
	case "0":
		return probe{"floor", "3", "parter zamiast 3. piętra"}
	case "1", "2", "3":
		return probe{"floor", "0", fmt.Sprintf("%s. piętro zamiast parteru", floor)}
	case ml.HighFloorBucket:
		return probe{"floor", "3", "piętro powyżej 10. zamiast 3. piętra"}
	default:
		elevator, _ := base.Float("elevator")
		if elevator == 1 {
			return probe{"floor", "0", fmt.Sprintf("%s. piętro z windą", floor)}
		}
		return probe{"floor", "1", fmt.Sprintf("%s. piętro bez windy", floor)}
	}
}

// yearProbe contrasts modern construction against a communist-era year and
// older construction against a new build
func yearProbe(year int) probe {
	label := fmt.Sprintf("rok budowy %d (%s)", year, EraTag(year))
	if year > 2012 {
		return probe{"year_built", 1980, label}
	}
	return probe{"year_built", 2024, label}
}

type amenity struct {
	feature string
	label   string
}

// amenityProbes emits a removal probe for each amenity the property has
func amenityProbes(base *ml.FeatureVector, amenities []amenity) []probe {
	var probes []probe
	for _, a := range amenities {
		if val, ok := base.Float(a.feature); ok && val == 1 {
			probes = append(probes, probe{a.feature, 0, a.label})
		}
	}
	return probes
}

// houseProbes builds the house contrast-policy table
func houseProbes(base *ml.FeatureVector) []probe {
	var probes []probe

	if heating, ok := base.Text("heating"); ok && heating != UnknownCategory {
		if heating == "gas" {
			probes = append(probes, probe{"heating", "electric", "ogrzewanie gazowe zamiast elektrycznego"})
		} else {
			probes = append(probes, probe{"heating", "gas", "ogrzewanie inne niż gazowe"})
		}
	}

	if finishing, ok := base.Text("finishing"); ok {
		switch finishing {
		case "ready_to_use":
			probes = append(probes, probe{"finishing", "to_renovation", "stan gotowy do zamieszkania zamiast do remontu"})
		case "to_renovation":
			probes = append(probes, probe{"finishing", "ready_to_use", "stan do remontu zamiast gotowego do zamieszkania"})
		default:
			probes = append(probes, probe{"finishing", "ready_to_use", "stan wykończenia inny niż gotowy do zamieszkania"})
		}
	}

	if material, ok := base.Text("building_material"); ok {
		if material == "brick" {
			probes = append(probes, probe{"building_material", "wood", "cegła zamiast drewna"})
		} else {
			probes = append(probes, probe{"building_material", "brick",
				fmt.Sprintf("materiał %s zamiast cegły", materialName(material))})
		}
	}

	if buildingType, ok := base.Text("building_type"); ok {
		if buildingType == "detached" {
			probes = append(probes, probe{"building_type", "semi_detached", "dom wolnostojący zamiast bliźniaka"})
		} else {
			probes = append(probes, probe{"building_type", "detached",
				fmt.Sprintf("%s zamiast domu wolnostojącego", localized(houseBuildingNames, buildingType))})
		}
	}

	if year, ok := base.Float("year_built"); ok {
		probes = append(probes, yearProbe(int(year)))
	}

	probes = append(probes, amenityProbes(base, []amenity{
		{"parking", "garaż"},
	})...)

	return probes
}

// plotProbes builds the plot contrast-policy table
func plotProbes(base *ml.FeatureVector) []probe {
	var probes []probe

	if plotType, ok := base.Text("plot_type"); ok {
		if plotType == "building" {
			probes = append(probes, probe{"plot_type", "agricultural", "działka budowlana zamiast rolnej"})
		} else {
			probes = append(probes, probe{"plot_type", "building",
				fmt.Sprintf("działka %s zamiast budowlanej", localized(plotTypeNames, plotType))})
		}
	}

	if purpose, ok := base.Text("purpose"); ok {
		if purpose == "city" {
			probes = append(probes, probe{"purpose", "country", "położenie miejskie zamiast wiejskiego"})
		} else {
			probes = append(probes, probe{"purpose", "city", "położenie poza miastem zamiast miejskiego"})
		}
	}

	probes = append(probes, amenityProbes(base, []amenity{
		{"access_road", "dojazd utwardzony"},
	})...)

	return probes
}
