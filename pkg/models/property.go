package models

import (
	"errors"
	"fmt"
)

// PropertyType tags the three supported property kinds
type PropertyType string

const (
	PropertyHouse PropertyType = "house"
	PropertyFlat  PropertyType = "flat"
	PropertyPlot  PropertyType = "plot"
)

// ParsePropertyType validates a property type string
func ParsePropertyType(s string) (PropertyType, error) {
	switch PropertyType(s) {
	case PropertyHouse, PropertyFlat, PropertyPlot:
		return PropertyType(s), nil
	}
	return "", fmt.Errorf("invalid property type %q", s)
}

// ErrModelUnavailable is returned when the requested property type's model
// slot is not loaded. It is scoped to a single request type: the other
// slots keep serving.
var ErrModelUnavailable = errors.New("model not loaded for requested property type")

// FlatInput is a client-facing flat record. Field vocabulary follows the
// public API, not the training vocabulary; the engine's taxonomy normalizer
// translates between the two.
type FlatInput struct {
	Area        float64 `json:"area"`
	Rooms       int     `json:"rooms"`
	Floor       int     `json:"floor"`
	TotalFloors int     `json:"totalFloors"`
	Year        int     `json:"year"`

	BuildType          string `json:"buildType"`
	Material           string `json:"material"`
	Heating            string `json:"heating"`
	Market             string `json:"market"`
	ConstructionStatus string `json:"constructionStatus"`

	HasLift    int `json:"hasLift"`
	HasOutdoor int `json:"hasOutdoor"`
	HasParking int `json:"hasParking"`

	City     string `json:"city"`
	District string `json:"district"`
	Province string `json:"province"`
}

// HouseInput is a client-facing house record
type HouseInput struct {
	AreaHouse float64 `json:"areaHouse"`
	AreaPlot  float64 `json:"areaPlot"`
	Rooms     int     `json:"rooms"`
	Floors    int     `json:"floors"`
	Year      int     `json:"year"`

	BuildType          string `json:"buildType"`
	ConstructionStatus string `json:"constructionStatus"`
	Market             string `json:"market"`
	Material           string `json:"material"`
	RoofType           string `json:"roofType"`

	HasGarage    int `json:"hasGarage"`
	HasBasement  int `json:"hasBasement"`
	HasGas       int `json:"hasGas"`
	HasSewerage  int `json:"hasSewerage"`
	IsHardAccess int `json:"isHardAccess"`

	FenceType   string `json:"fenceType"`
	HeatingType string `json:"heatingType"`

	City     string `json:"city"`
	Province string `json:"province"`
}

// PlotInput is a client-facing plot record
type PlotInput struct {
	Area float64 `json:"area"`

	Type         string `json:"type"`
	LocationType string `json:"locationType"`

	HasElectricity int `json:"hasElectricity"`
	HasWater       int `json:"hasWater"`
	HasGas         int `json:"hasGas"`
	HasSewerage    int `json:"hasSewerage"`
	IsHardAccess   int `json:"isHardAccess"`
	HasFence       int `json:"hasFence"`

	City     string `json:"city"`
	Province string `json:"province"`
}

var (
	flatBuildTypes    = stringSet("block", "tenement", "apartment", "house")
	flatMaterials     = stringSet("brick", "concrete_plate", "concrete", "silikat", "breezeblock")
	flatHeatings      = stringSet("district", "gas", "electric", "boiler")
	markets           = stringSet("primary", "secondary")
	flatStatuses      = stringSet("ready_to_use", "to_completion", "to_renovation")
	houseBuildTypes   = stringSet("detached", "semi_detached", "ribbon", "manor")
	houseStatuses     = stringSet("ready_to_use", "to_completion", "to_renovation", "unfinished_close")
	houseMaterials    = stringSet("brick", "wood", "breezeblock", "concrete", "silikat")
	houseRoofTypes    = stringSet("tile", "sheet", "shingle", "slate")
	plotTypes         = stringSet("building", "agricultural", "recreational", "investment", "forest", "habitat")
	plotLocationTypes = stringSet("city", "suburban", "country")
)

// Validate checks the record's field constraints
func (f *FlatInput) Validate() error {
	if f.Area <= 0 {
		return fmt.Errorf("area must be positive")
	}
	if f.Rooms <= 0 {
		return fmt.Errorf("rooms must be positive")
	}
	if f.Floor < 0 {
		return fmt.Errorf("floor must not be negative")
	}
	if f.TotalFloors < 0 {
		return fmt.Errorf("totalFloors must not be negative")
	}
	if err := validateYear(f.Year); err != nil {
		return err
	}
	if err := validateEnum("buildType", f.BuildType, flatBuildTypes); err != nil {
		return err
	}
	if err := validateEnum("material", f.Material, flatMaterials); err != nil {
		return err
	}
	if err := validateEnum("heating", f.Heating, flatHeatings); err != nil {
		return err
	}
	if err := validateEnum("market", f.Market, markets); err != nil {
		return err
	}
	if err := validateEnum("constructionStatus", f.ConstructionStatus, flatStatuses); err != nil {
		return err
	}
	if err := validateFlags(map[string]int{"hasLift": f.HasLift, "hasOutdoor": f.HasOutdoor, "hasParking": f.HasParking}); err != nil {
		return err
	}
	return validateLocation(f.City, f.Province)
}

// Validate checks the record's field constraints
func (h *HouseInput) Validate() error {
	if h.AreaHouse <= 0 {
		return fmt.Errorf("areaHouse must be positive")
	}
	if h.AreaPlot <= 0 {
		return fmt.Errorf("areaPlot must be positive")
	}
	if h.Rooms <= 0 {
		return fmt.Errorf("rooms must be positive")
	}
	if h.Floors < 0 {
		return fmt.Errorf("floors must not be negative")
	}
	if err := validateYear(h.Year); err != nil {
		return err
	}
	if err := validateEnum("buildType", h.BuildType, houseBuildTypes); err != nil {
		return err
	}
	if err := validateEnum("constructionStatus", h.ConstructionStatus, houseStatuses); err != nil {
		return err
	}
	if err := validateEnum("market", h.Market, markets); err != nil {
		return err
	}
	if err := validateEnum("material", h.Material, houseMaterials); err != nil {
		return err
	}
	if err := validateEnum("roofType", h.RoofType, houseRoofTypes); err != nil {
		return err
	}
	if err := validateFlags(map[string]int{
		"hasGarage":    h.HasGarage,
		"hasBasement":  h.HasBasement,
		"hasGas":       h.HasGas,
		"hasSewerage":  h.HasSewerage,
		"isHardAccess": h.IsHardAccess,
	}); err != nil {
		return err
	}
	return validateLocation(h.City, h.Province)
}

// Validate checks the record's field constraints
func (p *PlotInput) Validate() error {
	if p.Area <= 0 {
		return fmt.Errorf("area must be positive")
	}
	if err := validateEnum("type", p.Type, plotTypes); err != nil {
		return err
	}
	if err := validateEnum("locationType", p.LocationType, plotLocationTypes); err != nil {
		return err
	}
	if err := validateFlags(map[string]int{
		"hasElectricity": p.HasElectricity,
		"hasWater":       p.HasWater,
		"hasGas":         p.HasGas,
		"hasSewerage":    p.HasSewerage,
		"isHardAccess":   p.IsHardAccess,
		"hasFence":       p.HasFence,
	}); err != nil {
		return err
	}
	return validateLocation(p.City, p.Province)
}

func stringSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func validateYear(year int) error {
	if year < 1800 || year > 2100 {
		return fmt.Errorf("year must be between 1800 and 2100")
	}
	return nil
}

func validateEnum(field, value string, allowed map[string]struct{}) error {
	if _, ok := allowed[value]; !ok {
		return fmt.Errorf("invalid %s %q", field, value)
	}
	return nil
}

func validateFlags(flags map[string]int) error {
	for name, value := range flags {
		if value != 0 && value != 1 {
			return fmt.Errorf("%s must be 0 or 1", name)
		}
	}
	return nil
}

func validateLocation(city, province string) error {
	if city == "" {
		return fmt.Errorf("city must not be empty")
	}
	if province == "" {
		return fmt.Errorf("province must not be empty")
	}
	return nil
}
