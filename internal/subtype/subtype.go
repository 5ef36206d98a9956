// Package subtype maps domain events onto the fixed subtype identifiers
// the backend's baby_action collection uses, and packs auxiliary metadata
// (bottle volume, place, coordinates) into the single note column.
package subtype

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nestlingapp/nestling/internal/model"
)

// The nine backend subtype identifiers. These are wire values; they never
// change even when display categories are renamed.
const (
	Sleep            = "sleep"
	DiaperPee        = "diaper_pee"
	DiaperPoo        = "diaper_poo"
	DiaperBoth       = "diaper_both"
	BottleFormula    = "feeding_bottle_formula"
	BottleBreastmilk = "feeding_bottle_breastmilk"
	Meal             = "feeding_meal"
	LeftBreast       = "feeding_left_breast"
	RightBreast      = "feeding_right_breast"
)

var toID = map[model.Category]map[string]string{
	model.CategorySleep: {
		"": Sleep,
	},
	model.CategoryDiaper: {
		model.DetailPee:  DiaperPee,
		model.DetailPoo:  DiaperPoo,
		model.DetailBoth: DiaperBoth,
	},
	model.CategoryFeeding: {
		model.DetailBottleFormula:    BottleFormula,
		model.DetailBottleBreastmilk: BottleBreastmilk,
		model.DetailMeal:             Meal,
		model.DetailLeftBreast:       LeftBreast,
		model.DetailRightBreast:      RightBreast,
	},
}

var fromID = map[string]struct {
	category model.Category
	detail   string
}{
	Sleep:            {model.CategorySleep, ""},
	DiaperPee:        {model.CategoryDiaper, model.DetailPee},
	DiaperPoo:        {model.CategoryDiaper, model.DetailPoo},
	DiaperBoth:       {model.CategoryDiaper, model.DetailBoth},
	BottleFormula:    {model.CategoryFeeding, model.DetailBottleFormula},
	BottleBreastmilk: {model.CategoryFeeding, model.DetailBottleBreastmilk},
	Meal:             {model.CategoryFeeding, model.DetailMeal},
	LeftBreast:       {model.CategoryFeeding, model.DetailLeftBreast},
	RightBreast:      {model.CategoryFeeding, model.DetailRightBreast},
}

// ID returns the subtype identifier for a (category, detail) pair.
func ID(category model.Category, detail string) (string, error) {
	details, ok := toID[category]
	if !ok {
		return "", fmt.Errorf("unknown category %q", category)
	}
	id, ok := details[detail]
	if !ok {
		return "", fmt.Errorf("unknown detail %q for category %q", detail, category)
	}
	return id, nil
}

// Parse resolves a subtype identifier back to its (category, detail) pair.
func Parse(id string) (model.Category, string, error) {
	entry, ok := fromID[id]
	if !ok {
		return "", "", fmt.Errorf("unknown subtype identifier %q", id)
	}
	return entry.category, entry.detail, nil
}

// Metadata is the auxiliary payload packed into the note column.
type Metadata struct {
	VolumeML  *float64
	Place     string
	Latitude  *float64
	Longitude *float64
}

// EncodeNote packs metadata into key=value pairs joined by semicolons.
// Keys are emitted in a fixed order so encoding is deterministic.
// Coordinates are formatted with six fractional digits.
func EncodeNote(m Metadata) string {
	var pairs []string
	if m.VolumeML != nil {
		pairs = append(pairs, "volume="+strconv.FormatFloat(*m.VolumeML, 'f', -1, 64))
	}
	if m.Place != "" {
		pairs = append(pairs, "place="+sanitize(m.Place))
	}
	if m.Latitude != nil {
		pairs = append(pairs, fmt.Sprintf("lat=%.6f", *m.Latitude))
	}
	if m.Longitude != nil {
		pairs = append(pairs, fmt.Sprintf("lon=%.6f", *m.Longitude))
	}
	return strings.Join(pairs, ";")
}

// DecodeNote parses a packed note string. Malformed or unknown pairs are
// dropped rather than failing the decode; the backend holds notes written
// by several client generations.
func DecodeNote(s string) Metadata {
	var m Metadata
	for _, pair := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		switch key {
		case "volume":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.VolumeML = &v
			}
		case "place":
			m.Place = value
		case "lat":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.Latitude = &v
			}
		case "lon":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				m.Longitude = &v
			}
		}
	}
	return m
}

// NoteFor extracts an action's metadata as a packed note string.
func NoteFor(a *model.Action) string {
	return EncodeNote(Metadata{
		VolumeML:  a.VolumeML,
		Place:     a.Place,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	})
}

// ApplyNote writes decoded note metadata onto an action.
func ApplyNote(a *model.Action, note string) {
	m := DecodeNote(note)
	a.VolumeML = m.VolumeML
	a.Place = m.Place
	a.Latitude = m.Latitude
	a.Longitude = m.Longitude
}

// Identifiers returns all nine subtype identifiers, sorted.
func Identifiers() []string {
	ids := make([]string, 0, len(fromID))
	for id := range fromID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sanitize strips the pair and key-value separators from free-text values
// so a place name cannot corrupt the packed encoding.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, ";", " ")
	s = strings.ReplaceAll(s, "=", " ")
	return s
}
