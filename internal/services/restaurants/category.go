package restaurants

import "strings"

const (
	// DefaultRadius is used when the caller gives no radius.
	DefaultRadius = 1000
	// MaxRadius is the largest radius the provider accepts.
	MaxRadius = 50000
	// MaxCandidates bounds how many upstream results one search reconciles.
	MaxCandidates = 20

	defaultPlaceType = "restaurant"
)

var categoryPlaceTypes = map[string]string{
	"all":     "restaurant",
	"snack":   "food",
	"dessert": "bakery",
	"cafe":    "cafe",
	// labels sent by the original mobile client
	"全部": "restaurant",
	"小吃": "food",
	"餐廳": "restaurant",
	"甜點": "bakery",
	"咖啡": "cafe",
}

// PlaceTypeFor maps a search category to the upstream place type. Unknown
// and empty categories fall back to "restaurant".
func PlaceTypeFor(category string) string {
	if placeType, ok := categoryPlaceTypes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return placeType
	}
	return defaultPlaceType
}

// ClampRadius applies the default (for zero) and the provider's bounds.
func ClampRadius(radius int) int {
	switch {
	case radius == 0:
		return DefaultRadius
	case radius < 1:
		return 1
	case radius > MaxRadius:
		return MaxRadius
	default:
		return radius
	}
}
