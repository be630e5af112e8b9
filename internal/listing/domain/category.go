package domain

// categoryFeatures maps a category to the feature keys its listings describe.
// It is advisory; listing features are never validated against it.
var categoryFeatures = map[string][]string{
	"vehicles": {
		"ManufacturerName",
		"seatingCapacity",
		"Kilometers",
		"fuelType",
		"transmission",
		"Year",
		"Color",
		"exteriorColor",
		"variant",
		"trim",
		"bodyType",
	},
	"apartments": {
		"numberOfRooms",
	},
}

// Features returns the ordered feature keys of category, or an empty slice for
// an unknown category.
func Features(category string) []string {
	keys, ok := categoryFeatures[category]
	if !ok {
		return []string{}
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}
