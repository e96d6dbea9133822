package model

import "strings"

// Known categories as shown in the directory.
var Categories = []string{
	"Appliance Repair",
	"Babysitting",
	"Cleaning",
	"Electrician",
	"Handyman",
	"HVAC",
	"Landscaping",
	"Painting",
	"Pest Control",
	"Pet Care",
	"Plumbing",
	"Pool",
	"Roofing",
	"Tutoring",
}

var categoryIndex = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[categoryKey(c)] = c
	}
	return m
}()

func categoryKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeCategory maps a category label to its canonical form. Known
// categories match case- and whitespace-insensitively; unknown labels are
// trimmed and whitespace-collapsed but otherwise kept.
func NormalizeCategory(s string) string {
	key := categoryKey(s)
	if c, ok := categoryIndex[key]; ok {
		return c
	}
	return strings.Join(strings.Fields(s), " ")
}
