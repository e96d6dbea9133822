package survey

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/courtneys-list/vendors/internal/model"
)

// CategoryMap maps a spreadsheet column header to a vendor category.
type CategoryMap map[string]string

var defaultColumns = map[string]string{
	"pool":             "Pool",
	"pool service":     "Pool",
	"pool cleaning":    "Pool",
	"hvac":             "HVAC",
	"a/c":              "HVAC",
	"ac":               "HVAC",
	"air conditioning": "HVAC",
	"heating and air":  "HVAC",
	"landscaping":      "Landscaping",
	"lawn":             "Landscaping",
	"lawn care":        "Landscaping",
	"yard":             "Landscaping",
	"pest control":     "Pest Control",
	"pest":             "Pest Control",
	"exterminator":     "Pest Control",
	"plumbing":         "Plumbing",
	"plumber":          "Plumbing",
	"electrician":      "Electrician",
	"electrical":       "Electrician",
	"handyman":         "Handyman",
	"painting":         "Painting",
	"painter":          "Painting",
	"cleaning":         "Cleaning",
	"house cleaning":   "Cleaning",
	"housekeeping":     "Cleaning",
	"maid":             "Cleaning",
	"roofing":          "Roofing",
	"roofer":           "Roofing",
	"appliance repair": "Appliance Repair",
	"appliances":       "Appliance Repair",
	"babysitting":      "Babysitting",
	"babysitter":       "Babysitting",
	"childcare":        "Babysitting",
	"pet care":         "Pet Care",
	"pet sitting":      "Pet Care",
	"dog walking":      "Pet Care",
	"tutoring":         "Tutoring",
	"tutor":            "Tutoring",
}

var parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)

// headerKey lowercases, drops parentheticals and trailing punctuation, and
// collapses whitespace: "Pool Service (name & phone)?" -> "pool service".
func headerKey(h string) string {
	h = parentheticalRe.ReplaceAllString(h, "")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimRight(h, "?:*")
	h = strings.ReplaceAll(h, "&", "and")
	return strings.Join(strings.Fields(h), " ")
}

// DefaultCategoryMap returns the built-in header mapping.
func DefaultCategoryMap() CategoryMap {
	m := make(CategoryMap, len(defaultColumns))
	for k, v := range defaultColumns {
		m[k] = v
	}
	return m
}

// LoadCategoryMap reads a YAML override of the form
//
//	columns:
//	  "Lawn Guy": Landscaping
//
// and merges it over the defaults. An empty path returns the defaults.
func LoadCategoryMap(path string) (CategoryMap, error) {
	m := DefaultCategoryMap()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: read category map %s", path)
	}
	var wrapper struct {
		Columns map[string]string `yaml:"columns"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "survey: parse category map")
	}
	for header, category := range wrapper.Columns {
		if strings.TrimSpace(category) == "" {
			return nil, eris.Wrapf(ErrInvalid, "survey: category map entry %q has no category", header)
		}
		m[headerKey(header)] = model.NormalizeCategory(category)
	}
	return m, nil
}

// Lookup resolves a header to a category. Headers naming a known category
// directly always resolve.
func (m CategoryMap) Lookup(header string) (string, bool) {
	key := headerKey(header)
	if key == "" {
		return "", false
	}
	if c, ok := m[key]; ok {
		return c, true
	}
	c := model.NormalizeCategory(key)
	for _, known := range model.Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}
