// Package match partitions pending survey ratings into exact, fuzzy and
// unmatched vendor candidates. Everything here is pure; callers fetch the
// rows and vendors and hand them in.
package match

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/courtneys-list/vendors/internal/model"
)

// legalSuffixes lists legal entity suffixes stripped during name normalization.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LLP", " L.L.P.", " L.L.P",
	" PLLC",
	" CO", " CO.",
	" DBA", " D/B/A",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var punctReplacer = strings.NewReplacer(
	",", "",
	".", "",
	"'", "",
	"’", "",
	"\"", "",
	"&", "AND",
	"-", " ",
)

// NormalizeName standardizes a vendor name for matching by:
//  1. Applying NFKC and trimming whitespace
//  2. Converting to uppercase
//  3. Removing one trailing legal suffix (LLC, Inc, Corp, etc.)
//  4. Stripping punctuation and rewriting & as AND
//  5. Collapsing multiple spaces into single spaces
//
// Abbreviations are left alone so "AC Pool Svc" and "A.C. Pool Service"
// stay distinct and are left to the fuzzy scorer.
func NormalizeName(name string) string {
	name = strings.TrimSpace(norm.NFKC.String(name))
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = punctReplacer.Replace(name)
	name = strings.Join(strings.Fields(multiSpaceRe.ReplaceAllString(name, " ")), " ")

	return name
}

// NormalizeCategory maps a category label to its canonical form.
func NormalizeCategory(category string) string {
	return model.NormalizeCategory(norm.NFKC.String(category))
}

// Key identifies a group of staged ratings.
type Key struct {
	Name     string
	Category string
}

// KeyOf returns the grouping key for a survey name and category.
func KeyOf(name, category string) Key {
	return Key{Name: NormalizeName(name), Category: NormalizeCategory(category)}
}
