package survey

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/match"
)

// ErrInvalid marks input that cannot be imported as given.
var ErrInvalid = errors.New("survey: invalid input")

// Entry is one vendor a respondent named.
type Entry struct {
	VendorName string `json:"vendor_name"`
	Category   string `json:"category"`
	Phone      string `json:"phone,omitempty"`
	Rating     *int   `json:"rating,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// Row is one respondent and their entries after parsing.
type Row struct {
	Name    string  `json:"name"`
	Email   string  `json:"email,omitempty"`
	Entries []Entry `json:"entries"`
	Line    int     `json:"line"` // 1-based line of first occurrence
}

var (
	nameHeaders  = map[string]bool{"name": true, "respondent": true, "full name": true, "your name": true, "respondent name": true}
	emailHeaders = map[string]bool{"email": true, "email address": true, "e-mail": true}
	placeholders = map[string]bool{"n/a": true, "na": true, "none": true, "-": true, "no": true}
)

type column struct {
	index    int
	category string
}

type layout struct {
	name       int
	email      int
	categories []column // header order
}

func detectLayout(header []string, cm CategoryMap) (*layout, error) {
	l := &layout{name: -1, email: -1}
	for i, h := range header {
		key := headerKey(h)
		switch {
		case nameHeaders[key] && l.name < 0:
			l.name = i
		case emailHeaders[key] && l.email < 0:
			l.email = i
		default:
			if c, ok := cm.Lookup(h); ok {
				l.categories = append(l.categories, column{index: i, category: c})
			}
		}
	}
	if l.name < 0 {
		return nil, eris.Wrap(ErrInvalid, "survey: no respondent name column (Name, Respondent or Full Name)")
	}
	if len(l.categories) == 0 {
		return nil, eris.Wrap(ErrInvalid, "survey: no category columns recognized")
	}
	return l, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Parse turns spreadsheet records into respondent rows. The first non-empty
// record is the header. Respondents repeated in the file are merged by
// normalized name.
func Parse(records [][]string, cm CategoryMap) ([]Row, error) {
	if cm == nil {
		cm = DefaultCategoryMap()
	}

	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, eris.Wrap(ErrInvalid, "survey: file has no header row")
	}
	l, err := detectLayout(records[start], cm)
	if err != nil {
		return nil, err
	}

	var rows []Row
	index := make(map[string]int)
	for n, record := range records[start+1:] {
		line := start + n + 2
		name := cell(record, l.name)
		if name == "" {
			if !blank(record) {
				zap.L().Debug("survey: skipping row without respondent name", zap.Int("line", line))
			}
			continue
		}

		var entries []Entry
		for _, col := range l.categories {
			for _, m := range SplitCell(cell(record, col.index)) {
				entries = append(entries, Entry{VendorName: m.Name, Category: col.category, Phone: m.Phone})
			}
		}

		key := match.NormalizeName(name)
		if i, ok := index[key]; ok {
			if rows[i].Email == "" {
				rows[i].Email = cell(record, l.email)
			}
			rows[i].Entries = append(rows[i].Entries, entries...)
			continue
		}
		index[key] = len(rows)
		rows = append(rows, Row{Name: name, Email: cell(record, l.email), Entries: entries, Line: line})
	}

	for i := range rows {
		rows[i].Entries = dedupeEntries(rows[i].Entries)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// dedupeEntries keeps the first entry per (name, category).
func dedupeEntries(entries []Entry) []Entry {
	seen := make(map[match.Key]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := match.KeyOf(e.VendorName, e.Category)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// Mention is a vendor name with an optional phone split from a cell.
type Mention struct {
	Name  string
	Phone string
}

var (
	cellSepRe    = regexp.MustCompile(`[;\r\n]+`)
	parenPhoneRe = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)$`)
)

// SplitCell splits a cell listing one or more vendors separated by ";" or
// newlines. A trailing phone number in parentheses or after " - " becomes
// the mention's phone. Names that normalize to nothing, such as "...", are
// dropped.
func SplitCell(s string) []Mention {
	var out []Mention
	for _, part := range cellSepRe.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" || placeholders[strings.ToLower(part)] {
			continue
		}
		name, phone := splitPhone(part)
		if match.NormalizeName(name) == "" {
			continue
		}
		out = append(out, Mention{Name: name, Phone: phone})
	}
	return out
}

func splitPhone(s string) (string, string) {
	if m := parenPhoneRe.FindStringSubmatch(s); m != nil && looksLikePhone(m[2]) {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if i := strings.LastIndex(s, " - "); i >= 0 && looksLikePhone(s[i+3:]) {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
	}
	return s, ""
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" +-.()xX", r):
		default:
			return false
		}
	}
	return digits >= 7
}
