// Package feedback distills a photographer's liked-events spreadsheet
// into an interest profile: event types become interests, title words
// become keywords, and source URLs become trusted domains.
package feedback

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/event-scout/internal/model"
)

// Title words shorter than this carry no signal.
const minKeywordLen = 4

var stopWords = map[string]bool{
	"with": true, "from": true, "this": true, "that": true,
	"have": true, "been": true, "will": true, "event": true,
}

// ImportOptions configures the spreadsheet import.
type ImportOptions struct {
	SheetName   string // if empty, the first sheet
	MaxKeywords int    // default 15
	MaxDomains  int    // default 10
}

// ImportResult carries the generated profile and row accounting.
type ImportResult struct {
	Profile model.InterestProfile
	Rows    int // data rows used
	Skipped int // rows without an event name
}

// ImportXLSX reads a liked-events spreadsheet and builds a profile from
// it. The sheet needs an "Event Name" column; "Event Type" and "URL"
// columns are used when present. Header matching ignores case and
// surrounding whitespace.
func ImportXLSX(path, profileName string, opts ImportOptions) (*ImportResult, error) {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 15
	}
	if opts.MaxDomains <= 0 {
		opts.MaxDomains = 10
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "feedback: open spreadsheet")
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("feedback: sheet %q is empty", sheet.Name)
	}

	cols := indexColumns(rowToStrings(sheet.Rows[0]))
	if cols.name < 0 {
		return nil, eris.Errorf("feedback: no Event Name column in %s", path)
	}

	keywords := counter{}
	domains := counter{}
	interests := counter{}
	res := &ImportResult{}

	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)

		name := cellAt(cells, cols.name)
		if name == "" {
			res.Skipped++
			continue
		}
		res.Rows++

		for _, w := range titleWords(name) {
			keywords.add(w)
		}
		if typ := strings.ToLower(cellAt(cells, cols.typ)); typ != "" {
			interests.add(typ)
			keywords.add(typ)
		}
		if d := model.NormalizeDomain(cellAt(cells, cols.url)); d != "" {
			domains.add(d)
		}
	}

	res.Profile = model.InterestProfile{
		Name:      profileName,
		Interests: interests.top(0),
		Keywords:  keywords.top(opts.MaxKeywords),
		Domains:   domains.top(opts.MaxDomains),
	}
	return res, nil
}

// columnIndexes locates the liked-events columns in the header row.
// Absent columns stay at -1.
type columnIndexes struct {
	name, typ, url int
}

func indexColumns(headers []string) columnIndexes {
	cols := columnIndexes{name: -1, typ: -1, url: -1}
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "event name":
			cols.name = i
		case "event type":
			cols.typ = i
		case "url":
			cols.url = i
		}
	}
	return cols
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("feedback: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("feedback: spreadsheet has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// titleWords splits an event title into lowercase alphabetic words long
// enough to carry signal, with stop words removed.
func titleWords(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var words []string
	for _, w := range fields {
		if len(w) < minKeywordLen || stopWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

// counter tallies string frequencies.
type counter map[string]int

func (c counter) add(s string) {
	c[s]++
}

// top returns up to n entries, most frequent first, ties broken
// alphabetically. n <= 0 returns everything.
func (c counter) top(n int) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c[keys[i]] != c[keys[j]] {
			return c[keys[i]] > c[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
