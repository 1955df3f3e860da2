package views

import "github.com/pavel-vrtal-ict/rybari-registrace/internal/record"

// Category codes used by the registration form.
const (
	CategoryAdults = "dospeli"
	CategoryYouth  = "mladez"
	CategoryKids   = "deti"
)

var categoryLabels = map[string]string{
	CategoryAdults: "Dospělí",
	CategoryYouth:  "Mládež",
	CategoryKids:   "Děti",
}

// CategoryLabel returns the display label of a category code.
// Unknown codes are returned unchanged.
func CategoryLabel(code string) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return code
}

// CategoryCount is the number of entrants with one category label.
type CategoryCount struct {
	Label string
	Count int
}

// CategoryCounts counts an event's entrants by category label, in order of
// first appearance.
func CategoryCounts(ds record.Dataset, eventID string) []CategoryCount {
	var out []CategoryCount
	index := make(map[string]int)
	for _, e := range ds.Entrants {
		if e.EventID != eventID {
			continue
		}
		label := CategoryLabel(e.Category)
		if i, ok := index[label]; ok {
			out[i].Count++
			continue
		}
		index[label] = len(out)
		out = append(out, CategoryCount{Label: label, Count: 1})
	}
	return out
}
