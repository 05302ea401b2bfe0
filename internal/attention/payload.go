package attention

import (
	"cmp"
	"math"
	"slices"
)

// ItemsFromPayload accepts the shapes messages arrive in: a bare list of
// attentions, an object with an "attentions" list, or one attention object.
// Entries failing Valid or ParseItem are dropped.
func ItemsFromPayload(payload any) []Item {
	var raw []any
	switch p := payload.(type) {
	case []any:
		raw = p
	case map[string]any:
		if list, ok := p["attentions"].([]any); ok {
			raw = list
		} else if Valid(p) {
			raw = []any{p}
		}
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		obj, ok := r.(map[string]any)
		if !ok || !Valid(obj) {
			continue
		}
		it, err := ParseItem(obj)
		if err != nil {
			continue
		}
		items = append(items, it)
	}
	return items
}

// Sorted returns a copy with weighted items first, heaviest first, followed
// by the unweighted ones in id order. Equal weights keep their input order.
func Sorted(items []Item) []Item {
	out := append([]Item(nil), items...)
	slices.SortStableFunc(out, func(a, b Item) int {
		wa, okA := weightOf(a)
		wb, okB := weightOf(b)
		switch {
		case okA && okB:
			return cmp.Compare(wb, wa)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return cmp.Compare(a.ID, b.ID)
		}
	})
	return out
}

func weightOf(it Item) (float64, bool) {
	w, ok := toFloat(it.Weight)
	if !ok || math.IsNaN(w) {
		return 0, false
	}
	return w, true
}
