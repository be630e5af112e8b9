// Package filter narrows a listing set the way the browse screen does.
package filter

import (
	"reflect"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
)

// Criteria is a conjunction of optional predicates. Zero values are unset.
type Criteria struct {
	Category string
	Price    *Bracket
	City     string
	// Features must match the listing's feature values exactly, type included:
	// the number 5 does not match the text "5".
	Features map[string]any
}

// IsZero reports whether no predicate is set.
func (c Criteria) IsZero() bool {
	return c.Category == "" && c.Price == nil && c.City == "" && len(activeFeatures(c.Features)) == 0
}

// Apply returns the listings satisfying every set predicate, in input order.
func Apply(listings []*domain.Listing, c Criteria) []*domain.Listing {
	features := activeFeatures(c.Features)
	out := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		if c.Category != "" && l.Category != c.Category {
			continue
		}
		if c.Price != nil && !c.Price.Contains(l.Price) {
			continue
		}
		if c.City != "" && l.Location != c.City {
			continue
		}
		if !featuresMatch(l.Features, features) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func featuresMatch(have map[string]any, want map[string]any) bool {
	for key, value := range want {
		got, ok := have[key]
		if !ok || !reflect.DeepEqual(got, value) {
			return false
		}
	}
	return true
}

// activeFeatures drops nil and "" entries: a blank value means the filter is
// unset, so a feature stored as "" cannot be selected by value.
func activeFeatures(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}
