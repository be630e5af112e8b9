package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
)

// Bracket is an inclusive price range.
type Bracket struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b Bracket) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// Label renders the bracket as "min-max", the form ParseBracket accepts.
func (b Bracket) Label() string {
	return strconv.FormatFloat(b.Min, 'f', -1, 64) + "-" + strconv.FormatFloat(b.Max, 'f', -1, 64)
}

var priceBrackets = []Bracket{
	{Min: 0, Max: 1000},
	{Min: 1001, Max: 5000},
	{Min: 5001, Max: 10000},
}

// PriceBrackets returns the fixed price ranges offered for filtering.
func PriceBrackets() []Bracket {
	return append([]Bracket(nil), priceBrackets...)
}

// ParseBracket parses "min-max". An empty value yields a nil bracket.
func ParseBracket(value string) (*Bracket, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	lo, hi, ok := strings.Cut(value, "-")
	if !ok {
		return nil, fmt.Errorf("%w: price range %q", domain.ErrValidation, value)
	}
	minPrice, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price range %q", domain.ErrValidation, value)
	}
	maxPrice, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price range %q", domain.ErrValidation, value)
	}
	if minPrice > maxPrice {
		return nil, fmt.Errorf("%w: price range %q is inverted", domain.ErrValidation, value)
	}
	return &Bracket{Min: minPrice, Max: maxPrice}, nil
}

// Categories lists the distinct non-empty categories in first-seen order.
func Categories(listings []*domain.Listing) []string {
	return distinct(listings, func(l *domain.Listing) string { return l.Category })
}

// Cities lists the distinct non-empty locations in first-seen order.
func Cities(listings []*domain.Listing) []string {
	return distinct(listings, func(l *domain.Listing) string { return l.Location })
}

func distinct(listings []*domain.Listing, field func(*domain.Listing) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range listings {
		if l == nil {
			continue
		}
		v := field(l)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
