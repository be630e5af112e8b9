package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stored field names. They double as the JSON names of the public API.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "Price"
	FieldLocation    = "location"
	FieldCategory    = "category"
	FieldFeatures    = "features"
	FieldImages      = "images"
	FieldVideos      = "videos"
	FieldIsApproved  = "isApproved"
	FieldCreatedBy   = "createdBy"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// Fields is a validated partial update keyed by stored field name.
type Fields map[string]any

var creatorFields = []string{
	FieldName,
	FieldDescription,
	FieldPrice,
	FieldLocation,
	FieldCategory,
	FieldFeatures,
	FieldImages,
	FieldVideos,
}

// AllowedFields returns the fields a caller with role may replace.
func AllowedFields(role Role) []string {
	out := append([]string(nil), creatorFields...)
	if role == RoleAdmin {
		out = append(out, FieldIsApproved)
	}
	return out
}

// ValidateUpdate checks raw against the caller's allowed fields and coerces each
// value to its stored type. "price" is accepted as an alias of "Price".
func ValidateUpdate(role Role, raw map[string]any) (Fields, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	allowed := make(map[string]struct{})
	for _, f := range AllowedFields(role) {
		allowed[f] = struct{}{}
	}

	out := make(Fields, len(raw))
	for key, value := range raw {
		field := key
		if key == "price" {
			field = FieldPrice
		}
		if _, ok := allowed[field]; !ok {
			return nil, fmt.Errorf("%w: field %q cannot be updated", ErrValidation, key)
		}
		coerced, err := coerceField(field, value)
		if err != nil {
			return nil, err
		}
		out[field] = coerced
	}
	return out, nil
}

func coerceField(field string, value any) (any, error) {
	switch field {
	case FieldName, FieldDescription, FieldLocation, FieldCategory:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrValidation, field)
		}
		return s, nil
	case FieldPrice:
		return CoercePrice(value)
	case FieldFeatures:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: features must be an object", ErrValidation)
		}
		return m, nil
	case FieldImages, FieldVideos:
		return coerceStrings(field, value)
	case FieldIsApproved:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: isApproved must be a boolean", ErrValidation)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown field %q", ErrValidation, field)
}

// CoercePrice accepts a JSON number or numeric text.
func CoercePrice(value any) (float64, error) {
	var price float64
	switch v := value.(type) {
	case float64:
		price = v
	case float32:
		price = float64(v)
	case int:
		price = float64(v)
	case int64:
		price = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: price %q is not a number", ErrValidation, v.String())
		}
		price = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: price %q is not a number", ErrValidation, v)
		}
		price = f
	default:
		return 0, fmt.Errorf("%w: price must be a number", ErrValidation)
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	return price, nil
}

func coerceStrings(field string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain strings", ErrValidation, field)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	}
	return nil, fmt.Errorf("%w: %s must be an array", ErrValidation, field)
}
