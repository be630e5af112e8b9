package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Listing is a product posted on the marketplace.
type Listing struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Location    string
	Category    string
	Features    map[string]any
	Images      []string
	Videos      []string
	CreatedBy   string
	IsApproved  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID        string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Caller identifies the authenticated principal behind a request.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// FilterOptions is the fixed facet set offered to the browse screen.
type FilterOptions struct {
	Category []any `json:"category"`
	Location []any `json:"location"`
	FuelType []any `json:"fuelType"`
}

// MediaFile is an uploaded image or video waiting to be stored.
type MediaFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
