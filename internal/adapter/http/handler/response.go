package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

type messageResponse struct {
	Message string `json:"message"`
}

type listingResponse struct {
	ID          string         `json:"_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"Price"`
	Location    string         `json:"location"`
	Category    string         `json:"category"`
	Features    map[string]any `json:"features"`
	Images      []string       `json:"images"`
	Videos      []string       `json:"videos"`
	CreatedBy   string         `json:"createdBy"`
	IsApproved  bool           `json:"isApproved"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type userResponse struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	features := l.Features
	if features == nil {
		features = map[string]any{}
	}
	images, videos := l.Images, l.Videos
	if images == nil {
		images = []string{}
	}
	if videos == nil {
		videos = []string{}
	}
	return listingResponse{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Price:       l.Price,
		Location:    l.Location,
		Category:    l.Category,
		Features:    features,
		Images:      images,
		Videos:      videos,
		CreatedBy:   l.CreatedBy,
		IsApproved:  l.IsApproved,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

func toListingResponses(listings []*domain.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return out
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, messageResponse{Message: message})
}

// writeError maps a domain error to its HTTP status. Errors without a mapping
// become 500 with fallback as the message and are logged, never echoed.
func writeError(w http.ResponseWriter, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		WriteMessage(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrMediaNotFound):
		WriteMessage(w, http.StatusNotFound, "File not found")
	case errors.Is(err, domain.ErrValidation):
		WriteMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		WriteMessage(w, http.StatusForbidden, "Not authorized to perform this action")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteMessage(w, http.StatusUnauthorized, "Not authorized")
	default:
		log.Error(fallback, zap.Error(err))
		WriteMessage(w, http.StatusInternalServerError, fallback)
	}
}
