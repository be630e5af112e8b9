package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/auth"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service  *auth.Service
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAuthHandler(service *auth.Service, validate *validator.Validate, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validate,
		logger:   log.Named("AuthHandler"),
	}
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// RequestOTP handles POST /api/auth/otp/request.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := h.decode(r, &req); err != nil {
		WriteMessage(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	if err := h.service.RequestCode(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err, "Failed to send one-time code")
		return
	}
	WriteMessage(w, http.StatusOK, "One-time code sent")
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := h.decode(r, &req); err != nil {
		WriteMessage(w, http.StatusUnauthorized, "Invalid or expired code")
		return
	}

	token, user, err := h.service.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.logger.Debug("One-time code rejected", zap.Error(err))
			WriteMessage(w, http.StatusUnauthorized, "Invalid or expired code")
			return
		}
		writeError(w, h.logger, err, "Failed to verify one-time code")
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserResponse(user)})
}

// ListUsers handles GET /api/admin/users.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "Failed to fetch users")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *AuthHandler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}
