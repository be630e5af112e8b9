package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/filter"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxUploadBytes  = 200 << 20
	maxJSONBodySize = 1 << 20
	featureParam    = "feature."
)

type ListingHandler struct {
	listings *usecase.ListingUsecase
	media    *usecase.MediaUsecase
	validate *validator.Validate
	logger   *logger.Logger
}

func NewListingHandler(listings *usecase.ListingUsecase, media *usecase.MediaUsecase, validate *validator.Validate, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		media:    media,
		validate: validate,
		logger:   log.Named("ListingHandler"),
	}
}

type createListingRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Location    string `json:"location" validate:"max=200"`
	Category    string `json:"category" validate:"max=100"`
}

type browseResponse struct {
	Products []listingResponse `json:"products"`
	Facets   browseFacets      `json:"facets"`
}

type browseFacets struct {
	Categories  []string      `json:"categories"`
	Cities      []string      `json:"cities"`
	PriceRanges []priceBucket `json:"priceRanges"`
}

type priceBucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// GetProducts handles GET /api/get-products.
func (h *ListingHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "Failed to fetch products")
		return
	}
	WriteJSON(w, http.StatusOK, toListingResponses(listings))
}

// GetProduct handles GET /api/products/{id}.
func (h *ListingHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, toListingResponse(listing))
}

// AddProduct handles POST /api/add-products. The body is either multipart form
// data with optional images and videos, or a JSON object without media.
func (h *ListingHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())

	var (
		in  usecase.CreateListingInput
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		in, err = h.parseMultipartListing(w, r)
	} else {
		in, err = h.parseJSONListing(r)
	}
	if err != nil {
		writeError(w, h.logger, err, "Failed to add product")
		return
	}

	if _, err := h.listings.Create(r.Context(), caller, in); err != nil {
		writeError(w, h.logger, err, "Failed to add product")
		return
	}
	WriteMessage(w, http.StatusCreated, "Product added successfully")
}

// UpdateProduct handles PUT /api/products/{id}.
func (h *ListingHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var raw map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize)).Decode(&raw); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid request body", domain.ErrValidation), "Failed to update product")
		return
	}

	updated, err := h.listings.Update(r.Context(), caller, id, raw)
	if err != nil {
		writeError(w, h.logger, err, "Failed to update product")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Product updated successfully",
		"updatedProduct": toListingResponse(updated),
	})
}

// DeleteProduct handles DELETE /api/products/remove/{productId}.
func (h *ListingHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	if err := h.listings.Delete(r.Context(), caller, chi.URLParam(r, "productId")); err != nil {
		writeError(w, h.logger, err, "Failed to delete product")
		return
	}
	WriteMessage(w, http.StatusOK, "Product deleted successfully")
}

// SearchProducts handles GET /api/products/search?query=.
func (h *ListingHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, h.logger, err, "Internal server error")
		return
	}
	WriteJSON(w, http.StatusOK, toListingResponses(listings))
}

// FilterOptions handles GET /api/products/filters.
func (h *ListingHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.listings.FilterOptions(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "Internal server error")
		return
	}
	out := domain.FilterOptions{
		Category: nonNilValues(opts.Category),
		Location: nonNilValues(opts.Location),
		FuelType: nonNilValues(opts.FuelType),
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"filterOptions": out})
}

// CategoryFeatures handles GET /api/{category}/features.
func (h *ListingHandler) CategoryFeatures(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.listings.CategoryFeatures(chi.URLParam(r, "category")))
}

// Browse handles GET /api/browse. Feature filters are passed as
// feature.<key>=<value>; see featureValue for how values are typed.
func (h *ListingHandler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bracket, err := filter.ParseBracket(q.Get("price"))
	if err != nil {
		writeError(w, h.logger, err, "Internal server error")
		return
	}
	criteria := filter.Criteria{
		Category: q.Get("category"),
		Price:    bracket,
		City:     q.Get("city"),
		Features: map[string]any{},
	}
	for key, values := range q {
		if name, ok := strings.CutPrefix(key, featureParam); ok && name != "" && len(values) > 0 {
			criteria.Features[name] = featureValue(values[0])
		}
	}

	res, err := h.listings.Browse(r.Context(), q.Get("query"), criteria)
	if err != nil {
		writeError(w, h.logger, err, "Failed to fetch products")
		return
	}

	buckets := make([]priceBucket, 0, len(res.PriceRanges))
	for _, b := range res.PriceRanges {
		buckets = append(buckets, priceBucket{Label: b.Label(), Min: b.Min, Max: b.Max})
	}
	WriteJSON(w, http.StatusOK, browseResponse{
		Products: toListingResponses(res.Products),
		Facets: browseFacets{
			Categories:  res.Categories,
			Cities:      res.Cities,
			PriceRanges: buckets,
		},
	})
}

// MyProducts handles GET /api/products/mine.
func (h *ListingHandler) MyProducts(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFromContext(r.Context())
	listings, err := h.listings.Mine(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err, "Failed to fetch products")
		return
	}
	WriteJSON(w, http.StatusOK, toListingResponses(listings))
}

// ServeMedia handles GET /uploads/{key}.
func (h *ListingHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.media.Open(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, h.logger, err, "Internal server error")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Failed to stream media", zap.Error(err))
	}
}

func (h *ListingHandler) parseJSONListing(r *http.Request) (usecase.CreateListingInput, error) {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize)).Decode(&body); err != nil {
		return usecase.CreateListingInput{}, fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}

	req := createListingRequest{
		Name:        stringField(body, "name"),
		Description: stringField(body, "description"),
		Location:    stringField(body, "location"),
		Category:    stringField(body, "category"),
	}
	price, err := priceField(body["Price"], body["price"])
	if err != nil {
		return usecase.CreateListingInput{}, err
	}
	features := map[string]any{}
	if raw, ok := body["features"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return usecase.CreateListingInput{}, fmt.Errorf("%w: features must be an object", domain.ErrValidation)
		}
		features = m
	}
	return h.buildInput(req, price, features, nil, nil)
}

func (h *ListingHandler) parseMultipartListing(w http.ResponseWriter, r *http.Request) (usecase.CreateListingInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return usecase.CreateListingInput{}, fmt.Errorf("%w: invalid multipart form", domain.ErrValidation)
	}
	form := r.MultipartForm

	req := createListingRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Category:    r.FormValue("category"),
	}
	var rawPrice, rawPriceLower any
	if v, ok := form.Value["Price"]; ok && len(v) > 0 {
		rawPrice = v[0]
	}
	if v, ok := form.Value["price"]; ok && len(v) > 0 {
		rawPriceLower = v[0]
	}
	price, err := priceField(rawPrice, rawPriceLower)
	if err != nil {
		return usecase.CreateListingInput{}, err
	}

	features, err := formFeatures(form.Value)
	if err != nil {
		return usecase.CreateListingInput{}, err
	}

	if len(form.File["images"]) > usecase.MaxImages {
		return usecase.CreateListingInput{}, fmt.Errorf("%w: at most %d images are allowed", domain.ErrValidation, usecase.MaxImages)
	}
	if len(form.File["videos"]) > usecase.MaxVideos {
		return usecase.CreateListingInput{}, fmt.Errorf("%w: at most %d videos are allowed", domain.ErrValidation, usecase.MaxVideos)
	}
	images, err := readFiles(form.File["images"])
	if err != nil {
		return usecase.CreateListingInput{}, err
	}
	videos, err := readFiles(form.File["videos"])
	if err != nil {
		return usecase.CreateListingInput{}, err
	}
	return h.buildInput(req, price, features, images, videos)
}

func (h *ListingHandler) buildInput(req createListingRequest, price float64, features map[string]any, images, videos []domain.MediaFile) (usecase.CreateListingInput, error) {
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return usecase.CreateListingInput{}, fmt.Errorf("%w: %s failed on %s", domain.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return usecase.CreateListingInput{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return usecase.CreateListingInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Location:    req.Location,
		Category:    req.Category,
		Features:    features,
		Images:      images,
		Videos:      videos,
	}, nil
}

// formFeatures reads features either from a JSON "features" value or from
// "features[key]" fields.
func formFeatures(values map[string][]string) (map[string]any, error) {
	features := map[string]any{}
	if raw, ok := values["features"]; ok && len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
		if err := json.Unmarshal([]byte(raw[0]), &features); err != nil {
			return nil, fmt.Errorf("%w: features must be a JSON object", domain.ErrValidation)
		}
		return features, nil
	}
	for key, v := range values {
		if !strings.HasPrefix(key, "features[") || !strings.HasSuffix(key, "]") || len(v) == 0 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "features["), "]")
		if name != "" {
			features[name] = v[0]
		}
	}
	return features, nil
}

func readFiles(headers []*multipart.FileHeader) ([]domain.MediaFile, error) {
	files := make([]domain.MediaFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		files = append(files, domain.MediaFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// featureValue reads a query value as a JSON literal when it is one, so
// feature.Year=2020 matches the number 2020 and feature.Year="2020" the string.
// Anything else is taken as plain text.
func featureValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case float64, bool, string:
			return v
		}
	}
	return raw
}

func nonNilValues(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// priceField prefers "Price" over "price". A missing price is zero.
func priceField(upper, lower any) (float64, error) {
	raw := upper
	if raw == nil {
		raw = lower
	}
	if raw == nil {
		return 0, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return domain.CoercePrice(raw)
}
