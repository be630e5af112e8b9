package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/storage/local"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	adminCaller  = domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin}
	sellerCaller = domain.Caller{UserID: "seller-1", Role: domain.RoleUser}
)

func newTestListingHandler(t *testing.T) (*ListingHandler, *mockListingRepo) {
	t.Helper()
	log := logger.NewNop()
	m := metrics.NewMetricsManager("test")
	storage, err := local.NewStorage(afero.NewMemMapFs(), "uploads", log)
	require.NoError(t, err)

	repo := new(mockListingRepo)
	media := usecase.NewMediaUsecase(storage, m, log)
	listings := usecase.NewListingUsecase(repo, media, nil, cache.NewNoop(), m, log)
	return NewListingHandler(listings, media, validator.New(), log), repo
}

type testRequest struct {
	method      string
	pattern     string
	target      string
	body        io.Reader
	contentType string
	caller      *domain.Caller
}

func serve(h http.HandlerFunc, tr testRequest) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(tr.method, tr.pattern, h)

	req := httptest.NewRequest(tr.method, tr.target, tr.body)
	if tr.contentType != "" {
		req.Header.Set("Content-Type", tr.contentType)
	}
	if tr.caller != nil {
		req = req.WithContext(middleware.WithCaller(req.Context(), *tr.caller))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

type upload struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, fields map[string]string, files []upload) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestAddProduct_MultipartStoresMediaAndIgnoresClientCreatedBy(t *testing.T) {
	h, repo := newTestListingHandler(t)

	var saved *domain.Listing
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Listing")).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).(*domain.Listing)
			saved.ID = "665f1c2e9b1d4a0001a1b2c3"
		}).
		Return(nil)

	photo := []byte("\xff\xd8\xff\xe0 not really a jpeg")
	body, ct := multipartBody(t, map[string]string{
		"name":      "Civic",
		"Price":     "1500",
		"location":  "Almaty",
		"category":  "vehicles",
		"features":  `{"fuelType":"Petrol","Year":2020}`,
		"createdBy": "someone-else",
	}, []upload{{field: "images", filename: "front.JPG", contentType: "image/jpeg", data: photo}})

	rec := serve(h.AddProduct, testRequest{
		method: http.MethodPost, pattern: "/api/add-products", target: "/api/add-products",
		body: body, contentType: ct, caller: &adminCaller,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Product added successfully", decodeMessage(t, rec))

	require.NotNil(t, saved)
	assert.Equal(t, adminCaller.UserID, saved.CreatedBy)
	assert.False(t, saved.IsApproved)
	assert.Equal(t, 1500.0, saved.Price)
	assert.Equal(t, map[string]any{"fuelType": "Petrol", "Year": 2020.0}, saved.Features)
	require.Len(t, saved.Images, 1)
	assert.Equal(t, usecase.MediaKey("front.JPG", photo), saved.Images[0])
	assert.True(t, strings.HasSuffix(saved.Images[0], ".jpg"))

	media := serve(h.ServeMedia, testRequest{
		method: http.MethodGet, pattern: "/uploads/{key}", target: "/uploads/" + saved.Images[0],
	})
	require.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, photo, media.Body.Bytes())
	assert.Equal(t, "image/jpeg", media.Header().Get("Content-Type"))
}

func TestAddProduct_BracketFeatureFields(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Listing) bool {
		return l.Features["numberOfRooms"] == "3" && l.Price == 250
	})).Return(nil)

	body, ct := multipartBody(t, map[string]string{
		"name":                    "Flat",
		"price":                   "250",
		"category":                "apartments",
		"features[numberOfRooms]": "3",
	}, nil)

	rec := serve(h.AddProduct, testRequest{
		method: http.MethodPost, pattern: "/api/add-products", target: "/api/add-products",
		body: body, contentType: ct, caller: &adminCaller,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	repo.AssertExpectations(t)
}

func TestAddProduct_JSONBody(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Listing) bool {
		return l.Name == "Corolla" && l.Price == 4200 && len(l.Images) == 0
	})).Return(nil)

	rec := serve(h.AddProduct, testRequest{
		method: http.MethodPost, pattern: "/api/add-products", target: "/api/add-products",
		body:        strings.NewReader(`{"name":"Corolla","price":4200,"category":"vehicles"}`),
		contentType: "application/json", caller: &adminCaller,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	repo.AssertExpectations(t)
}

func TestAddProduct_RejectsInvalidInput(t *testing.T) {
	tooMany := make([]upload, usecase.MaxImages+1)
	for i := range tooMany {
		tooMany[i] = upload{field: "images", filename: "p.png", contentType: "image/png", data: []byte{byte(i + 1)}}
	}

	cases := []struct {
		name   string
		fields map[string]string
		files  []upload
	}{
		{name: "missing name", fields: map[string]string{"Price": "10"}},
		{name: "bad price", fields: map[string]string{"name": "x", "Price": "cheap"}},
		{name: "negative price", fields: map[string]string{"name": "x", "Price": "-1"}},
		{name: "bad features", fields: map[string]string{"name": "x", "features": "[1,2]"}},
		{name: "too many images", fields: map[string]string{"name": "x"}, files: tooMany},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, repo := newTestListingHandler(t)
			body, ct := multipartBody(t, tc.fields, tc.files)
			rec := serve(h.AddProduct, testRequest{
				method: http.MethodPost, pattern: "/api/add-products", target: "/api/add-products",
				body: body, contentType: ct, caller: &adminCaller,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestAddProduct_StoreFailure(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	rec := serve(h.AddProduct, testRequest{
		method: http.MethodPost, pattern: "/api/add-products", target: "/api/add-products",
		body: strings.NewReader(`{"name":"Civic"}`), contentType: "application/json", caller: &adminCaller,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to add product", decodeMessage(t, rec))
}

func TestGetProducts(t *testing.T) {
	h, repo := newTestListingHandler(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.On("ListAll", mock.Anything).Return([]*domain.Listing{
		{ID: "a1", Name: "Civic", Price: 500, CreatedBy: "u1", CreatedAt: created, UpdatedAt: created},
	}, nil)

	rec := serve(h.GetProducts, testRequest{method: http.MethodGet, pattern: "/api/get-products", target: "/api/get-products"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "a1", body[0]["_id"])
	assert.Equal(t, 500.0, body[0]["Price"])
	assert.Equal(t, false, body[0]["isApproved"])
	assert.Equal(t, []any{}, body[0]["images"])
	assert.Equal(t, map[string]any{}, body[0]["features"])
}

func TestGetProducts_StoreFailure(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("ListAll", mock.Anything).Return(nil, errors.New("db down"))

	rec := serve(h.GetProducts, testRequest{method: http.MethodGet, pattern: "/api/get-products", target: "/api/get-products"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch products", decodeMessage(t, rec))
}

func TestGetProduct_NotFound(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("FindByID", mock.Anything, "nope").Return(nil, domain.ErrListingNotFound)

	rec := serve(h.GetProduct, testRequest{method: http.MethodGet, pattern: "/api/products/{id}", target: "/api/products/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeMessage(t, rec))
}

func TestUpdateProduct(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Update", mock.Anything, "a1", mock.MatchedBy(func(f domain.Fields) bool {
		return f[domain.FieldIsApproved] == true && f[domain.FieldPrice] == 900.0
	})).Return(&domain.Listing{ID: "a1", Name: "Civic", Price: 900, IsApproved: true}, nil)

	rec := serve(h.UpdateProduct, testRequest{
		method: http.MethodPut, pattern: "/api/products/{id}", target: "/api/products/a1",
		body: strings.NewReader(`{"isApproved":true,"price":"900"}`), contentType: "application/json", caller: &adminCaller,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message        string          `json:"message"`
		UpdatedProduct listingResponse `json:"updatedProduct"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Product updated successfully", body.Message)
	assert.True(t, body.UpdatedProduct.IsApproved)
	assert.Equal(t, 900.0, body.UpdatedProduct.Price)
}

func TestUpdateProduct_Errors(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		h, repo := newTestListingHandler(t)
		repo.On("Update", mock.Anything, "missing", mock.Anything).Return(nil, domain.ErrListingNotFound)

		rec := serve(h.UpdateProduct, testRequest{
			method: http.MethodPut, pattern: "/api/products/{id}", target: "/api/products/missing",
			body: strings.NewReader(`{"name":"x"}`), caller: &adminCaller,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Product not found", decodeMessage(t, rec))
	})

	t.Run("field outside scope", func(t *testing.T) {
		h, repo := newTestListingHandler(t)
		rec := serve(h.UpdateProduct, testRequest{
			method: http.MethodPut, pattern: "/api/products/{id}", target: "/api/products/a1",
			body: strings.NewReader(`{"createdBy":"me"}`), caller: &adminCaller,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		h, _ := newTestListingHandler(t)
		rec := serve(h.UpdateProduct, testRequest{
			method: http.MethodPut, pattern: "/api/products/{id}", target: "/api/products/a1",
			body: strings.NewReader(`{`), caller: &adminCaller,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("creator editing someone else's listing", func(t *testing.T) {
		h, repo := newTestListingHandler(t)
		repo.On("FindByID", mock.Anything, "a1").Return(&domain.Listing{ID: "a1", CreatedBy: "other"}, nil)

		rec := serve(h.UpdateProduct, testRequest{
			method: http.MethodPut, pattern: "/api/products/{id}", target: "/api/products/a1",
			body: strings.NewReader(`{"name":"mine now"}`), caller: &sellerCaller,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDeleteProduct(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Delete", mock.Anything, "a1").Return(nil).Twice()

	for i := 0; i < 2; i++ {
		rec := serve(h.DeleteProduct, testRequest{
			method: http.MethodDelete, pattern: "/api/products/remove/{productId}", target: "/api/products/remove/a1", caller: &adminCaller,
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Product deleted successfully", decodeMessage(t, rec))
	}
	repo.AssertExpectations(t)
}

func TestDeleteProduct_StoreFailure(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Delete", mock.Anything, "a1").Return(errors.New("timeout"))

	rec := serve(h.DeleteProduct, testRequest{
		method: http.MethodDelete, pattern: "/api/products/remove/{productId}", target: "/api/products/remove/a1", caller: &adminCaller,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to delete product", decodeMessage(t, rec))
}

func TestSearchProducts(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("Search", mock.Anything, "civic").Return([]*domain.Listing{{ID: "a1", Name: "Civic"}}, nil)

	rec := serve(h.SearchProducts, testRequest{method: http.MethodGet, pattern: "/api/products/search", target: "/api/products/search?query=civic"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Civic", body[0].Name)
}

func TestFilterOptions(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("DistinctValues", mock.Anything, "category").Return([]any{"vehicles", "apartments"}, nil)
	repo.On("DistinctValues", mock.Anything, "location").Return([]any{"Almaty"}, nil)
	repo.On("DistinctValues", mock.Anything, "features.fuelType").Return(nil, nil)

	rec := serve(h.FilterOptions, testRequest{method: http.MethodGet, pattern: "/api/products/filters", target: "/api/products/filters"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"filterOptions":{"category":["vehicles","apartments"],"location":["Almaty"],"fuelType":[]}}`,
		rec.Body.String())
}

func TestCategoryFeatures(t *testing.T) {
	h, _ := newTestListingHandler(t)

	rec := serve(h.CategoryFeatures, testRequest{method: http.MethodGet, pattern: "/api/{category}/features", target: "/api/apartments/features"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["numberOfRooms"]`, rec.Body.String())

	rec = serve(h.CategoryFeatures, testRequest{method: http.MethodGet, pattern: "/api/{category}/features", target: "/api/boats/features"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBrowse(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("ListAll", mock.Anything).Return([]*domain.Listing{
		{ID: "1", Name: "Civic", Category: "vehicles", Location: "Almaty", Price: 1500, IsApproved: true,
			Features: map[string]any{"Year": 2020.0}},
		{ID: "2", Name: "Corolla", Category: "vehicles", Location: "Astana", Price: 1500, IsApproved: true,
			Features: map[string]any{"Year": "2020"}},
		{ID: "3", Name: "Golf", Category: "vehicles", Location: "Almaty", Price: 1500, IsApproved: false,
			Features: map[string]any{"Year": 2020.0}},
		{ID: "4", Name: "Flat", Category: "apartments", Location: "Shymkent", Price: 900, IsApproved: true},
	}, nil)

	rec := serve(h.Browse, testRequest{
		method: http.MethodGet, pattern: "/api/browse",
		target: "/api/browse?category=vehicles&price=1001-5000&feature.Year=2020",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body browseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "1", body.Products[0].ID)
	assert.Equal(t, []string{"vehicles", "apartments"}, body.Facets.Categories)
	assert.Equal(t, []string{"Almaty", "Astana", "Shymkent"}, body.Facets.Cities)
	require.Len(t, body.Facets.PriceRanges, 3)
	assert.Equal(t, "1001-5000", body.Facets.PriceRanges[1].Label)
}

func TestBrowse_QuotedFeatureMatchesText(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("ListAll", mock.Anything).Return([]*domain.Listing{
		{ID: "1", IsApproved: true, Features: map[string]any{"Year": 2020.0}},
		{ID: "2", IsApproved: true, Features: map[string]any{"Year": "2020"}},
	}, nil)

	rec := serve(h.Browse, testRequest{
		method: http.MethodGet, pattern: "/api/browse", target: `/api/browse?feature.Year=%222020%22`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body browseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "2", body.Products[0].ID)
}

func TestBrowse_BadPriceBracket(t *testing.T) {
	h, _ := newTestListingHandler(t)
	rec := serve(h.Browse, testRequest{method: http.MethodGet, pattern: "/api/browse", target: "/api/browse?price=cheap"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyProducts(t *testing.T) {
	h, repo := newTestListingHandler(t)
	repo.On("FindByCreator", mock.Anything, sellerCaller.UserID).Return([]*domain.Listing{{ID: "a1", CreatedBy: sellerCaller.UserID}}, nil)

	rec := serve(h.MyProducts, testRequest{method: http.MethodGet, pattern: "/api/products/mine", target: "/api/products/mine", caller: &sellerCaller})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, sellerCaller.UserID, body[0].CreatedBy)
}

func TestServeMedia_UnknownKey(t *testing.T) {
	h, _ := newTestListingHandler(t)

	for _, key := range []string{"..%2Fetc%2Fpasswd", strings.Repeat("a", 64) + ".png"} {
		rec := serve(h.ServeMedia, testRequest{method: http.MethodGet, pattern: "/uploads/{key}", target: "/uploads/" + key})
		assert.Equal(t, http.StatusNotFound, rec.Code, key)
		assert.Equal(t, "File not found", decodeMessage(t, rec))
	}
}
