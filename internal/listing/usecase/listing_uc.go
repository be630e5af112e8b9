package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/filter"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	MaxImages = 5
	MaxVideos = 5

	SubjectListingCreated = "listing.created"
	SubjectListingUpdated = "listing.updated"
	SubjectListingDeleted = "listing.deleted"
)

var tracer = otel.Tracer("marketplace-service/listing-usecase")

// ListingUsecase implements the listing operations of the API.
type ListingUsecase struct {
	repo      domain.ListingRepository
	media     *MediaUsecase
	publisher domain.EventPublisher
	cache     domain.FilterOptionsCache
	metrics   *metrics.MetricsManager
	logger    *logger.Logger
	now       func() time.Time

	// filterSeq is bumped by every filter-options computation and every write,
	// so a computation that overlapped either is not cached.
	filterSeq filter.Sequencer
}

// NewListingUsecase wires the usecase. publisher may be nil when events are disabled.
func NewListingUsecase(
	repo domain.ListingRepository,
	media *MediaUsecase,
	publisher domain.EventPublisher,
	cache domain.FilterOptionsCache,
	m *metrics.MetricsManager,
	log *logger.Logger,
) *ListingUsecase {
	return &ListingUsecase{
		repo:      repo,
		media:     media,
		publisher: publisher,
		cache:     cache,
		metrics:   m,
		logger:    log.Named("ListingUsecase"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateListingInput carries the client-supplied part of a new listing.
type CreateListingInput struct {
	Name        string
	Description string
	Price       float64
	Location    string
	Category    string
	Features    map[string]any
	Images      []domain.MediaFile
	Videos      []domain.MediaFile
}

// BrowseResult is the narrowed listing set plus the facets of its base set.
type BrowseResult struct {
	Products    []*domain.Listing
	Categories  []string
	Cities      []string
	PriceRanges []filter.Bracket
}

func (uc *ListingUsecase) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.ListAll")
	defer span.End()

	listings, err := uc.repo.ListAll(ctx)
	if err != nil {
		uc.logger.Error("Failed to list listings", zap.Error(err))
		recordSpanError(span, err)
		return nil, err
	}
	return listings, nil
}

func (uc *ListingUsecase) Get(ctx context.Context, id string) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Get", trace.WithAttributes(attribute.String("listing.id", id)))
	defer span.End()

	listing, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrListingNotFound) {
			uc.logger.Error("Failed to find listing", zap.String("listing_id", id), zap.Error(err))
			recordSpanError(span, err)
		}
		return nil, err
	}
	return listing, nil
}

// Create stores a new listing owned by caller. Uploaded media is written first
// and the resulting keys are recorded on the listing.
func (uc *ListingUsecase) Create(ctx context.Context, caller domain.Caller, in CreateListingInput) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Create")
	defer span.End()

	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if len(in.Images) > MaxImages {
		return nil, fmt.Errorf("%w: at most %d images are allowed", domain.ErrValidation, MaxImages)
	}
	if len(in.Videos) > MaxVideos {
		return nil, fmt.Errorf("%w: at most %d videos are allowed", domain.ErrValidation, MaxVideos)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", domain.ErrValidation)
	}

	uc.logger.Info("Creating listing",
		zap.String("created_by", caller.UserID),
		zap.String("category", in.Category),
		zap.Int("images", len(in.Images)),
		zap.Int("videos", len(in.Videos)))

	images, err := uc.media.StoreAll(ctx, in.Images)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	videos, err := uc.media.StoreAll(ctx, in.Videos)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	features := in.Features
	if features == nil {
		features = map[string]any{}
	}
	now := uc.now()
	listing := &domain.Listing{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Location:    in.Location,
		Category:    in.Category,
		Features:    features,
		Images:      images,
		Videos:      videos,
		CreatedBy:   caller.UserID,
		IsApproved:  false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, listing); err != nil {
		uc.logger.Error("Failed to save listing to repository", zap.Error(err))
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("listing.id", listing.ID))

	if uc.metrics != nil {
		uc.metrics.ListingsCreated.Inc()
	}
	uc.invalidateFilterOptions(ctx)
	uc.publish(ctx, SubjectListingCreated, map[string]interface{}{
		"listing_id": listing.ID,
		"created_by": listing.CreatedBy,
		"category":   listing.Category,
		"created_at": listing.CreatedAt.Format(time.RFC3339Nano),
	})

	uc.logger.Info("Listing created successfully", zap.String("listing_id", listing.ID))
	return listing, nil
}

// Update replaces the named fields of a listing. Admins may change any allowed
// field of any listing; other callers only their own listings and never the
// approval flag.
func (uc *ListingUsecase) Update(ctx context.Context, caller domain.Caller, id string, raw map[string]any) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Update", trace.WithAttributes(attribute.String("listing.id", id)))
	defer span.End()

	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	fields, err := domain.ValidateUpdate(caller.Role, raw)
	if err != nil {
		uc.logger.Warn("Rejected listing update", zap.String("listing_id", id), zap.Error(err))
		return nil, err
	}

	if !caller.IsAdmin() {
		existing, err := uc.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.CreatedBy != caller.UserID {
			uc.logger.Warn("Caller forbidden to update listing",
				zap.String("listing_id", id),
				zap.String("listing_owner_id", existing.CreatedBy),
				zap.String("requesting_user", caller.UserID))
			return nil, domain.ErrForbidden
		}
	}

	fields[domain.FieldUpdatedAt] = uc.now()
	updated, err := uc.repo.Update(ctx, id, fields)
	if err != nil {
		if !errors.Is(err, domain.ErrListingNotFound) {
			uc.logger.Error("Failed to update listing in repository", zap.String("listing_id", id), zap.Error(err))
			recordSpanError(span, err)
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ListingUpdates.Inc()
	}
	uc.invalidateFilterOptions(ctx)
	uc.publish(ctx, SubjectListingUpdated, map[string]interface{}{
		"listing_id":  updated.ID,
		"updated_by":  caller.UserID,
		"is_approved": updated.IsApproved,
		"updated_at":  updated.UpdatedAt.Format(time.RFC3339Nano),
	})

	uc.logger.Info("Listing updated successfully", zap.String("listing_id", id), zap.Int("fields", len(fields)-1))
	return updated, nil
}

// Delete removes a listing. Deleting an absent listing is not an error.
func (uc *ListingUsecase) Delete(ctx context.Context, caller domain.Caller, id string) error {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Delete", trace.WithAttributes(attribute.String("listing.id", id)))
	defer span.End()

	if !caller.IsAdmin() {
		uc.logger.Warn("Caller forbidden to delete listing", zap.String("listing_id", id), zap.String("requesting_user", caller.UserID))
		return domain.ErrForbidden
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		uc.logger.Error("Failed to delete listing in repository", zap.String("listing_id", id), zap.Error(err))
		recordSpanError(span, err)
		return err
	}

	if uc.metrics != nil {
		uc.metrics.ListingDeletes.Inc()
	}
	uc.invalidateFilterOptions(ctx)
	uc.publish(ctx, SubjectListingDeleted, map[string]interface{}{
		"listing_id": id,
		"deleted_by": caller.UserID,
	})

	uc.logger.Info("Listing deleted", zap.String("listing_id", id))
	return nil
}

// Search matches query against name and description. A blank query returns
// every listing.
func (uc *ListingUsecase) Search(ctx context.Context, query string) ([]*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Search", trace.WithAttributes(attribute.String("search.query", query)))
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return uc.ListAll(ctx)
	}
	listings, err := uc.repo.Search(ctx, query)
	if err != nil {
		uc.logger.Error("Failed to search listings", zap.String("query", query), zap.Error(err))
		recordSpanError(span, err)
		return nil, err
	}
	return listings, nil
}

// FilterOptions returns the distinct categories, locations and fuel types,
// served from the cache when it holds them.
func (uc *ListingUsecase) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.FilterOptions")
	defer span.End()

	cached, err := uc.cache.Get(ctx)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		uc.logger.Warn("Filter options cache read failed", zap.Error(err))
	}

	ticket := uc.filterSeq.Next()
	opts := &domain.FilterOptions{}
	if opts.Category, err = uc.repo.DistinctValues(ctx, domain.FieldCategory); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if opts.Location, err = uc.repo.DistinctValues(ctx, domain.FieldLocation); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if opts.FuelType, err = uc.repo.DistinctValues(ctx, domain.FieldFeatures+".fuelType"); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if !uc.filterSeq.Accept(ticket) {
		uc.logger.Debug("Filter options superseded, not caching", zap.Uint64("ticket", ticket))
		return opts, nil
	}
	if err := uc.cache.Set(ctx, opts); err != nil {
		uc.logger.Warn("Failed to cache filter options", zap.Error(err))
		return opts, nil
	}
	// A write that slipped in while Set ran may have invalidated before the
	// stale entry landed.
	if !uc.filterSeq.Accept(ticket) {
		uc.logger.Debug("Filter options superseded during cache write, dropping", zap.Uint64("ticket", ticket))
		if err := uc.cache.Invalidate(ctx); err != nil {
			uc.logger.Warn("Failed to drop stale filter options", zap.Error(err))
		}
	}
	return opts, nil
}

// Browse runs the filter pipeline over approved listings, optionally narrowed
// first by a text search. Facets are derived from the approved base set.
func (uc *ListingUsecase) Browse(ctx context.Context, query string, criteria filter.Criteria) (*BrowseResult, error) {
	ctx, span := tracer.Start(ctx, "ListingUsecase.Browse")
	defer span.End()

	base, err := uc.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	approved := make([]*domain.Listing, 0, len(base))
	for _, l := range base {
		if l.IsApproved {
			approved = append(approved, l)
		}
	}

	products := filter.Apply(approved, criteria)
	span.SetAttributes(
		attribute.Bool("browse.filtered", !criteria.IsZero()),
		attribute.Int("browse.base", len(approved)),
		attribute.Int("browse.matched", len(products)),
	)
	return &BrowseResult{
		Products:    products,
		Categories:  filter.Categories(approved),
		Cities:      filter.Cities(approved),
		PriceRanges: filter.PriceBrackets(),
	}, nil
}

// Mine returns the listings created by caller.
func (uc *ListingUsecase) Mine(ctx context.Context, caller domain.Caller) ([]*domain.Listing, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	listings, err := uc.repo.FindByCreator(ctx, caller.UserID)
	if err != nil {
		uc.logger.Error("Failed to list caller listings", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}
	return listings, nil
}

// CategoryFeatures returns the feature keys registered for category.
func (uc *ListingUsecase) CategoryFeatures(category string) []string {
	return domain.Features(category)
}

func (uc *ListingUsecase) invalidateFilterOptions(ctx context.Context) {
	uc.filterSeq.Next()
	if err := uc.cache.Invalidate(ctx); err != nil {
		uc.logger.Warn("Failed to invalidate filter options cache", zap.Error(err))
	}
}

func (uc *ListingUsecase) publish(ctx context.Context, subject string, data map[string]interface{}) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, subject, data); err != nil {
		uc.logger.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
