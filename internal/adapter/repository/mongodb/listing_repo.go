package mongodb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const listingCollectionName = "products"

// ListingRepository implements domain.ListingRepository on MongoDB.
type ListingRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewListingRepository(db *mongo.Database, log *logger.Logger) *ListingRepository {
	collection := db.Collection(listingCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "isApproved", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for products collection", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for products collection")
	}

	return &ListingRepository{
		collection: collection,
		logger:     log.Named("ListingRepository"),
	}
}

func (r *ListingRepository) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	return r.find(ctx, bson.M{})
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	doc, err := fromDomainListing(listing)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to insert listing into DB", zap.Error(err))
		return persistenceError("insert", err)
	}

	listing.ID = doc.ID.Hex()
	listing.CreatedAt = doc.CreatedAt
	listing.UpdatedAt = doc.UpdatedAt
	r.logger.Debug("Listing inserted", zap.String("listing_id", listing.ID))
	return nil
}

func (r *ListingRepository) Update(ctx context.Context, id string, fields domain.Fields) (*domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrListingNotFound
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc listingDocument
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Warn("Listing not found for update", zap.String("listing_id", id))
			return nil, domain.ErrListingNotFound
		}
		r.logger.Error("Failed to update listing in DB", zap.String("listing_id", id), zap.Error(err))
		return nil, persistenceError("update", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		r.logger.Debug("Delete with malformed id ignored", zap.String("listing_id", id))
		return nil
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		r.logger.Error("Failed to delete listing from DB", zap.String("listing_id", id), zap.Error(err))
		return persistenceError("delete", err)
	}
	r.logger.Debug("Listing delete executed", zap.String("listing_id", id), zap.Int64("deleted", res.DeletedCount))
	return nil
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrListingNotFound
	}
	var doc listingDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrListingNotFound
		}
		r.logger.Error("Failed to get listing by ID from DB", zap.String("listing_id", id), zap.Error(err))
		return nil, persistenceError("findone", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) FindByCreator(ctx context.Context, userID string) ([]*domain.Listing, error) {
	return r.find(ctx, bson.M{"createdBy": userID})
}

// Search matches text as a literal, case-insensitive substring of name or
// description.
func (r *ListingRepository) Search(ctx context.Context, text string) ([]*domain.Listing, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
	return r.find(ctx, bson.M{"$or": []bson.M{
		{"name": pattern},
		{"description": pattern},
	}})
}

// DistinctValues returns the unique non-null values at fieldPath.
func (r *ListingRepository) DistinctValues(ctx context.Context, fieldPath string) ([]any, error) {
	values, err := r.collection.Distinct(ctx, fieldPath, bson.D{})
	if err != nil {
		r.logger.Error("Failed to read distinct values", zap.String("field", fieldPath), zap.Error(err))
		return nil, persistenceError("distinct", err)
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *ListingRepository) find(ctx context.Context, filter bson.M) ([]*domain.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query listings", zap.Error(err))
		return nil, persistenceError("find", err)
	}
	defer cursor.Close(ctx)

	var docs []*listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode listings", zap.Error(err))
		return nil, persistenceError("decode", err)
	}
	return toDomainListings(docs), nil
}
