package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/db"
	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/storage"
)

// ICarService defines the interface for car listing operations.
type ICarService interface {
	Create(ctx context.Context, car *models.Car) error
	FindByID(ctx context.Context, carID string) (*models.Car, error)
	Search(ctx context.Context, query string, limit int) ([]models.Car, error)
	FindByUserID(ctx context.Context, userID string) ([]models.Car, error)
	Delete(ctx context.Context, carID, userID string) error
	ReferencedImagePaths(ctx context.Context) (map[string]bool, error)
}

const carsCollection = "cars"

// carService implements ICarService.
type carService struct {
	db    *mongo.Database
	cfg   *config.Config
	store storage.IS3Storage
}

// NewCarService creates a new CarService.
func NewCarService(database *mongo.Database, cfg *config.Config, store storage.IS3Storage) ICarService {
	return &carService{db: database, cfg: cfg, store: store}
}

// Create inserts a new car listing. The caller assembles the record; this
// only fills in missing ID/timestamp and retries duplicate key collisions.
func (s *carService) Create(ctx context.Context, car *models.Car) error {
	collection := s.db.Collection(carsCollection)

	if car.CreatedAt.IsZero() {
		car.CreatedAt = time.Now().UTC()
	}

	operation := func() error {
		car.GenIDIfEmpty()
		_, insertErr := collection.InsertOne(ctx, car)
		if insertErr != nil {
			// Regenerate the ID before the next attempt.
			car.SetID("")
		}
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return fmt.Errorf("failed to insert car listing for user %s after multiple retries: %w", car.UserID, err)
	}

	return nil
}

// FindByID finds a car listing by its ID. Returns mongo.ErrNoDocuments
// when absent.
func (s *carService) FindByID(ctx context.Context, carID string) (*models.Car, error) {
	var car models.Car
	collection := s.db.Collection(carsCollection)

	err := collection.FindOne(ctx, bson.M{"_id": carID}).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding car by ID %s: %w", carID, err)
	}
	return &car, nil
}

// Search returns published cars whose name contains query
// (case-insensitive), newest first. An empty query returns the latest
// listings.
func (s *carService) Search(ctx context.Context, query string, limit int) ([]models.Car, error) {
	collection := s.db.Collection(carsCollection)

	filter := bson.M{}
	if query != "" {
		filter["name"] = bson.M{
			"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute car search query: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Car
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode car search results: %w", err)
	}
	return results, nil
}

// FindByUserID returns all listings owned by the user, newest first.
func (s *carService) FindByUserID(ctx context.Context, userID string) ([]models.Car, error) {
	collection := s.db.Collection(carsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cars for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var results []models.Car
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode cars for user %s: %w", userID, err)
	}
	return results, nil
}

// Delete removes a listing owned by the user, cascading over its images:
// each referenced object is removed from the bucket best-effort (failures
// are logged, an already-absent object is benign), then the record itself
// is deleted. Only a record deletion failure is fatal.
func (s *carService) Delete(ctx context.Context, carID, userID string) error {
	collection := s.db.Collection(carsCollection)

	var car models.Car
	err := collection.FindOne(ctx, bson.M{"_id": carID, "user_id": userID}).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Diagnose: absent vs owned by someone else.
			var other models.Car
			checkErr := collection.FindOne(ctx, bson.M{"_id": carID}).Decode(&other)
			if errors.Is(checkErr, mongo.ErrNoDocuments) {
				return mongo.ErrNoDocuments
			}
			return fmt.Errorf("car %s does not belong to user %s", carID, userID)
		}
		return fmt.Errorf("error finding car %s for deletion: %w", carID, err)
	}

	for _, img := range car.Images {
		if err := s.store.Remove(ctx, img.Path); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				log.Printf("Image object %s already absent while deleting car %s", img.Path, carID)
			} else {
				log.Printf("WARN: failed to remove image %s while deleting car %s: %v", img.Path, carID, err)
			}
		}
	}

	result, err := collection.DeleteOne(ctx, bson.M{"_id": carID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete car %s: %w", carID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("car %s disappeared before deletion", carID)
	}

	return nil
}

// ReferencedImagePaths returns the set of object keys referenced by any
// car listing. Used by the orphan sweep.
func (s *carService) ReferencedImagePaths(ctx context.Context) (map[string]bool, error) {
	collection := s.db.Collection(carsCollection)

	opts := options.Find().SetProjection(bson.M{"images.path": 1})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced image paths: %w", err)
	}
	defer cursor.Close(ctx)

	paths := make(map[string]bool)
	for cursor.Next(ctx) {
		var car models.Car
		if err := cursor.Decode(&car); err != nil {
			log.Printf("Warning: failed to decode car while collecting image paths: %v", err)
			continue
		}
		for _, img := range car.Images {
			paths[img.Path] = true
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cars for image paths: %w", err)
	}
	return paths, nil
}
