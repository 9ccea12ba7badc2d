package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConversionRateRepository interface {
	FindByBase(ctx context.Context, base string) (*models.ConversionRate, error)
	// Upsert replaces the entry for rate.BaseCurrency, keeping one per base.
	Upsert(ctx context.Context, rate *models.ConversionRate) error
	FindStale(ctx context.Context, now time.Time) ([]*models.ConversionRate, error)
}

type conversionRateDocument struct {
	BaseCurrency string             `bson:"base_currency"`
	LastUpdate   time.Time          `bson:"last_update"`
	NextUpdate   time.Time          `bson:"next_update"`
	Rates        map[string]float64 `bson:"convertion_rates"`
}

func (d conversionRateDocument) toModel() *models.ConversionRate {
	return &models.ConversionRate{
		BaseCurrency: d.BaseCurrency,
		LastUpdate:   d.LastUpdate,
		NextUpdate:   d.NextUpdate,
		Rates:        d.Rates,
	}
}

type mongoConversionRateRepository struct {
	collection *mongo.Collection
}

func NewMongoConversionRateRepository(db *mongo.Database) ConversionRateRepository {
	return &mongoConversionRateRepository{collection: db.Collection("convertion_rates")}
}

func (r *mongoConversionRateRepository) FindByBase(ctx context.Context, base string) (*models.ConversionRate, error) {
	var doc conversionRateDocument
	if err := r.collection.FindOne(ctx, bson.M{"base_currency": base}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toModel(), nil
}

func (r *mongoConversionRateRepository) Upsert(ctx context.Context, rate *models.ConversionRate) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"base_currency": rate.BaseCurrency},
		bson.M{"$set": bson.M{
			"last_update":      rate.LastUpdate,
			"next_update":      rate.NextUpdate,
			"convertion_rates": rate.Rates,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert rates for %s: %w", rate.BaseCurrency, err)
	}
	return nil
}

func (r *mongoConversionRateRepository) FindStale(ctx context.Context, now time.Time) ([]*models.ConversionRate, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"next_update": bson.M{"$lte": now}})
	if err != nil {
		return nil, fmt.Errorf("find stale rates: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []conversionRateDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode stale rates: %w", err)
	}
	out := make([]*models.ConversionRate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}
