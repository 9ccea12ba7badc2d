package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ProductRepository interface {
	// DecrementStock subtracts quantity from the product's stock in a single
	// atomic update.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{collection: db.Collection("product")}
}

func (r *mongoProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	id, err := objectID(productID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": -quantity}})
	if err != nil {
		return fmt.Errorf("decrement stock of %s: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
