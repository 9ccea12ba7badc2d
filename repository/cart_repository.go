package repository

import (
	"context"
	"fmt"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CartRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Cart, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

type mediaDocument struct {
	Name string `bson:"name"`
	URL  string `bson:"url"`
}

type variantDocument struct {
	Key       string `bson:"key"`
	Value     string `bson:"value"`
	Price     *int64 `bson:"price,omitempty"`
	Available bool   `bson:"available"`
}

type productSnapshotDocument struct {
	ID       string          `bson:"id"`
	StoreID  string          `bson:"store_id"`
	Name     string          `bson:"name"`
	Category string          `bson:"category"`
	Cost     int64           `bson:"cost"`
	Currency string          `bson:"currency"`
	Stock    int             `bson:"stock"`
	Images   []mediaDocument `bson:"imgs"`
}

type cartItemDocument struct {
	Product  productSnapshotDocument `bson:"product"`
	CartInfo struct {
		Amount   int               `bson:"amount"`
		Variants []variantDocument `bson:"variants"`
	} `bson:"cart_info"`
}

type cartDocument struct {
	UserID string             `bson:"user_id"`
	Items  []cartItemDocument `bson:"cart"`
}

func toVariants(docs []variantDocument) []models.Variant {
	out := make([]models.Variant, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.Variant{Key: d.Key, Value: d.Value, Price: d.Price, Available: d.Available})
	}
	return out
}

func fromVariants(vs []models.Variant) []variantDocument {
	out := make([]variantDocument, 0, len(vs))
	for _, v := range vs {
		out = append(out, variantDocument{Key: v.Key, Value: v.Value, Price: v.Price, Available: v.Available})
	}
	return out
}

func toMedia(docs []mediaDocument) []models.Media {
	out := make([]models.Media, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.Media{Name: d.Name, URL: d.URL})
	}
	return out
}

func (d cartDocument) toModel() *models.Cart {
	cart := &models.Cart{UserID: d.UserID, Items: make([]models.CartLineItem, 0, len(d.Items))}
	for _, it := range d.Items {
		cart.Items = append(cart.Items, models.CartLineItem{
			Product: models.Product{
				ID:       it.Product.ID,
				StoreID:  it.Product.StoreID,
				Name:     it.Product.Name,
				Category: it.Product.Category,
				Cost:     it.Product.Cost,
				Currency: it.Product.Currency,
				Stock:    it.Product.Stock,
				Images:   toMedia(it.Product.Images),
			},
			Info: models.CartInfo{Quantity: it.CartInfo.Amount, Variants: toVariants(it.CartInfo.Variants)},
		})
	}
	return cart
}

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{collection: db.Collection("cart")}
}

func (r *mongoCartRepository) FindByUserID(ctx context.Context, userID string) (*models.Cart, error) {
	var doc cartDocument
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toModel(), nil
}

func (r *mongoCartRepository) DeleteByUserID(ctx context.Context, userID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
