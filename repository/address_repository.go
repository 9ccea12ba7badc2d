package repository

import (
	"context"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type AddressRepository interface {
	// FindForUser returns the address only when it belongs to userID.
	FindForUser(ctx context.Context, addressID, userID string) (*models.Address, error)
}

type addressDocument struct {
	ID                primitive.ObjectID `bson:"_id"`
	UserID            string             `bson:"user_id"`
	Country           string             `bson:"country"`
	CountryCode       string             `bson:"country_code"`
	State             string             `bson:"state"`
	City              string             `bson:"city"`
	PostalCode        string             `bson:"postal_code"`
	Address           string             `bson:"address"`
	AdditionalAddress string             `bson:"additional_address,omitempty"`
	Default           bool               `bson:"default"`
}

func (d addressDocument) toModel() *models.Address {
	return &models.Address{
		ID:                d.ID.Hex(),
		UserID:            d.UserID,
		Country:           d.Country,
		CountryCode:       d.CountryCode,
		State:             d.State,
		City:              d.City,
		PostalCode:        d.PostalCode,
		Address:           d.Address,
		AdditionalAddress: d.AdditionalAddress,
		Default:           d.Default,
	}
}

type mongoAddressRepository struct {
	collection *mongo.Collection
}

func NewMongoAddressRepository(db *mongo.Database) AddressRepository {
	return &mongoAddressRepository{collection: db.Collection("addresses")}
}

func (r *mongoAddressRepository) FindForUser(ctx context.Context, addressID, userID string) (*models.Address, error) {
	id, err := objectID(addressID)
	if err != nil {
		return nil, err
	}
	var doc addressDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toModel(), nil
}
