package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository interface {
	// FindByID returns the user with preferences attached. Missing
	// preferences leave the zero value.
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type userDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	StripeID string             `bson:"stripe_id"`
	Email    struct {
		Value string `bson:"value"`
	} `bson:"email"`
}

type preferencesDocument struct {
	UserID   string `bson:"user_id"`
	Locale   string `bson:"locale"`
	Country  string `bson:"country"`
	Currency string `bson:"currency"`
}

type mongoUserRepository struct {
	users       *mongo.Collection
	preferences *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		users:       db.Collection("user"),
		preferences: db.Collection("preferences"),
	}
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc userDocument
	if err := r.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	user := &models.User{ID: doc.ID.Hex(), StripeID: doc.StripeID, Email: doc.Email.Value}

	var prefs preferencesDocument
	err = r.preferences.FindOne(ctx, bson.M{"user_id": user.ID}).Decode(&prefs)
	switch {
	case err == nil:
		user.Preferences = models.Preferences{Locale: prefs.Locale, Country: prefs.Country, Currency: prefs.Currency}
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, err
	}
	return user, nil
}
