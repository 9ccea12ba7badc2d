package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type PaymentIntentRepository interface {
	FindInitiated(ctx context.Context, userID string) (*models.PaymentIntentRecord, error)
	FindBySetupIntent(ctx context.Context, setupIntentID, userID string) (*models.PaymentIntentRecord, error)
	Create(ctx context.Context, rec *models.PaymentIntentRecord) error
	Update(ctx context.Context, rec *models.PaymentIntentRecord) error
	Delete(ctx context.Context, id string) error
}

type paymentIntentDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	UserID          string             `bson:"user_id"`
	SetupIntentID   string             `bson:"setup_intent_id"`
	PaymentIntentID string             `bson:"payment_intent_id"`
	ClientSecret    string             `bson:"client_secret"`
	Status          string             `bson:"status"`
	InitiationDate  time.Time          `bson:"initiation_date"`
	EndDate         *time.Time         `bson:"end_date"`
}

func (d paymentIntentDocument) toModel() *models.PaymentIntentRecord {
	return &models.PaymentIntentRecord{
		ID:              d.ID.Hex(),
		UserID:          d.UserID,
		SetupIntentID:   d.SetupIntentID,
		PaymentIntentID: d.PaymentIntentID,
		ClientSecret:    d.ClientSecret,
		Status:          models.PaymentIntentStatus(d.Status),
		InitiationDate:  d.InitiationDate,
		EndDate:         d.EndDate,
	}
}

type mongoPaymentIntentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentIntentRepository(db *mongo.Database) PaymentIntentRepository {
	return &mongoPaymentIntentRepository{collection: db.Collection("payment_intent")}
}

func (r *mongoPaymentIntentRepository) findOne(ctx context.Context, filter bson.M) (*models.PaymentIntentRecord, error) {
	var doc paymentIntentDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.toModel(), nil
}

func (r *mongoPaymentIntentRepository) FindInitiated(ctx context.Context, userID string) (*models.PaymentIntentRecord, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "status": string(models.PaymentIntentInitiated)})
}

func (r *mongoPaymentIntentRepository) FindBySetupIntent(ctx context.Context, setupIntentID, userID string) (*models.PaymentIntentRecord, error) {
	return r.findOne(ctx, bson.M{"setup_intent_id": setupIntentID, "user_id": userID})
}

func (r *mongoPaymentIntentRepository) Create(ctx context.Context, rec *models.PaymentIntentRecord) error {
	doc := paymentIntentDocument{
		ID:              primitive.NewObjectID(),
		UserID:          rec.UserID,
		SetupIntentID:   rec.SetupIntentID,
		PaymentIntentID: rec.PaymentIntentID,
		ClientSecret:    rec.ClientSecret,
		Status:          string(rec.Status),
		InitiationDate:  rec.InitiationDate,
		EndDate:         rec.EndDate,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert payment intent record: %w", err)
	}
	rec.ID = doc.ID.Hex()
	return nil
}

// Update overwrites the mutable fields of the record identified by rec.ID.
func (r *mongoPaymentIntentRepository) Update(ctx context.Context, rec *models.PaymentIntentRecord) error {
	id, err := objectID(rec.ID)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"setup_intent_id":   rec.SetupIntentID,
		"payment_intent_id": rec.PaymentIntentID,
		"client_secret":     rec.ClientSecret,
		"status":            string(rec.Status),
		"initiation_date":   rec.InitiationDate,
		"end_date":          rec.EndDate,
	}})
	if err != nil {
		return fmt.Errorf("update payment intent record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoPaymentIntentRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete payment intent record: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
