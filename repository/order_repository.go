package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type OrderRepository interface {
	// InsertMany stores the orders in one batch and sets their IDs.
	InsertMany(ctx context.Context, orders []*models.Order) error
}

type orderItemDocument struct {
	ProductID  string            `bson:"id"`
	StoreID    string            `bson:"store_id"`
	Name       string            `bson:"name"`
	Category   string            `bson:"category"`
	Quantity   int               `bson:"quantity"`
	Price      int64             `bson:"price"`
	Currency   string            `bson:"currency"`
	Variants   []variantDocument `bson:"variants"`
	Image      mediaDocument     `bson:"image"`
	TotalPrice int64             `bson:"total_price"`
}

type orderDocument struct {
	ID      primitive.ObjectID `bson:"_id"`
	StoreID string             `bson:"store_id"`
	Status  string             `bson:"status"`
	Dates   struct {
		Order    time.Time  `bson:"order"`
		Delivery *time.Time `bson:"delivery,omitempty"`
	} `bson:"dates"`
	UserInfo struct {
		ID    string `bson:"id"`
		Email string `bson:"email,omitempty"`
		Phone string `bson:"phone,omitempty"`
	} `bson:"user_info"`
	ShippingInfo struct {
		Address        string `bson:"address"`
		Method         string `bson:"method"`
		TrackingNumber string `bson:"tracking_number"`
	} `bson:"shipping_info"`
	BillingInfo struct {
		PaymentMethod   string `bson:"payment_method"`
		PaymentIntentID string `bson:"payment_intent_id"`
	} `bson:"billing_info"`
	Items   []orderItemDocument `bson:"items"`
	Summary struct {
		Currency    string `bson:"currency"`
		Subtotal    int64  `bson:"subtotal"`
		Shipping    int64  `bson:"shipping"`
		Taxes       int64  `bson:"taxes"`
		TotalAmount int64  `bson:"total_amount"`
	} `bson:"summary"`
}

func newOrderDocument(o *models.Order) orderDocument {
	var d orderDocument
	d.ID = primitive.NewObjectID()
	d.StoreID = o.StoreID
	d.Status = string(o.Status)
	d.Dates.Order = o.Dates.Order
	d.Dates.Delivery = o.Dates.Delivery
	d.UserInfo.ID = o.UserInfo.ID
	d.UserInfo.Email = o.UserInfo.Email
	d.UserInfo.Phone = o.UserInfo.Phone
	d.ShippingInfo.Address = o.ShippingInfo.Address
	d.ShippingInfo.Method = o.ShippingInfo.Method
	d.ShippingInfo.TrackingNumber = o.ShippingInfo.TrackingNumber
	d.BillingInfo.PaymentMethod = o.BillingInfo.PaymentMethod
	d.BillingInfo.PaymentIntentID = o.BillingInfo.PaymentIntentID
	for _, it := range o.Items {
		d.Items = append(d.Items, orderItemDocument{
			ProductID:  it.ProductID,
			StoreID:    it.StoreID,
			Name:       it.Name,
			Category:   it.Category,
			Quantity:   it.Quantity,
			Price:      it.Price,
			Currency:   it.Currency,
			Variants:   fromVariants(it.Variants),
			Image:      mediaDocument{Name: it.Image.Name, URL: it.Image.URL},
			TotalPrice: it.TotalPrice,
		})
	}
	d.Summary.Currency = o.Summary.Currency
	d.Summary.Subtotal = o.Summary.Subtotal
	d.Summary.Shipping = o.Summary.Shipping
	d.Summary.Taxes = o.Summary.Taxes
	d.Summary.TotalAmount = o.Summary.TotalAmount
	return d
}

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{collection: db.Collection("orders")}
}

func (r *mongoOrderRepository) InsertMany(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(orders))
	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		d := newOrderDocument(o)
		docs = append(docs, d)
		ids = append(ids, d.ID)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert orders: %w", err)
	}
	for i, o := range orders {
		o.ID = ids[i].Hex()
	}
	return nil
}
