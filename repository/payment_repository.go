package repository

import (
	"context"

	"github.com/yashrajoria/checkout-service/models"
	"gorm.io/gorm"
)

// PaymentRepository is the ledger of confirmation attempts.
type PaymentRepository interface {
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.PaymentAttempt, error)
	UpdateByPaymentIntentID(ctx context.Context, paymentIntentID string, updates map[string]interface{}) error
}

type gormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepository{db: db}
}

func (r *gormPaymentRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *gormPaymentRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&attempt).Error; err != nil {
		return nil, mapErr(err)
	}
	return &attempt, nil
}

func (r *gormPaymentRepository) UpdateByPaymentIntentID(ctx context.Context, paymentIntentID string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("payment_intent_id = ?", paymentIntentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
