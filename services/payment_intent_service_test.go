package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

const testPlaceholderAmount = 1000

type paymentFixture struct {
	intents   *MockPaymentIntentRepository
	carts     *MockCartRepository
	ledger    *MockPaymentRepository
	processor *MockPaymentProcessor
	locker    *fakeLocker
	svc       *paymentIntentServiceImpl
	now       time.Time
}

func newPaymentFixture(conv CurrencyService) *paymentFixture {
	f := &paymentFixture{
		intents:   new(MockPaymentIntentRepository),
		carts:     new(MockCartRepository),
		ledger:    new(MockPaymentRepository),
		processor: new(MockPaymentProcessor),
		locker:    newFakeLocker(),
		now:       time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewPaymentIntentService(f.intents, f.carts, f.ledger, f.processor, conv, f.locker, testPlaceholderAmount, zap.NewNop()).(*paymentIntentServiceImpl)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestEnsureSetupIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("first call creates both intents", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{"EUR->USD": 1.1})
		user := testUser()

		f.intents.On("FindInitiated", mock.Anything, user.ID).Return(nil, repository.ErrNotFound).Once()
		f.carts.On("FindByUserID", mock.Anything, user.ID).Return(&models.Cart{Items: []models.CartLineItem{
			cartItem("p1", "store-a", 1000, "USD", 2),
			cartItem("p2", "store-b", 500, "EUR", 1),
		}}, nil).Once()
		f.processor.On("CreateSetupIntent", mock.Anything, "cus_123").
			Return(&providers.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret"}, nil).Once()
		f.processor.On("CreatePaymentIntent", mock.Anything, "cus_123", int64(2550), "USD", "").
			Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.intents.On("Create", mock.Anything, mock.MatchedBy(func(r *models.PaymentIntentRecord) bool {
			return r.UserID == user.ID &&
				r.SetupIntentID == "seti_1" &&
				r.PaymentIntentID == "pi_1" &&
				r.ClientSecret == "seti_1_secret" &&
				r.Status == models.PaymentIntentInitiated &&
				r.InitiationDate.Equal(f.now)
		})).Return(nil).Once()

		rec, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.Nil(t, appErr)
		assert.Equal(t, "seti_1_secret", rec.ClientSecret)
		assert.Empty(t, f.locker.held)
		f.intents.AssertExpectations(t)
		f.processor.AssertExpectations(t)
	})

	t.Run("empty cart uses the placeholder amount", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()

		f.intents.On("FindInitiated", mock.Anything, user.ID).Return(nil, repository.ErrNotFound).Once()
		f.carts.On("FindByUserID", mock.Anything, user.ID).Return(&models.Cart{}, nil).Once()
		f.processor.On("CreateSetupIntent", mock.Anything, "cus_123").Return(&providers.SetupIntent{ID: "seti_1"}, nil).Once()
		f.processor.On("CreatePaymentIntent", mock.Anything, "cus_123", int64(testPlaceholderAmount), "USD", "").
			Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.intents.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		_, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.Nil(t, appErr)
		f.processor.AssertExpectations(t)
	})

	t.Run("completed setup intent is replaced", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		existing := &models.PaymentIntentRecord{ID: "rec-1", UserID: user.ID, SetupIntentID: "seti_old", PaymentIntentID: "pi_1", ClientSecret: "old", Status: models.PaymentIntentInitiated}

		f.intents.On("FindInitiated", mock.Anything, user.ID).Return(existing, nil).Once()
		f.processor.On("GetSetupIntent", mock.Anything, "seti_old").
			Return(&providers.SetupIntent{ID: "seti_old", Status: providers.SetupIntentSucceeded}, nil).Once()
		f.processor.On("CreateSetupIntent", mock.Anything, "cus_123").
			Return(&providers.SetupIntent{ID: "seti_new", ClientSecret: "new"}, nil).Once()
		f.intents.On("Update", mock.Anything, existing).Return(nil).Once()

		rec, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.Nil(t, appErr)
		assert.Equal(t, "seti_new", rec.SetupIntentID)
		assert.Equal(t, "new", rec.ClientSecret)
		assert.Equal(t, "pi_1", rec.PaymentIntentID)
		assert.Equal(t, f.now, rec.InitiationDate)
		f.processor.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("pending setup intent is kept", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		existing := &models.PaymentIntentRecord{ID: "rec-1", UserID: user.ID, SetupIntentID: "seti_1", PaymentIntentID: "pi_1", ClientSecret: "secret"}

		f.intents.On("FindInitiated", mock.Anything, user.ID).Return(existing, nil).Once()
		f.processor.On("GetSetupIntent", mock.Anything, "seti_1").
			Return(&providers.SetupIntent{ID: "seti_1", Status: "requires_payment_method"}, nil).Once()
		f.intents.On("Update", mock.Anything, existing).Return(nil).Once()

		rec, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.Nil(t, appErr)
		assert.Equal(t, "seti_1", rec.SetupIntentID)
		f.processor.AssertNotCalled(t, "CreateSetupIntent", mock.Anything, mock.Anything)
	})

	t.Run("user without customer is rejected", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		user.StripeID = ""

		_, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.Code)
		assert.Equal(t, 0, f.locker.acquires)
	})

	t.Run("concurrent checkout is a conflict", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		f.locker.held[user.ID] = true

		_, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusConflict, appErr.Code)
		assert.Equal(t, apperrors.CheckoutInProgress, appErr.ErrorID)
		f.intents.AssertNotCalled(t, "FindInitiated", mock.Anything, mock.Anything)
	})

	t.Run("missing cart", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()

		f.intents.On("FindInitiated", mock.Anything, user.ID).Return(nil, repository.ErrNotFound).Once()
		f.carts.On("FindByUserID", mock.Anything, user.ID).Return(nil, repository.ErrNotFound).Once()

		_, appErr := f.svc.EnsureSetupIntent(ctx, user)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusNotFound, appErr.Code)
	})
}

func TestSizeAndConfirm(t *testing.T) {
	ctx := context.Background()

	newRecord := func() *models.PaymentIntentRecord {
		return &models.PaymentIntentRecord{ID: "rec-1", UserID: "user-1", SetupIntentID: "seti_1", PaymentIntentID: "pi_1", Status: models.PaymentIntentInitiated}
	}

	t.Run("success finalizes the record", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", providers.PaymentIntentUpdate{
			Amount: 2200, Currency: "USD", CustomerID: "cus_123", PaymentMethodID: "pm_1",
		}).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(&providers.PaymentIntent{ID: "pi_1", Status: providers.PaymentIntentSucceeded}, nil).Once()
		f.ledger.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PaymentAttempt) bool {
			return a.PaymentIntentID == "pi_1" && a.Status == models.PaymentStatusSucceeded && a.Amount == 2200 && a.SucceededAt != nil
		})).Return(nil).Once()
		f.intents.On("Update", mock.Anything, rec).Return(nil).Once()

		out, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 2200, "USD", "pm_1")
		require.Nil(t, appErr)
		assert.Equal(t, &ConfirmOutcome{PaymentIntentID: "pi_1", Amount: 2200, Currency: "USD"}, out)
		assert.Equal(t, models.PaymentIntentSucceeded, rec.Status)
		require.NotNil(t, rec.EndDate)
		assert.Equal(t, f.now, *rec.EndDate)
		f.ledger.AssertExpectations(t)
		f.intents.AssertExpectations(t)
	})

	t.Run("decline moves the record to a placeholder", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").Return(nil, &providers.DeclineError{
			Code:        "card_declined",
			DeclineCode: "insufficient_funds",
			HTTPStatus:  http.StatusPaymentRequired,
			Message:     "Your card has insufficient funds.",
		}).Once()
		f.processor.On("CreatePaymentIntent", mock.Anything, "cus_123", int64(testPlaceholderAmount), "USD", "placeholder-pi_1").
			Return(&providers.PaymentIntent{ID: "pi_2"}, nil).Once()
		f.intents.On("Update", mock.Anything, mock.MatchedBy(func(r *models.PaymentIntentRecord) bool {
			return r.PaymentIntentID == "pi_2" && r.Status == models.PaymentIntentInitiated
		})).Return(nil).Once()
		f.ledger.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PaymentAttempt) bool {
			return a.PaymentIntentID == "pi_1" &&
				a.Status == models.PaymentStatusDeclined &&
				a.DeclineCode != nil && *a.DeclineCode == "insufficient_funds" &&
				a.ErrorID != nil && *a.ErrorID == int(apperrors.InsufficientFunds)
		})).Return(nil).Once()

		out, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 2200, "USD", "pm_1")
		assert.Nil(t, out)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusPaymentRequired, appErr.Code)
		assert.Equal(t, apperrors.InsufficientFunds, appErr.ErrorID)
		assert.Equal(t, "Your card doesn't have enough funds.", appErr.Message)
		assert.Equal(t, "pi_2", rec.PaymentIntentID)
		f.processor.AssertExpectations(t)
		f.ledger.AssertExpectations(t)
	})

	t.Run("non-success status keeps the record initiated", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(&providers.PaymentIntent{ID: "pi_1", Status: "requires_action"}, nil).Once()
		f.processor.On("CreatePaymentIntent", mock.Anything, "cus_123", int64(testPlaceholderAmount), "USD", "placeholder-pi_1").
			Return(&providers.PaymentIntent{ID: "pi_3"}, nil).Once()
		f.intents.On("Update", mock.Anything, rec).Return(nil).Once()
		f.ledger.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PaymentAttempt) bool {
			return a.PaymentIntentID == "pi_1" && a.Status == models.PaymentStatusFailed && a.FailedAt != nil
		})).Return(nil).Once()

		_, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 2200, "USD", "pm_1")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.Code)
		assert.Equal(t, apperrors.PaymentNotCompleted, appErr.ErrorID)
		assert.Equal(t, models.PaymentIntentInitiated, rec.Status)
		assert.Equal(t, "pi_3", rec.PaymentIntentID)
		assert.Nil(t, rec.EndDate)
	})

	t.Run("placeholder store failure keeps the failed intent", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(nil, &providers.DeclineError{Code: "card_declined", DeclineCode: "lost_card"}).Once()
		f.processor.On("CreatePaymentIntent", mock.Anything, "cus_123", int64(testPlaceholderAmount), "USD", "placeholder-pi_1").
			Return(&providers.PaymentIntent{ID: "pi_2"}, nil).Once()
		f.intents.On("Update", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
		f.ledger.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		_, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 100, "USD", "pm_1")
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.LostCard, appErr.ErrorID)
		assert.Equal(t, http.StatusPaymentRequired, appErr.Code)
		assert.Equal(t, "pi_1", rec.PaymentIntentID)
	})

	t.Run("processor outage is internal and leaves the record alone", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(nil, errors.New("connection refused")).Once()

		_, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 100, "USD", "pm_1")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusInternalServerError, appErr.Code)
		assert.Equal(t, "pi_1", rec.PaymentIntentID)
		f.intents.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ledger failure does not fail the payment", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(&providers.PaymentIntent{ID: "pi_1", Status: providers.PaymentIntentSucceeded}, nil).Once()
		f.ledger.On("Create", mock.Anything, mock.Anything).Return(errors.New("postgres down")).Once()
		f.intents.On("Update", mock.Anything, rec).Return(nil).Once()

		out, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 100, "USD", "pm_1")
		require.Nil(t, appErr)
		assert.Equal(t, "pi_1", out.PaymentIntentID)
	})

	t.Run("record store blip is retried", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(&providers.PaymentIntent{ID: "pi_1", Status: providers.PaymentIntentSucceeded}, nil).Once()
		f.ledger.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		f.intents.On("Update", mock.Anything, rec).Return(errors.New("mongo primary stepped down")).Once()
		f.intents.On("Update", mock.Anything, rec).Return(nil).Once()

		out, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 100, "USD", "pm_1")
		require.Nil(t, appErr)
		assert.Equal(t, "pi_1", out.PaymentIntentID)
		f.intents.AssertNumberOfCalls(t, "Update", 2)
	})

	t.Run("unfinalized record still returns the captured charge", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		rec := newRecord()

		f.processor.On("UpdatePaymentIntent", mock.Anything, "pi_1", mock.Anything).Return(&providers.PaymentIntent{ID: "pi_1"}, nil).Once()
		f.processor.On("ConfirmPaymentIntent", mock.Anything, "pi_1", "pm_1").
			Return(&providers.PaymentIntent{ID: "pi_1", Status: providers.PaymentIntentSucceeded}, nil).Once()
		f.ledger.On("Create", mock.Anything, mock.MatchedBy(func(a *models.PaymentAttempt) bool {
			return a.Status == models.PaymentStatusSucceeded
		})).Return(nil).Once()
		f.intents.On("Update", mock.Anything, rec).Return(errors.New("mongo down"))

		out, appErr := f.svc.SizeAndConfirm(ctx, user, rec, 2200, "USD", "pm_1")
		require.Nil(t, appErr)
		assert.Equal(t, &ConfirmOutcome{PaymentIntentID: "pi_1", Amount: 2200, Currency: "USD"}, out)
		f.intents.AssertNumberOfCalls(t, "Update", finalizeAttempts)
		f.processor.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.ledger.AssertExpectations(t)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()

		f.intents.On("FindBySetupIntent", mock.Anything, "seti_1", user.ID).
			Return(&models.PaymentIntentRecord{ID: "rec-1", PaymentIntentID: "pi_1"}, nil).Once()
		f.intents.On("Delete", mock.Anything, "rec-1").Return(nil).Once()
		f.processor.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(nil).Once()

		assert.Nil(t, f.svc.Cancel(ctx, user, "seti_1"))
		f.intents.AssertExpectations(t)
		f.processor.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()

		f.intents.On("FindBySetupIntent", mock.Anything, "seti_x", user.ID).Return(nil, repository.ErrNotFound).Once()

		appErr := f.svc.Cancel(ctx, user, "seti_x")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusNotFound, appErr.Code)
		assert.Equal(t, "No Payment intent found", appErr.Message)
		f.processor.AssertNotCalled(t, "CancelPaymentIntent", mock.Anything, mock.Anything)
	})

	t.Run("processor failure", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()

		f.intents.On("FindBySetupIntent", mock.Anything, "seti_1", user.ID).
			Return(&models.PaymentIntentRecord{ID: "rec-1", PaymentIntentID: "pi_1"}, nil).Once()
		f.intents.On("Delete", mock.Anything, "rec-1").Return(nil).Once()
		f.processor.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(errors.New("already succeeded")).Once()

		appErr := f.svc.Cancel(ctx, user, "seti_1")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	})
}

func TestListSavedMethods(t *testing.T) {
	ctx := context.Background()

	t.Run("cards are rendered", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		f.processor.On("ListCardMethods", mock.Anything, "cus_123").Return([]providers.PaymentMethod{
			{ID: "pm_1", Type: "card", Brand: "visa", Last4: "4242", ExpMonth: 4, ExpYear: 2030},
			{ID: "pm_2", Type: "card", Brand: "mastercard", Last4: "4444", ExpMonth: 11, ExpYear: 2028},
		}, nil).Once()

		views, appErr := f.svc.ListSavedMethods(ctx, testUser())
		require.Nil(t, appErr)
		assert.Equal(t, []models.PaymentMethodView{
			{ID: "pm_1", Brand: "visa", Ending: "4242", ExpirationDate: "04/2030", Type: "card"},
			{ID: "pm_2", Brand: "mastercard", Ending: "4444", ExpirationDate: "11/2028", Type: "card"},
		}, views)
	})

	t.Run("no cards", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		f.processor.On("ListCardMethods", mock.Anything, "cus_123").Return([]providers.PaymentMethod{}, nil).Once()

		_, appErr := f.svc.ListSavedMethods(ctx, testUser())
		require.NotNil(t, appErr)
		assert.Equal(t, "No Payment methods found", appErr.Message)
	})

	t.Run("no customer", func(t *testing.T) {
		f := newPaymentFixture(fixedRates{})
		user := testUser()
		user.StripeID = ""

		_, appErr := f.svc.ListSavedMethods(ctx, user)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusNotFound, appErr.Code)
		f.processor.AssertNotCalled(t, "ListCardMethods", mock.Anything, mock.Anything)
	})
}

func TestDeclineErrorID(t *testing.T) {
	tests := []struct {
		code        string
		declineCode string
		want        apperrors.ErrorID
	}{
		{code: "card_declined", declineCode: "generic_decline", want: apperrors.GenericDecline},
		{code: "card_declined", declineCode: "insufficient_funds", want: apperrors.InsufficientFunds},
		{code: "card_declined", declineCode: "lost_card", want: apperrors.LostCard},
		{code: "card_declined", declineCode: "stolen_card", want: apperrors.StolenCard},
		{code: "expired_card", want: apperrors.ExpiredCard},
		{code: "incorrect_cvc", want: apperrors.IncorrectCVC},
		{code: "card_declined", declineCode: "card_velocity_exceeded", want: apperrors.CardVelocityExceeded},
		{code: "card_declined", want: apperrors.CardDeclined},
		{code: "card_declined", declineCode: "do_not_honor", want: apperrors.UnrecognizedDecline},
		{code: "processing_error", want: apperrors.UnrecognizedDecline},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.declineCode, func(t *testing.T) {
			assert.Equal(t, tt.want, DeclineErrorID(tt.code, tt.declineCode))
		})
	}
}
