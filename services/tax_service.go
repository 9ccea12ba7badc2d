package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/yashrajoria/checkout-service/common/errors"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

type TaxService interface {
	// AttachTax sets the order's taxes from one engine call for its subtotal
	// and recomputes the total. Engine errors are returned wrapped.
	AttachTax(ctx context.Context, order *models.Order, address *models.Address) error
	CalculateCartTaxes(ctx context.Context, user *models.User, addressID string) (*models.TaxBreakdown, *apperrors.Error)
}

type taxServiceImpl struct {
	engine    providers.TaxEngine
	carts     repository.CartRepository
	addresses repository.AddressRepository
	currency  CurrencyService
	logger    *zap.Logger
}

func NewTaxService(
	engine providers.TaxEngine,
	carts repository.CartRepository,
	addresses repository.AddressRepository,
	currency CurrencyService,
	logger *zap.Logger,
) TaxService {
	return &taxServiceImpl{
		engine:    engine,
		carts:     carts,
		addresses: addresses,
		currency:  currency,
		logger:    logger,
	}
}

func (s *taxServiceImpl) AttachTax(ctx context.Context, order *models.Order, address *models.Address) error {
	if address == nil {
		return fmt.Errorf("attach tax to store %s order: no shipping address", order.StoreID)
	}

	res, err := s.engine.Calculate(ctx, providers.TaxRequest{
		Currency:   order.Summary.Currency,
		PostalCode: address.PostalCode,
		Country:    taxCountry(address),
		LineItems: []providers.TaxLineItem{{
			Amount:      order.Summary.Subtotal,
			Reference:   order.StoreID,
			TaxBehavior: providers.TaxBehaviorExclusive,
		}},
	})
	if err != nil {
		return fmt.Errorf("tax for store %s: %w", order.StoreID, err)
	}

	order.Summary.Taxes = res.TaxAmountExclusive
	if order.Summary.Taxes == 0 {
		order.Summary.Taxes = res.TaxAmountInclusive
	}
	order.Summary.Recompute()
	return nil
}

// CalculateCartTaxes previews the taxes of the whole cart for an address,
// one line item per cart entry.
func (s *taxServiceImpl) CalculateCartTaxes(ctx context.Context, user *models.User, addressID string) (*models.TaxBreakdown, *apperrors.Error) {
	cart, err := s.carts.FindByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && len(cart.Items) == 0) {
		return nil, apperrors.NotFound("cart")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	address, err := s.addresses.FindForUser(ctx, addressID, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("address")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	currency := user.Currency()
	lineItems := make([]providers.TaxLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lineItems = append(lineItems, providers.TaxLineItem{
			Amount:    convertItem(ctx, s.currency, item, currency, item.LineTotal()),
			Reference: lineReference(item),
		})
	}

	res, err := s.engine.Calculate(ctx, providers.TaxRequest{
		Currency:   currency,
		PostalCode: address.PostalCode,
		Country:    taxCountry(address),
		LineItems:  lineItems,
	})
	if err != nil {
		s.logger.Error("Tax calculation failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperrors.New(http.StatusBadGateway, apperrors.TaxCalculationFailed, "", err)
	}

	return &models.TaxBreakdown{
		Total:          res.AmountTotal,
		InclusiveTaxes: res.TaxAmountInclusive,
		ExclusiveTaxes: res.TaxAmountExclusive,
	}, nil
}

// lineReference renders "<name>, <variant values>.".
func lineReference(item models.CartLineItem) string {
	values := make([]string, 0, len(item.Info.Variants))
	for _, v := range item.Info.Variants {
		values = append(values, v.Value)
	}
	return fmt.Sprintf("%s, %s.", item.Product.Name, strings.Join(values, ", "))
}

func taxCountry(a *models.Address) string {
	if a.CountryCode != "" {
		return a.CountryCode
	}
	return a.Country
}
