package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// CommitError reports which write of a commit failed.
type CommitError struct {
	Step string
	Err  error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit %s: %v", e.Step, e.Err) }
func (e *CommitError) Unwrap() error { return e.Err }

// OrderCommitter persists a paid checkout: the orders, the stock decrements
// and the removal of the cart.
type OrderCommitter interface {
	Commit(ctx context.Context, userID string, orders []*models.Order) error
}

type MongoOrderCommitter struct {
	client        *mongo.Client
	orders        OrderRepository
	products      ProductRepository
	carts         CartRepository
	transactional bool
}

// NewMongoOrderCommitter returns a committer. When transactional is set
// (replica set deployments) all writes run in one transaction.
func NewMongoOrderCommitter(client *mongo.Client, orders OrderRepository, products ProductRepository, carts CartRepository, transactional bool) *MongoOrderCommitter {
	return &MongoOrderCommitter{
		client:        client,
		orders:        orders,
		products:      products,
		carts:         carts,
		transactional: transactional,
	}
}

func (c *MongoOrderCommitter) Commit(ctx context.Context, userID string, orders []*models.Order) error {
	if !c.transactional {
		return c.apply(ctx, userID, orders)
	}

	sess, err := c.client.StartSession()
	if err != nil {
		return &CommitError{Step: "session", Err: err}
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, c.apply(sc, userID, orders)
	})
	return err
}

func (c *MongoOrderCommitter) apply(ctx context.Context, userID string, orders []*models.Order) error {
	if err := c.orders.InsertMany(ctx, orders); err != nil {
		return &CommitError{Step: "orders", Err: err}
	}
	for _, d := range models.StockDecrements(orders) {
		// Products removed from the catalog since they were carted are skipped.
		if err := c.products.DecrementStock(ctx, d.ProductID, d.Quantity); err != nil && !errors.Is(err, ErrNotFound) {
			return &CommitError{Step: "stock " + d.ProductID, Err: err}
		}
	}
	if err := c.carts.DeleteByUserID(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return &CommitError{Step: "cart", Err: err}
	}
	return nil
}
