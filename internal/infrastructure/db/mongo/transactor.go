package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

// Transactor runs a unit of work inside a multi-document transaction. Transactions
// need a replica set or sharded cluster; with enabled=false the work runs
// directly and each write is atomic only on its own document.
type Transactor struct {
	client  *mongo.Client
	enabled bool
}

func NewTransactor(client *mongo.Client, enabled bool) *Transactor {
	return &Transactor{client: client, enabled: enabled}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}

	sess, err := t.client.StartSession()
	if err != nil {
		return storeError("start session", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return txError(err)
}

// txError leaves errors the unit of work already classified untouched and
// runs everything else, commit and abort failures included, through
// storeError. Transient transaction labels survive the driver's own retries
// only once the deadline is spent, so they count as unavailable.
func txError(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrUnavailable,
		domain.ErrForbidden,
	} {
		if errors.Is(err, class) {
			return err
		}
	}
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("UnknownTransactionCommitResult")) {
		return domain.Unavailable("transaction", err)
	}
	return storeError("transaction", err)
}
