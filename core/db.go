package core

import "context"

// TxRunner runs fn inside a single transaction: it commits when fn returns nil and rolls back
// otherwise. Repository calls made with the context handed to fn take part in the transaction;
// calling RunInTx again with that context joins the running transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
