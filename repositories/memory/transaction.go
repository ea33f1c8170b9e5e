package memory

import (
	"context"
	"time"

	"github.com/upb/internship-placement/repositories"
)

var now = func() time.Time { return time.Now().UTC() }

var (
	_ repositories.ApplicationRepository  = (*ApplicationRepository)(nil)
	_ repositories.QuotaRepository        = (*QuotaRepository)(nil)
	_ repositories.NotificationRepository = (*NotificationRepository)(nil)
	_ repositories.TransactionManager     = (*TransactionManager)(nil)
)

// TransactionManager runs fn directly. Each memory repository call is atomic on its
// own and the service never needs to roll back an in-memory write.
type TransactionManager struct{}

// NewTransactionManager creates a pass-through transaction manager
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// Begin returns a transaction bound to ctx
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &transaction{ctx: ctx}, nil
}

// InTransaction runs fn with a pass-through transaction
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := tm.Begin(ctx)
	return fn(ctx, tx)
}

type transaction struct {
	ctx context.Context
}

func (t *transaction) Commit() error { return nil }

func (t *transaction) Rollback() error { return nil }

func (t *transaction) Context() context.Context { return t.ctx }

// NewRepositories builds a complete in-memory repository set
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Applications:  NewApplicationRepository(),
		Quotas:        NewQuotaRepository(),
		Notifications: NewNotificationRepository(),
	}
}
