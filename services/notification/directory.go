package notification

import (
	"context"

	"github.com/google/uuid"
)

// CompanyDirectory resolves the contact address of a company from its profile
type CompanyDirectory interface {
	ContactEmail(ctx context.Context, companyID uuid.UUID) (string, error)
}

// StaticDirectory answers every lookup with one configured address
type StaticDirectory struct {
	Fallback string
}

// ContactEmail returns the configured fallback
func (d StaticDirectory) ContactEmail(ctx context.Context, companyID uuid.UUID) (string, error) {
	return d.Fallback, nil
}
