package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/internship-placement/repositories"
)

// QuotaRepository implements repositories.QuotaRepository in memory
type QuotaRepository struct {
	mu     sync.Mutex
	cap    int
	capSet bool
	counts map[uuid.UUID]int
}

// NewQuotaRepository creates a ledger with no cap configured
func NewQuotaRepository() *QuotaRepository {
	return &QuotaRepository{counts: make(map[uuid.UUID]int)}
}

// GetCap returns the configured cap
func (r *QuotaRepository) GetCap(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capSet {
		return 0, repositories.ErrNotFound
	}
	return r.cap, nil
}

// SetCap replaces the cap
func (r *QuotaRepository) SetCap(ctx context.Context, cap int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cap = cap
	r.capSet = true
	return nil
}

// EnsureCap sets the cap only if none is configured
func (r *QuotaRepository) EnsureCap(ctx context.Context, defaultCap int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capSet {
		r.cap = defaultCap
		r.capSet = true
	}
	return nil
}

// GetCount returns the student's charged submissions
func (r *QuotaRepository) GetCount(ctx context.Context, studentID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[studentID], nil
}

// Reserve increments the counter under the lock when it is below the cap
func (r *QuotaRepository) Reserve(ctx context.Context, studentID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capSet || r.counts[studentID] >= r.cap {
		return 0, repositories.ErrQuotaExhausted
	}
	r.counts[studentID]++
	return r.counts[studentID], nil
}
