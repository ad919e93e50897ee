package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/instaphotobooth/booth-server/internal/config"
	"github.com/instaphotobooth/booth-server/internal/model"
)

// MemoryAccessCodeRepository is a process-lifetime store keyed by code.
// It is the minimum-durability baseline: all codes are lost on restart.
// The mutex serializes Activate and CheckAndIncrementEmail the same way
// the database row lock does for the Postgres repository.
type MemoryAccessCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*model.AccessCode

	// Now is the clock used for activation and expiry checks.
	// Overridable in tests.
	Now func() time.Time
}

// NewMemoryAccessCodeRepository creates an empty in-memory repository
func NewMemoryAccessCodeRepository() *MemoryAccessCodeRepository {
	return &MemoryAccessCodeRepository{
		codes: make(map[string]*model.AccessCode),
		Now:   time.Now,
	}
}

func (r *MemoryAccessCodeRepository) Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[params.Code]; exists {
		return nil, ErrDuplicateCode
	}

	now := r.Now()
	ac := &model.AccessCode{
		Code:            params.Code,
		DurationSeconds: params.DurationSeconds,
		EmailLimit:      params.EmailLimit,
		HasDesignStudio: params.HasDesignStudio,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.codes[params.Code] = ac
	return copyCode(ac), nil
}

func (r *MemoryAccessCodeRepository) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ac, exists := r.codes[code]
	if !exists {
		return nil, nil
	}
	return copyCode(ac), nil
}

func (r *MemoryAccessCodeRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Linear scan: a low-QPS control-plane lookup, not a hot path.
	for _, ac := range r.codes {
		if ac.CheckoutSessionID != nil && *ac.CheckoutSessionID == sessionID {
			return copyCode(ac), nil
		}
	}
	return nil, nil
}

func (r *MemoryAccessCodeRepository) Activate(ctx context.Context, code string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ac, exists := r.codes[code]
	if !exists {
		return nil, nil
	}

	now := r.Now()
	if ac.Used {
		if ac.IsLive(now) {
			return copyCode(ac), nil
		}
		return nil, ErrCodeExpired
	}

	expiresAt := now.Add(time.Duration(ac.DurationSeconds) * time.Second)
	ac.Used = true
	ac.ExpiresAt = &expiresAt
	ac.UpdatedAt = now
	return copyCode(ac), nil
}

func (r *MemoryAccessCodeRepository) LinkCheckoutSession(ctx context.Context, code, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// No-op when the code is missing, matching the Postgres UPDATE.
	if ac, exists := r.codes[code]; exists {
		id := sessionID
		ac.CheckoutSessionID = &id
		ac.UpdatedAt = r.Now()
	}
	return nil
}

func (r *MemoryAccessCodeRepository) CheckAndIncrementEmail(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ac, exists := r.codes[code]
	if !exists {
		return false, nil
	}
	if ac.EmailsSent >= ac.EmailLimit {
		return false, nil
	}
	ac.EmailsSent++
	ac.UpdatedAt = r.Now()
	return true, nil
}

func (r *MemoryAccessCodeRepository) SaveDesign(ctx context.Context, code string, layout *model.DesignLayout) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ac, exists := r.codes[code]
	if !exists {
		return false, nil
	}
	ac.DesignLayout = copyLayout(layout)
	ac.UpdatedAt = r.Now()
	return true, nil
}

func (r *MemoryAccessCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	var deleted int64
	for code, ac := range r.codes {
		expired := ac.Used && ac.ExpiresAt != nil && now.Sub(*ac.ExpiresAt) > config.ExpiredCodeRetention
		stale := !ac.Used && now.Sub(ac.CreatedAt) > config.DormantCodeRetention
		if expired || stale {
			delete(r.codes, code)
			deleted++
		}
	}
	return deleted, nil
}

// copyCode returns a deep copy so callers never share mutable state with
// the store.
func copyCode(ac *model.AccessCode) *model.AccessCode {
	dup := *ac
	if ac.ExpiresAt != nil {
		t := *ac.ExpiresAt
		dup.ExpiresAt = &t
	}
	if ac.CheckoutSessionID != nil {
		s := *ac.CheckoutSessionID
		dup.CheckoutSessionID = &s
	}
	dup.DesignLayout = copyLayout(ac.DesignLayout)
	return &dup
}

func copyLayout(layout *model.DesignLayout) *model.DesignLayout {
	if layout == nil {
		return nil
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return nil
	}
	var dup model.DesignLayout
	if err := json.Unmarshal(data, &dup); err != nil {
		return nil
	}
	return &dup
}

var _ AccessCodeRepository = (*MemoryAccessCodeRepository)(nil)
