package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

// MemoryRepository is an in-memory Repository used by service tests. It
// mirrors the store semantics that matter to the service: batch-number
// uniqueness, per-date counters, soft-delete visibility and suffix ordering.
type MemoryRepository struct {
	mu       sync.Mutex
	visitors map[uuid.UUID]persistence.Visitor
	batchNos map[string]struct{}
	counters map[string]int64
	seq      int64
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		visitors: make(map[uuid.UUID]persistence.Visitor),
		batchNos: make(map[string]struct{}),
		counters: make(map[string]int64),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.batchNos[params.BatchNo]; taken {
		return persistence.Visitor{}, persistence.ErrBatchNumberTaken
	}

	r.seq++
	visitor := persistence.Visitor{
		VisitorID:       params.VisitorID,
		BatchNo:         params.BatchNo,
		Name:            strings.TrimSpace(params.Name),
		Gender:          params.Gender,
		Mobile:          strings.TrimSpace(params.Mobile),
		Email:           strings.TrimSpace(params.Email),
		Address:         params.Address,
		VisitDate:       params.VisitDate,
		VisitTime:       params.VisitTime,
		Duration:        params.Duration,
		Company:         params.Company,
		Host:            params.Host,
		Purpose:         params.Purpose,
		Plant:           params.Plant,
		Assets:          params.Assets,
		SafetyEquipment: params.SafetyEquipment,
		VisitorCardNo:   params.VisitorCardNo,
		NationalID:      strings.TrimSpace(params.NationalID),
		PhotoPath:       params.PhotoPath,
		Status:          "PENDING",
		// Synthetic clock keeps newest-first ordering stable within one test.
		CreatedAt: time.Unix(0, r.seq),
	}

	r.batchNos[params.BatchNo] = struct{}{}
	r.visitors[params.VisitorID] = visitor
	return visitor, nil
}

func (r *MemoryRepository) NextBatchSequence(_ context.Context, dateKey string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[dateKey]++
	return r.counters[dateKey], nil
}

func (r *MemoryRepository) LastBatchNumberForPrefix(_ context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last string
	for batchNo := range r.batchNos {
		if !strings.HasPrefix(batchNo, prefix+"-") {
			continue
		}
		if last == "" || len(batchNo) > len(last) || (len(batchNo) == len(last) && batchNo > last) {
			last = batchNo
		}
	}
	return last, nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok || visitor.IsDeleted {
		return persistence.Visitor{}, persistence.ErrVisitorNotFound
	}
	return visitor, nil
}

func (r *MemoryRepository) GetIncludingDeleted(_ context.Context, id uuid.UUID) (persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok {
		return persistence.Visitor{}, persistence.ErrVisitorNotFound
	}
	return visitor, nil
}

func (r *MemoryRepository) List(_ context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := make([]persistence.Visitor, 0)
	for _, visitor := range r.visitors {
		if visitor.IsDeleted {
			continue
		}
		if params.Status != nil && *params.Status != "" && visitor.Status != *params.Status {
			continue
		}
		if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
			needle := strings.ToLower(strings.TrimSpace(*params.Search))
			if !strings.Contains(strings.ToLower(visitor.Name), needle) &&
				!strings.Contains(visitor.Mobile, needle) &&
				!strings.Contains(strings.ToLower(visitor.Company), needle) {
				continue
			}
		} else if params.VisitDate != nil {
			if visitor.VisitDate == nil || !visitor.VisitDate.Equal(*params.VisitDate) {
				continue
			}
		}
		if params.FromDate != nil && (visitor.VisitDate == nil || visitor.VisitDate.Before(*params.FromDate)) {
			continue
		}
		if params.ToDate != nil && (visitor.VisitDate == nil || visitor.VisitDate.After(*params.ToDate)) {
			continue
		}
		if len(params.Plants) > 0 {
			allowed := false
			for _, plant := range params.Plants {
				if visitor.Plant == plant {
					allowed = true
					break
				}
			}
			if !allowed {
				continue
			}
		}
		matches = append(matches, visitor)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}
	return matches, nil
}

func (r *MemoryRepository) SearchByIdentity(_ context.Context, mobile, nationalID string) (persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mobile = strings.TrimSpace(mobile)
	nationalID = strings.TrimSpace(nationalID)

	var found *persistence.Visitor
	for id := range r.visitors {
		visitor := r.visitors[id]
		if visitor.IsDeleted {
			continue
		}
		match := false
		switch {
		case mobile != "":
			match = visitor.Mobile == mobile
		case nationalID != "":
			match = visitor.NationalID == nationalID
		}
		if !match {
			continue
		}
		if found == nil || visitor.CreatedAt.After(found.CreatedAt) {
			v := visitor
			found = &v
		}
	}
	if found == nil {
		return persistence.Visitor{}, persistence.ErrVisitorNotFound
	}
	return *found, nil
}

func (r *MemoryRepository) HasBlacklistedIdentity(_ context.Context, mobile, nationalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mobile = strings.TrimSpace(mobile)
	nationalID = strings.TrimSpace(nationalID)
	if mobile == "" && nationalID == "" {
		return false, nil
	}

	for _, visitor := range r.visitors {
		if !visitor.IsBlacklisted || visitor.IsDeleted {
			continue
		}
		if (visitor.Mobile != "" && visitor.Mobile == mobile) ||
			(visitor.NationalID != "" && visitor.NationalID == nationalID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok || visitor.IsDeleted {
		return persistence.ErrVisitorNotFound
	}
	visitor.Status = status
	if entryTime != nil {
		visitor.EntryTime = entryTime
	}
	if exitTime != nil {
		visitor.ExitTime = exitTime
	}
	r.visitors[id] = visitor
	return nil
}

func (r *MemoryRepository) UpdateDetails(_ context.Context, id uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok || visitor.IsDeleted {
		return persistence.Visitor{}, persistence.ErrVisitorNotFound
	}

	apply := func(target *string, value *string) {
		if value != nil {
			*target = *value
		}
	}
	apply(&visitor.Name, params.Name)
	apply(&visitor.Gender, params.Gender)
	apply(&visitor.Mobile, params.Mobile)
	apply(&visitor.Email, params.Email)
	apply(&visitor.Address, params.Address)
	apply(&visitor.Company, params.Company)
	apply(&visitor.Host, params.Host)
	apply(&visitor.Purpose, params.Purpose)
	apply(&visitor.Plant, params.Plant)
	apply(&visitor.Assets, params.Assets)
	apply(&visitor.SafetyEquipment, params.SafetyEquipment)
	apply(&visitor.VisitorCardNo, params.VisitorCardNo)
	apply(&visitor.NationalID, params.NationalID)

	r.visitors[id] = visitor
	return visitor, nil
}

func (r *MemoryRepository) SetBlacklisted(_ context.Context, id uuid.UUID, blacklisted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok || visitor.IsDeleted {
		return persistence.ErrVisitorNotFound
	}
	visitor.IsBlacklisted = blacklisted
	r.visitors[id] = visitor
	return nil
}

func (r *MemoryRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	visitor, ok := r.visitors[id]
	if !ok || visitor.IsDeleted {
		return persistence.ErrVisitorNotFound
	}
	visitor.IsDeleted = true
	r.visitors[id] = visitor
	return nil
}
