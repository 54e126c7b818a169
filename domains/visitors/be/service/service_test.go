package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/steelworks-digital/vms-server/domains/visitors/be/repo"
	"github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
)

type mockRepository struct {
	insertFn          func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error)
	nextSequenceFn    func(ctx context.Context, dateKey string) (int64, error)
	lastBatchFn       func(ctx context.Context, prefix string) (string, error)
	getFn             func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error)
	getAnyFn          func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error)
	listFn            func(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error)
	searchFn          func(ctx context.Context, mobile, nationalID string) (persistence.Visitor, error)
	blacklistLookupFn func(ctx context.Context, mobile, nationalID string) (bool, error)
	updateStatusFn    func(ctx context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error
	updateDetailsFn   func(ctx context.Context, id uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error)
	setBlacklistedFn  func(ctx context.Context, id uuid.UUID, blacklisted bool) error
	softDeleteFn      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepository) Insert(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
	if m.insertFn == nil {
		panic("insertFn not configured")
	}
	return m.insertFn(ctx, params)
}

func (m *mockRepository) NextBatchSequence(ctx context.Context, dateKey string) (int64, error) {
	if m.nextSequenceFn == nil {
		panic("nextSequenceFn not configured")
	}
	return m.nextSequenceFn(ctx, dateKey)
}

func (m *mockRepository) LastBatchNumberForPrefix(ctx context.Context, prefix string) (string, error) {
	if m.lastBatchFn == nil {
		panic("lastBatchFn not configured")
	}
	return m.lastBatchFn(ctx, prefix)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
	if m.getAnyFn == nil {
		panic("getAnyFn not configured")
	}
	return m.getAnyFn(ctx, id)
}

func (m *mockRepository) List(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, params)
}

func (m *mockRepository) SearchByIdentity(ctx context.Context, mobile, nationalID string) (persistence.Visitor, error) {
	if m.searchFn == nil {
		panic("searchFn not configured")
	}
	return m.searchFn(ctx, mobile, nationalID)
}

func (m *mockRepository) HasBlacklistedIdentity(ctx context.Context, mobile, nationalID string) (bool, error) {
	if m.blacklistLookupFn == nil {
		return false, nil
	}
	return m.blacklistLookupFn(ctx, mobile, nationalID)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error {
	if m.updateStatusFn == nil {
		panic("updateStatusFn not configured")
	}
	return m.updateStatusFn(ctx, id, status, entryTime, exitTime)
}

func (m *mockRepository) UpdateDetails(ctx context.Context, id uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error) {
	if m.updateDetailsFn == nil {
		panic("updateDetailsFn not configured")
	}
	return m.updateDetailsFn(ctx, id, params)
}

func (m *mockRepository) SetBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error {
	if m.setBlacklistedFn == nil {
		panic("setBlacklistedFn not configured")
	}
	return m.setBlacklistedFn(ctx, id, blacklisted)
}

func (m *mockRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if m.softDeleteFn == nil {
		panic("softDeleteFn not configured")
	}
	return m.softDeleteFn(ctx, id)
}

var kolkata = time.FixedZone("IST", 5*3600+30*60)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func superAdmin() auth.AdminCredentials {
	return auth.AdminCredentials{ID: uuid.NewString(), Username: "root"}
}

func plantAdmin(plant string) auth.AdminCredentials {
	return auth.AdminCredentials{ID: uuid.NewString(), Username: "gatehouse", Plant: &plant}
}

func registerInput() RegisterInput {
	return RegisterInput{
		Name:       "Asha Patel",
		Gender:     "Female",
		Mobile:     "9876501234",
		Address:    "12 Mill Road",
		Company:    "Acme Fabrication",
		Host:       "R. Iyer",
		Plant:      "Forging Division",
		NationalID: "4321-8765-2109",
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "someone@example.com"})
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	for _, field := range []string{"name", "gender", "mobile", "address", "company", "host", "nationalId"} {
		require.Contains(t, validationErr.Fields, field)
	}
}

func TestRegisterCounterStrategy(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, kolkata)
	repository := &mockRepository{}
	repository.nextSequenceFn = func(ctx context.Context, dateKey string) (int64, error) {
		require.Equal(t, "29082026", dateKey)
		return 7, nil
	}
	repository.insertFn = func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
		require.Equal(t, "VMS-29082026-0007", params.BatchNo)
		require.NotEqual(t, uuid.Nil, params.VisitorID)
		require.Equal(t, "Asha Patel", params.Name)
		return persistence.Visitor{VisitorID: params.VisitorID, BatchNo: params.BatchNo, Status: "PENDING"}, nil
	}

	svc := New(repository, Config{Location: kolkata, Now: fixedClock(now)})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.Equal(t, "VMS-29082026-0007", visitor.BatchNo)
	require.Equal(t, StatusPending, visitor.Status)
}

func TestRegisterDateKeyUsesLocation(t *testing.T) {
	t.Parallel()

	// 23:30 UTC is already the next day in Kolkata.
	now := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
	repository := &mockRepository{}
	repository.nextSequenceFn = func(ctx context.Context, dateKey string) (int64, error) {
		require.Equal(t, "30082026", dateKey)
		return 1, nil
	}
	repository.insertFn = func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: params.VisitorID, BatchNo: params.BatchNo, Status: "PENDING"}, nil
	}

	svc := New(repository, Config{Location: kolkata, Now: fixedClock(now)})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.Equal(t, "VMS-30082026-0001", visitor.BatchNo)
}

func TestRegisterBlacklistGate(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.blacklistLookupFn = func(ctx context.Context, mobile, nationalID string) (bool, error) {
		require.Equal(t, "9876543210", mobile)
		return true, nil
	}

	svc := New(repository, Config{})

	input := registerInput()
	input.Mobile = "9876543210"
	_, err := svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrBlacklisted)
}

func TestRegisterDeriveStrategyRetriesOnCollision(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 9, 0, 0, 0, kolkata)
	last := "VMS-29082026-0041"
	inserts := 0
	var slept []time.Duration

	repository := &mockRepository{}
	repository.lastBatchFn = func(ctx context.Context, prefix string) (string, error) {
		require.Equal(t, "VMS-29082026", prefix)
		return last, nil
	}
	repository.insertFn = func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
		inserts++
		if inserts == 1 {
			// A concurrent registration claimed 0042 first.
			require.Equal(t, "VMS-29082026-0042", params.BatchNo)
			last = "VMS-29082026-0042"
			return persistence.Visitor{}, persistence.ErrBatchNumberTaken
		}
		require.Equal(t, "VMS-29082026-0043", params.BatchNo)
		return persistence.Visitor{VisitorID: params.VisitorID, BatchNo: params.BatchNo, Status: "PENDING"}, nil
	}

	svc := New(repository, Config{
		Strategy: StrategyDerive,
		Location: kolkata,
		Now:      fixedClock(now),
		Sleep:    func(d time.Duration) { slept = append(slept, d) },
	})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.Equal(t, "VMS-29082026-0043", visitor.BatchNo)
	require.Equal(t, 2, inserts)
	require.Len(t, slept, 1)
}

func TestRegisterDeriveStrategyExhausts(t *testing.T) {
	t.Parallel()

	inserts := 0
	repository := &mockRepository{}
	repository.lastBatchFn = func(ctx context.Context, prefix string) (string, error) {
		return "", nil
	}
	repository.insertFn = func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
		inserts++
		return persistence.Visitor{}, persistence.ErrBatchNumberTaken
	}

	svc := New(repository, Config{
		Strategy: StrategyDerive,
		Sleep:    func(time.Duration) {},
	})

	_, err := svc.Register(context.Background(), registerInput())
	require.ErrorIs(t, err, ErrBatchExhausted)
	require.Equal(t, 5, inserts)
}

func TestRegisterConcurrentUniqueness(t *testing.T) {
	t.Parallel()

	const workers = 30
	memory := repo.NewMemoryRepository()
	now := time.Date(2026, 8, 29, 11, 0, 0, 0, kolkata)

	svc := New(memory, Config{
		Strategy: StrategyCounter,
		Location: kolkata,
		Now:      fixedClock(now),
	})

	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := registerInput()
			input.Mobile = fmt.Sprintf("98765%05d", i)
			input.NationalID = fmt.Sprintf("id-%d", i)
			visitor, err := svc.Register(context.Background(), input)
			results[i] = visitor.BatchNo
			errs[i] = err
		}(i)
	}
	wg.Wait()

	suffixes := make(map[string]struct{}, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Regexp(t, `^VMS-29082026-\d{4,}$`, results[i])
		_, dup := suffixes[results[i]]
		require.False(t, dup, "duplicate batch number %s", results[i])
		suffixes[results[i]] = struct{}{}
	}

	// The counter hands out a dense 1..N block.
	for i := 1; i <= workers; i++ {
		require.Contains(t, suffixes, fmt.Sprintf("VMS-29082026-%04d", i))
	}
}

func TestRegisterSequenceResetsAcrossDates(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	current := time.Date(2026, 8, 29, 18, 0, 0, 0, kolkata)
	svc := New(memory, Config{
		Strategy: StrategyDerive,
		Location: kolkata,
		Now:      func() time.Time { return current },
		Sleep:    func(time.Duration) {},
	})

	first, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.Equal(t, "VMS-29082026-0001", first.BatchNo)

	input := registerInput()
	input.Mobile = "9876509999"
	second, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "VMS-29082026-0002", second.BatchNo)

	current = current.Add(24 * time.Hour)
	input.Mobile = "9876508888"
	third, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "VMS-30082026-0001", third.BatchNo)
}

func TestRegisterSuffixWidensPastFourDigits(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 9, 0, 0, 0, kolkata)
	repository := &mockRepository{}
	repository.lastBatchFn = func(ctx context.Context, prefix string) (string, error) {
		return "VMS-29082026-9999", nil
	}
	repository.insertFn = func(ctx context.Context, params persistence.CreateVisitorParams) (persistence.Visitor, error) {
		require.Equal(t, "VMS-29082026-10000", params.BatchNo)
		return persistence.Visitor{VisitorID: params.VisitorID, BatchNo: params.BatchNo, Status: "PENDING"}, nil
	}

	svc := New(repository, Config{Strategy: StrategyDerive, Location: kolkata, Now: fixedClock(now)})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.Equal(t, "VMS-29082026-10000", visitor.BatchNo)
}

func TestTransitionStatusStampsEntryTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 10, 15, 0, 0, kolkata)
	id := uuid.New()
	status := "PENDING"

	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, gotID uuid.UUID) (persistence.Visitor, error) {
		require.Equal(t, id, gotID)
		return persistence.Visitor{VisitorID: id, Plant: "Forging Division", Status: status}, nil
	}
	repository.updateStatusFn = func(ctx context.Context, gotID uuid.UUID, newStatus string, entryTime, exitTime *time.Time) error {
		require.Equal(t, "APPROVED", newStatus)
		require.NotNil(t, entryTime)
		require.True(t, entryTime.Equal(now))
		require.Nil(t, exitTime)
		status = newStatus
		return nil
	}

	svc := New(repository, Config{Location: kolkata, Now: fixedClock(now)})

	visitor, err := svc.TransitionStatus(context.Background(), plantAdmin("Forging Division"), id, StatusApproved)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, visitor.Status)
}

func TestTransitionStatusStampsExitTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 17, 45, 0, 0, kolkata)
	id := uuid.New()
	status := "APPROVED"

	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, _ uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Forging Division", Status: status}, nil
	}
	repository.updateStatusFn = func(ctx context.Context, gotID uuid.UUID, newStatus string, entryTime, exitTime *time.Time) error {
		require.Equal(t, "EXITED", newStatus)
		require.Nil(t, entryTime)
		require.NotNil(t, exitTime)
		require.True(t, exitTime.Equal(now))
		status = newStatus
		return nil
	}

	svc := New(repository, Config{Location: kolkata, Now: fixedClock(now)})

	visitor, err := svc.TransitionStatus(context.Background(), superAdmin(), id, StatusExited)
	require.NoError(t, err)
	require.Equal(t, StatusExited, visitor.Status)
}

func TestTransitionStatusRejectsInvalidMoves(t *testing.T) {
	t.Parallel()

	cases := []struct {
		current string
		target  Status
	}{
		{"PENDING", StatusExited},
		{"PENDING", StatusPending},
		{"APPROVED", StatusApproved},
		{"APPROVED", StatusRejected},
		{"APPROVED", StatusPending},
		{"REJECTED", StatusApproved},
		{"REJECTED", StatusExited},
		{"EXITED", StatusApproved},
		{"EXITED", StatusExited},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.current+"_to_"+string(tc.target), func(t *testing.T) {
			t.Parallel()

			repository := &mockRepository{}
			repository.getFn = func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
				return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Status: tc.current}, nil
			}

			svc := New(repository, Config{})
			_, err := svc.TransitionStatus(context.Background(), superAdmin(), uuid.New(), tc.target)
			require.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTransitionStatusLegacyVisitedActsAsApproved(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	status := "VISITED"
	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, _ uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Status: status}, nil
	}
	repository.updateStatusFn = func(ctx context.Context, gotID uuid.UUID, newStatus string, entryTime, exitTime *time.Time) error {
		require.Equal(t, "EXITED", newStatus)
		status = newStatus
		return nil
	}

	svc := New(repository, Config{})

	visitor, err := svc.TransitionStatus(context.Background(), superAdmin(), id, StatusExited)
	require.NoError(t, err)
	require.Equal(t, StatusExited, visitor.Status)
}

func TestTransitionStatusScopeCheckedBeforeValidity(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
		// Already terminal; an out-of-scope admin must still see a
		// permission error, not an invalid-transition one.
		return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Status: "EXITED"}, nil
	}

	svc := New(repository, Config{})

	_, err := svc.TransitionStatus(context.Background(), plantAdmin("Forging Division"), uuid.New(), StatusExited)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGetScoping(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Wire Plant", Status: "PENDING"}, nil
	}

	svc := New(repository, Config{})

	// The Seamsless Division group covers Wire Plant.
	_, err := svc.Get(context.Background(), plantAdmin("Seamsless Division"), uuid.New())
	require.NoError(t, err)

	// The grouping is one-directional.
	wireRepo := &mockRepository{}
	wireRepo.getFn = func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Seamsless Division", Status: "PENDING"}, nil
	}
	wireSvc := New(wireRepo, Config{})
	_, err = wireSvc.Get(context.Background(), plantAdmin("Wire Plant"), uuid.New())
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Get(context.Background(), plantAdmin("Forging Division"), uuid.New())
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Get(context.Background(), superAdmin(), uuid.New())
	require.NoError(t, err)
}

func TestListScopedAdminRestrictedToGroup(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.listFn = func(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error) {
		require.ElementsMatch(t, []string{"Seamsless Division", "Wire Plant"}, params.Plants)
		return nil, nil
	}

	svc := New(repository, Config{})

	_, err := svc.List(context.Background(), plantAdmin("Seamsless Division"), ListOptions{})
	require.NoError(t, err)
}

func TestListSuperAdminUnrestricted(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.listFn = func(ctx context.Context, params persistence.ListVisitorsParams) ([]persistence.Visitor, error) {
		require.Empty(t, params.Plants)
		require.NotNil(t, params.Status)
		require.Equal(t, "PENDING", *params.Status)
		return []persistence.Visitor{{VisitorID: uuid.New(), Status: "PENDING"}}, nil
	}

	svc := New(repository, Config{})

	pending := StatusPending
	visitors, err := svc.List(context.Background(), superAdmin(), ListOptions{Status: &pending})
	require.NoError(t, err)
	require.Len(t, visitors, 1)
}

func TestSearchByIdentityRequiresQuery(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{})

	_, err := svc.SearchByIdentity(context.Background(), "", "")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "query")
}

func TestUpdateDetailsValidation(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, id uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Status: "PENDING"}, nil
	}

	svc := New(repository, Config{})

	_, err := svc.UpdateDetails(context.Background(), superAdmin(), uuid.New(), UpdateInput{})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "payload")

	empty := "   "
	_, err = svc.UpdateDetails(context.Background(), superAdmin(), uuid.New(), UpdateInput{Name: &empty})
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "name")
}

func TestUpdateDetailsSuccess(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repository := &mockRepository{}
	repository.getFn = func(ctx context.Context, _ uuid.UUID) (persistence.Visitor, error) {
		return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Status: "PENDING"}, nil
	}
	repository.updateDetailsFn = func(ctx context.Context, gotID uuid.UUID, params persistence.UpdateVisitorParams) (persistence.Visitor, error) {
		require.Equal(t, id, gotID)
		require.NotNil(t, params.Host)
		require.Equal(t, "S. Rao", *params.Host)
		return persistence.Visitor{VisitorID: id, Plant: "Main Plant", Host: *params.Host, Status: "PENDING"}, nil
	}

	svc := New(repository, Config{})

	host := " S. Rao "
	updated, err := svc.UpdateDetails(context.Background(), superAdmin(), id, UpdateInput{Host: &host})
	require.NoError(t, err)
	require.Equal(t, "S. Rao", updated.Host)
}

func TestBlacklistRequiresSuperAdmin(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{}, Config{})

	err := svc.SetBlacklisted(context.Background(), plantAdmin("Main Plant"), uuid.New(), true)
	require.ErrorIs(t, err, ErrPermissionDenied)

	err = svc.SoftDelete(context.Background(), plantAdmin("Main Plant"), uuid.New())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSoftDeleteFlow(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	svc := New(memory, Config{Location: kolkata, Now: fixedClock(time.Date(2026, 8, 29, 12, 0, 0, 0, kolkata))})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), superAdmin(), visitor.ID))

	_, err = svc.Get(context.Background(), superAdmin(), visitor.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SearchByIdentity(context.Background(), visitor.Mobile, "")
	require.ErrorIs(t, err, ErrNotFound)

	// Reg after soft delete reuses neither the row nor the batch number.
	input := registerInput()
	next, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.NotEqual(t, visitor.BatchNo, next.BatchNo)

	require.ErrorIs(t, svc.SoftDelete(context.Background(), superAdmin(), visitor.ID), ErrNotFound)
}

func TestBlacklistGateEndToEnd(t *testing.T) {
	t.Parallel()

	memory := repo.NewMemoryRepository()
	svc := New(memory, Config{Location: kolkata, Now: fixedClock(time.Date(2026, 8, 29, 12, 0, 0, 0, kolkata))})

	visitor, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, svc.SetBlacklisted(context.Background(), superAdmin(), visitor.ID, true))

	// Same mobile, different national ID: still blocked.
	input := registerInput()
	input.NationalID = "other-id"
	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrBlacklisted)

	// Same national ID, different mobile: still blocked.
	input = registerInput()
	input.Mobile = "9999999999"
	_, err = svc.Register(context.Background(), input)
	require.ErrorIs(t, err, ErrBlacklisted)

	// Unblacklisting reopens registration.
	require.NoError(t, svc.SetBlacklisted(context.Background(), superAdmin(), visitor.ID, false))
	input = registerInput()
	input.Mobile = "9999999998"
	input.NationalID = "fresh-id"
	_, err = svc.Register(context.Background(), input)
	require.NoError(t, err)
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseStatus(" approved ")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, status)

	_, err = ParseStatus("VISITED")
	require.Error(t, err)

	_, err = ParseStatus("bogus")
	require.Error(t, err)
}
