package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steelworks-digital/vms-server/domains/visitors/be/repo"
	"github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/batch"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
	"github.com/steelworks-digital/vms-server/platform/go/plantscope"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound          = errors.New("visitor not found")
	ErrConflict          = errors.New("visitor conflict")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBlacklisted       = errors.New("identity is blacklisted")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBatchExhausted    = errors.New("batch number allocation exhausted")
)

// Status enumerates the visitor lifecycle states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExited   Status = "EXITED"

	// statusVisited is a legacy stored synonym of APPROVED. It is accepted on
	// read but never produced, and is not a valid transition target.
	statusVisited Status = "VISITED"
)

// ParseStatus validates a transition target supplied by a client.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusExited:
		return StatusExited, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// BatchStrategy selects how the daily sequence is allocated.
type BatchStrategy string

const (
	// StrategyCounter allocates sequences from an atomic per-date counter row.
	StrategyCounter BatchStrategy = "counter"
	// StrategyDerive recomputes the next sequence from the highest stored
	// number and retries on unique-violation. Kept for counterless deployments.
	StrategyDerive BatchStrategy = "derive"
)

const (
	maxBatchAttempts = 5
	backoffStep      = 25 * time.Millisecond
)

// Visitor represents the domain view of a visitor record.
type Visitor struct {
	ID              uuid.UUID
	BatchNo         string
	Name            string
	Gender          string
	Mobile          string
	Email           string
	Address         string
	VisitDate       *time.Time
	VisitTime       string
	Duration        string
	Company         string
	Host            string
	Purpose         string
	Plant           string
	Assets          string
	SafetyEquipment string
	VisitorCardNo   string
	NationalID      string
	PhotoPath       string
	Status          Status
	IsBlacklisted   bool
	IsDeleted       bool
	EntryTime       *time.Time
	ExitTime        *time.Time
	CreatedAt       time.Time
}

// RegisterInput represents a public registration payload.
type RegisterInput struct {
	Name            string
	Gender          string
	Mobile          string
	Email           string
	Address         string
	VisitDate       *time.Time
	VisitTime       string
	Duration        string
	Company         string
	Host            string
	Purpose         string
	Plant           string
	Assets          string
	SafetyEquipment string
	VisitorCardNo   string
	NationalID      string
	PhotoPath       string
}

// UpdateInput encapsulates descriptive fields an administrator may correct.
// Batch number, status, flags and timestamps are not editable here.
type UpdateInput struct {
	Name            *string
	Gender          *string
	Mobile          *string
	Email           *string
	Address         *string
	Company         *string
	Host            *string
	Purpose         *string
	Plant           *string
	Assets          *string
	SafetyEquipment *string
	VisitorCardNo   *string
	NationalID      *string
}

// ListOptions captures admin list filters. The plant restriction is derived
// from the acting admin, never from the request.
type ListOptions struct {
	Status    *Status
	VisitDate *time.Time
	Search    *string
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
}

// Service defines the business operations for the visitors domain.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (Visitor, error)
	SearchByIdentity(ctx context.Context, mobile, nationalID string) (Visitor, error)
	List(ctx context.Context, actor auth.AdminCredentials, opts ListOptions) ([]Visitor, error)
	Get(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID) (Visitor, error)
	TransitionStatus(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, target Status) (Visitor, error)
	UpdateDetails(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, input UpdateInput) (Visitor, error)
	SetBlacklisted(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, blacklisted bool) error
	SoftDelete(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID) error
}

// Config carries the service dependencies beyond the repository.
type Config struct {
	Plants   *plantscope.Resolver
	Strategy BatchStrategy
	Location *time.Location
	// Now and Sleep are injectable for deterministic tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

type service struct {
	repo     repo.Repository
	plants   *plantscope.Resolver
	strategy BatchStrategy
	location *time.Location
	now      func() time.Time
	sleep    func(time.Duration)
}

// New constructs a visitors Service instance backed by the provided repository.
func New(r repo.Repository, cfg Config) Service {
	if r == nil {
		panic("visitors repository is required")
	}
	svc := &service{
		repo:     r,
		plants:   cfg.Plants,
		strategy: cfg.Strategy,
		location: cfg.Location,
		now:      cfg.Now,
		sleep:    cfg.Sleep,
	}
	if svc.plants == nil {
		svc.plants = plantscope.Default()
	}
	if svc.strategy == "" {
		svc.strategy = StrategyCounter
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.sleep == nil {
		svc.sleep = time.Sleep
	}
	return svc
}

func (s *service) Register(ctx context.Context, input RegisterInput) (Visitor, error) {
	fieldErrors := FieldErrors{}

	requireField := func(field, value string) string {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			fieldErrors.add(field, field+" is required")
		}
		return trimmed
	}

	name := requireField("name", input.Name)
	gender := requireField("gender", input.Gender)
	mobile := requireField("mobile", input.Mobile)
	address := requireField("address", input.Address)
	company := requireField("company", input.Company)
	host := requireField("host", input.Host)
	nationalID := requireField("nationalId", input.NationalID)

	if len(fieldErrors) > 0 {
		return Visitor{}, &ValidationError{Fields: fieldErrors}
	}

	blacklisted, err := s.repo.HasBlacklistedIdentity(ctx, mobile, nationalID)
	if err != nil {
		return Visitor{}, err
	}
	if blacklisted {
		return Visitor{}, ErrBlacklisted
	}

	params := persistence.CreateVisitorParams{
		Name:            name,
		Gender:          gender,
		Mobile:          mobile,
		Email:           strings.TrimSpace(input.Email),
		Address:         address,
		VisitDate:       input.VisitDate,
		VisitTime:       strings.TrimSpace(input.VisitTime),
		Duration:        strings.TrimSpace(input.Duration),
		Company:         company,
		Host:            host,
		Purpose:         strings.TrimSpace(input.Purpose),
		Plant:           strings.TrimSpace(input.Plant),
		Assets:          strings.TrimSpace(input.Assets),
		SafetyEquipment: strings.TrimSpace(input.SafetyEquipment),
		VisitorCardNo:   strings.TrimSpace(input.VisitorCardNo),
		NationalID:      nationalID,
		PhotoPath:       input.PhotoPath,
	}

	return s.insertWithBatchNumber(ctx, params)
}

// insertWithBatchNumber allocates a daily batch number and inserts the row.
// The unique constraint on batch_no is the sole arbiter under concurrency:
// whichever strategy produced the candidate, a lost race surfaces as
// ErrBatchNumberTaken and the whole attempt (date key included) is redone.
func (s *service) insertWithBatchNumber(ctx context.Context, params persistence.CreateVisitorParams) (Visitor, error) {
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		dateKey := batch.DateKey(s.now(), s.location)

		var batchNo string
		switch s.strategy {
		case StrategyDerive:
			last, err := s.repo.LastBatchNumberForPrefix(ctx, batch.Prefix(dateKey))
			if err != nil {
				return Visitor{}, err
			}
			batchNo, err = batch.Next(dateKey, last)
			if err != nil {
				return Visitor{}, err
			}
		default:
			seq, err := s.repo.NextBatchSequence(ctx, dateKey)
			if err != nil {
				return Visitor{}, err
			}
			batchNo = batch.Format(dateKey, seq)
		}

		params.VisitorID = uuid.New()
		params.BatchNo = batchNo

		record, err := s.repo.Insert(ctx, params)
		if err == nil {
			return mapVisitor(record), nil
		}
		if errors.Is(err, persistence.ErrBatchNumberTaken) {
			s.sleep(time.Duration(attempt) * backoffStep)
			continue
		}
		return Visitor{}, mapPersistenceError(err)
	}

	return Visitor{}, ErrBatchExhausted
}

func (s *service) SearchByIdentity(ctx context.Context, mobile, nationalID string) (Visitor, error) {
	if strings.TrimSpace(mobile) == "" && strings.TrimSpace(nationalID) == "" {
		return Visitor{}, newValidationError(map[string]string{"query": "mobile or nationalId is required"})
	}

	record, err := s.repo.SearchByIdentity(ctx, mobile, nationalID)
	if err != nil {
		return Visitor{}, mapPersistenceError(err)
	}
	return mapVisitor(record), nil
}

func (s *service) List(ctx context.Context, actor auth.AdminCredentials, opts ListOptions) ([]Visitor, error) {
	params := persistence.ListVisitorsParams{
		VisitDate: opts.VisitDate,
		Search:    opts.Search,
		FromDate:  opts.FromDate,
		ToDate:    opts.ToDate,
		Limit:     opts.Limit,
	}
	if opts.Status != nil {
		status := string(*opts.Status)
		params.Status = &status
	}
	if !actor.IsSuperAdmin() {
		params.Plants = s.plants.Resolve(*actor.Plant)
	}

	records, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	visitors := make([]Visitor, 0, len(records))
	for _, record := range records {
		visitors = append(visitors, mapVisitor(record))
	}
	return visitors, nil
}

func (s *service) Get(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID) (Visitor, error) {
	if id == uuid.Nil {
		return Visitor{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Visitor{}, mapPersistenceError(err)
	}
	if !s.actorMayAccess(actor, record.Plant) {
		return Visitor{}, ErrPermissionDenied
	}
	return mapVisitor(record), nil
}

// TransitionStatus applies the lifecycle state machine. The scope check runs
// before transition validity so an out-of-scope admin learns nothing about
// the record's current state.
func (s *service) TransitionStatus(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, target Status) (Visitor, error) {
	if id == uuid.Nil {
		return Visitor{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Visitor{}, mapPersistenceError(err)
	}
	if !s.actorMayAccess(actor, record.Plant) {
		return Visitor{}, ErrPermissionDenied
	}

	current := normalizeStatus(Status(record.Status))
	if !transitionAllowed(current, target) {
		return Visitor{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, target)
	}

	var entryTime, exitTime *time.Time
	switch target {
	case StatusApproved:
		now := s.now().In(s.location)
		entryTime = &now
	case StatusExited:
		now := s.now().In(s.location)
		exitTime = &now
	}

	if err := s.repo.UpdateStatus(ctx, id, string(target), entryTime, exitTime); err != nil {
		return Visitor{}, mapPersistenceError(err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return Visitor{}, mapPersistenceError(err)
	}
	return mapVisitor(updated), nil
}

func (s *service) UpdateDetails(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, input UpdateInput) (Visitor, error) {
	if id == uuid.Nil {
		return Visitor{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Visitor{}, mapPersistenceError(err)
	}
	if !s.actorMayAccess(actor, record.Plant) {
		return Visitor{}, ErrPermissionDenied
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return Visitor{}, err
	}

	updated, repoErr := s.repo.UpdateDetails(ctx, id, params)
	if repoErr != nil {
		return Visitor{}, mapPersistenceError(repoErr)
	}
	return mapVisitor(updated), nil
}

func (s *service) SetBlacklisted(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID, blacklisted bool) error {
	if !actor.IsSuperAdmin() {
		return ErrPermissionDenied
	}
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.SetBlacklisted(ctx, id, blacklisted); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func (s *service) SoftDelete(ctx context.Context, actor auth.AdminCredentials, id uuid.UUID) error {
	if !actor.IsSuperAdmin() {
		return ErrPermissionDenied
	}
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func (s *service) actorMayAccess(actor auth.AdminCredentials, plant string) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	return s.plants.Allows(*actor.Plant, plant)
}

// transitionAllowed encodes the lifecycle: PENDING branches to APPROVED or
// REJECTED, APPROVED drains to EXITED, REJECTED and EXITED are terminal.
func transitionAllowed(current, target Status) bool {
	switch current {
	case StatusPending:
		return target == StatusApproved || target == StatusRejected
	case StatusApproved:
		return target == StatusExited
	default:
		return false
	}
}

// normalizeStatus folds the legacy VISITED marker into APPROVED for
// transition checks.
func normalizeStatus(status Status) Status {
	if status == statusVisited {
		return StatusApproved
	}
	return status
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateVisitorParams, error) {
	fieldErrors := FieldErrors{}
	params := persistence.UpdateVisitorParams{}
	fieldsSet := 0

	set := func(field string, value *string, target **string, allowEmpty bool) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" && !allowEmpty {
			fieldErrors.add(field, field+" cannot be empty")
			return
		}
		*target = &trimmed
		fieldsSet++
	}

	set("name", input.Name, &params.Name, false)
	set("gender", input.Gender, &params.Gender, false)
	set("mobile", input.Mobile, &params.Mobile, false)
	set("email", input.Email, &params.Email, true)
	set("address", input.Address, &params.Address, false)
	set("company", input.Company, &params.Company, false)
	set("host", input.Host, &params.Host, false)
	set("purpose", input.Purpose, &params.Purpose, true)
	set("plant", input.Plant, &params.Plant, false)
	set("assets", input.Assets, &params.Assets, true)
	set("safetyEquipment", input.SafetyEquipment, &params.SafetyEquipment, true)
	set("visitorCardNo", input.VisitorCardNo, &params.VisitorCardNo, true)
	set("nationalId", input.NationalID, &params.NationalID, false)

	if fieldsSet == 0 && len(fieldErrors) == 0 {
		fieldErrors.add("payload", "at least one field must be provided")
	}
	if len(fieldErrors) > 0 {
		return persistence.UpdateVisitorParams{}, &ValidationError{Fields: fieldErrors}
	}

	return params, nil
}

func mapVisitor(record persistence.Visitor) Visitor {
	return Visitor{
		ID:              record.VisitorID,
		BatchNo:         record.BatchNo,
		Name:            record.Name,
		Gender:          record.Gender,
		Mobile:          record.Mobile,
		Email:           record.Email,
		Address:         record.Address,
		VisitDate:       record.VisitDate,
		VisitTime:       record.VisitTime,
		Duration:        record.Duration,
		Company:         record.Company,
		Host:            record.Host,
		Purpose:         record.Purpose,
		Plant:           record.Plant,
		Assets:          record.Assets,
		SafetyEquipment: record.SafetyEquipment,
		VisitorCardNo:   record.VisitorCardNo,
		NationalID:      record.NationalID,
		PhotoPath:       record.PhotoPath,
		Status:          Status(record.Status),
		IsBlacklisted:   record.IsBlacklisted,
		IsDeleted:       record.IsDeleted,
		EntryTime:       record.EntryTime,
		ExitTime:        record.ExitTime,
		CreatedAt:       record.CreatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrVisitorNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrVisitorConflict):
		return ErrConflict
	default:
		return err
	}
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
