package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const VisitorsTable = "visitors"

// batchNoConstraint is the unique constraint backing batch-number correctness.
// It is the sole arbiter under concurrent registration.
const batchNoConstraint = "visitors_batch_no_unique"

// Visitor represents a row in the visitors table.
type Visitor struct {
	VisitorID       uuid.UUID  `db:"visitor_id" json:"visitorId"`
	BatchNo         string     `db:"batch_no" json:"batchNo"`
	Name            string     `db:"name" json:"name"`
	Gender          string     `db:"gender" json:"gender"`
	Mobile          string     `db:"mobile" json:"mobile"`
	Email           string     `db:"email" json:"email"`
	Address         string     `db:"address" json:"address"`
	VisitDate       *time.Time `db:"visit_date" json:"visitDate"`
	VisitTime       string     `db:"visit_time" json:"visitTime"`
	Duration        string     `db:"duration" json:"duration"`
	Company         string     `db:"company" json:"company"`
	Host            string     `db:"host" json:"host"`
	Purpose         string     `db:"purpose" json:"purpose"`
	Plant           string     `db:"plant" json:"plant"`
	Assets          string     `db:"assets" json:"assets"`
	SafetyEquipment string     `db:"safety_equipment" json:"safetyEquipment"`
	VisitorCardNo   string     `db:"visitor_card_no" json:"visitorCardNo"`
	NationalID      string     `db:"national_id" json:"nationalId"`
	PhotoPath       string     `db:"photo_path" json:"photoPath"`
	Status          string     `db:"status" json:"status"`
	IsBlacklisted   bool       `db:"is_blacklisted" json:"isBlacklisted"`
	IsDeleted       bool       `db:"is_deleted" json:"isDeleted"`
	EntryTime       *time.Time `db:"entry_time" json:"entryTime"`
	ExitTime        *time.Time `db:"exit_time" json:"exitTime"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

var (
	// ErrVisitorNotFound indicates a missing (or soft-deleted) visitor record.
	ErrVisitorNotFound = errors.New("visitor not found")
	// ErrBatchNumberTaken indicates the batch number lost a race with a concurrent insert.
	ErrBatchNumberTaken = errors.New("batch number already taken")
	// ErrVisitorConflict indicates a uniqueness violation other than the batch number.
	ErrVisitorConflict = errors.New("visitor conflict")
)

// VisitorStore exposes persistence helpers for the visitors table.
type VisitorStore struct {
	pool *pgxpool.Pool
}

// NewVisitorStore returns a store instance bound to the shared pool.
func NewVisitorStore(pool *pgxpool.Pool) (*VisitorStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &VisitorStore{pool: pool}, nil
}

const visitorColumns = `visitor_id, batch_no, name, gender, mobile, email, address,
        visit_date, visit_time, duration, company, host, purpose, plant, assets,
        safety_equipment, visitor_card_no, national_id, photo_path, status,
        is_blacklisted, is_deleted, entry_time, exit_time, created_at`

// CreateVisitorParams captures the fields required to insert a new visitor record.
// Status, flags and timestamps are fixed at insert: PENDING, not blacklisted,
// not deleted, no entry/exit time.
type CreateVisitorParams struct {
	VisitorID       uuid.UUID
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
}

// CreateVisitor inserts a new visitor and returns the persisted record.
// A unique violation on the batch number column maps to ErrBatchNumberTaken so
// callers can re-derive the sequence and retry.
func (s *VisitorStore) CreateVisitor(ctx context.Context, params CreateVisitorParams) (Visitor, error) {
	if params.VisitorID == uuid.Nil {
		return Visitor{}, errors.New("visitor id is required")
	}
	if strings.TrimSpace(params.BatchNo) == "" {
		return Visitor{}, errors.New("batch number is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (
            visitor_id, batch_no, name, gender, mobile, email, address,
            visit_date, visit_time, duration, company, host, purpose, plant, assets,
            safety_equipment, visitor_card_no, national_id, photo_path, status
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 'PENDING')
        RETURNING `+visitorColumns+`
    `, VisitorsTable),
		params.VisitorID,
		params.BatchNo,
		strings.TrimSpace(params.Name),
		params.Gender,
		strings.TrimSpace(params.Mobile),
		strings.TrimSpace(params.Email),
		params.Address,
		params.VisitDate,
		params.VisitTime,
		params.Duration,
		params.Company,
		params.Host,
		params.Purpose,
		params.Plant,
		params.Assets,
		params.SafetyEquipment,
		params.VisitorCardNo,
		strings.TrimSpace(params.NationalID),
		params.PhotoPath,
	)

	visitor, err := scanVisitor(row)
	if err != nil {
		if isUniqueViolation(err, batchNoConstraint) {
			return Visitor{}, ErrBatchNumberTaken
		}
		if isUniqueViolation(err, "") {
			return Visitor{}, ErrVisitorConflict
		}
		return Visitor{}, fmt.Errorf("insert visitor: %w", err)
	}

	return visitor, nil
}

// LastBatchNumberForPrefix returns the highest batch number carrying the given
// date prefix, or "" when the prefix is unused. Suffixes are zero-padded to a
// minimum width and widen past 9999, so (length, lexicographic) ordering equals
// numeric suffix ordering for a fixed prefix.
func (s *VisitorStore) LastBatchNumberForPrefix(ctx context.Context, prefix string) (string, error) {
	var batchNo string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT batch_no FROM %s
        WHERE batch_no LIKE $1
        ORDER BY LENGTH(batch_no) DESC, batch_no DESC
        LIMIT 1
    `, VisitorsTable), prefix+"-%").Scan(&batchNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("last batch number: %w", err)
	}
	return batchNo, nil
}

// GetVisitor returns a single non-deleted visitor by identifier.
func (s *VisitorStore) GetVisitor(ctx context.Context, id uuid.UUID) (Visitor, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT `+visitorColumns+`
        FROM %s WHERE visitor_id = $1 AND NOT is_deleted
    `, VisitorsTable), id)

	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Visitor{}, ErrVisitorNotFound
		}
		return Visitor{}, fmt.Errorf("get visitor: %w", err)
	}
	return visitor, nil
}

// GetVisitorIncludingDeleted looks a row up regardless of the soft-delete flag.
// Reserved for audit tooling; API reads go through GetVisitor.
func (s *VisitorStore) GetVisitorIncludingDeleted(ctx context.Context, id uuid.UUID) (Visitor, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT `+visitorColumns+`
        FROM %s WHERE visitor_id = $1
    `, VisitorsTable), id)

	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Visitor{}, ErrVisitorNotFound
		}
		return Visitor{}, fmt.Errorf("get visitor: %w", err)
	}
	return visitor, nil
}

// ListVisitorsParams captures filters for ListVisitors. An empty Plants slice
// means no plant restriction (super admin); a non-empty slice restricts rows
// to those plants.
type ListVisitorsParams struct {
	Status    *string
	VisitDate *time.Time
	Search    *string
	FromDate  *time.Time
	ToDate    *time.Time
	Plants    []string
	Limit     int
}

// ListVisitors returns non-deleted visitors matching the filters, newest first.
func (s *VisitorStore) ListVisitors(ctx context.Context, params ListVisitorsParams) ([]Visitor, error) {
	whereParts := []string{"NOT is_deleted"}
	var args []any

	if params.Status != nil && *params.Status != "" {
		args = append(args, *params.Status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(*params.Search)+"%")
		n := len(args)
		whereParts = append(whereParts, fmt.Sprintf("(name ILIKE $%d OR mobile ILIKE $%d OR company ILIKE $%d)", n, n, n))
	} else if params.VisitDate != nil {
		args = append(args, *params.VisitDate)
		whereParts = append(whereParts, fmt.Sprintf("visit_date = $%d", len(args)))
	}
	if params.FromDate != nil {
		args = append(args, *params.FromDate)
		whereParts = append(whereParts, fmt.Sprintf("visit_date >= $%d", len(args)))
	}
	if params.ToDate != nil {
		args = append(args, *params.ToDate)
		whereParts = append(whereParts, fmt.Sprintf("visit_date <= $%d", len(args)))
	}
	if len(params.Plants) > 0 {
		args = append(args, params.Plants)
		whereParts = append(whereParts, fmt.Sprintf("plant = ANY($%d)", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT `+visitorColumns+`
        FROM %s
        WHERE %s
        ORDER BY created_at DESC
    `, VisitorsTable, strings.Join(whereParts, " AND "))

	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	visitors := make([]Visitor, 0)
	for rows.Next() {
		visitor, scanErr := scanVisitor(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan visitor: %w", scanErr)
		}
		visitors = append(visitors, visitor)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visitors: %w", err)
	}

	return visitors, nil
}

// SearchVisitorByIdentity returns the latest non-deleted row matching the
// mobile number or national ID. Used by the public returning-visitor lookup.
func (s *VisitorStore) SearchVisitorByIdentity(ctx context.Context, mobile, nationalID string) (Visitor, error) {
	whereParts := []string{"NOT is_deleted"}
	var args []any

	switch {
	case strings.TrimSpace(mobile) != "":
		args = append(args, strings.TrimSpace(mobile))
		whereParts = append(whereParts, fmt.Sprintf("mobile = $%d", len(args)))
	case strings.TrimSpace(nationalID) != "":
		args = append(args, strings.TrimSpace(nationalID))
		whereParts = append(whereParts, fmt.Sprintf("national_id = $%d", len(args)))
	default:
		return Visitor{}, errors.New("mobile or national id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT `+visitorColumns+`
        FROM %s
        WHERE %s
        ORDER BY created_at DESC
        LIMIT 1
    `, VisitorsTable, strings.Join(whereParts, " AND ")), args...)

	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Visitor{}, ErrVisitorNotFound
		}
		return Visitor{}, fmt.Errorf("search visitor: %w", err)
	}
	return visitor, nil
}

// HasBlacklistedIdentity reports whether any non-deleted row flagged
// blacklisted carries the given mobile number or national ID.
func (s *VisitorStore) HasBlacklistedIdentity(ctx context.Context, mobile, nationalID string) (bool, error) {
	mobile = strings.TrimSpace(mobile)
	nationalID = strings.TrimSpace(nationalID)
	if mobile == "" && nationalID == "" {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT EXISTS (
            SELECT 1 FROM %s
            WHERE is_blacklisted AND NOT is_deleted
              AND ((mobile <> '' AND mobile = $1) OR (national_id <> '' AND national_id = $2))
        )
    `, VisitorsTable), mobile, nationalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return exists, nil
}

// UpdateVisitorStatus sets the status and the applicable timestamp, leaving
// every other column untouched. Timestamps are only written when non-nil.
func (s *VisitorStore) UpdateVisitorStatus(ctx context.Context, id uuid.UUID, status string, entryTime, exitTime *time.Time) error {
	setParts := []string{"status = $1"}
	args := []any{status}

	if entryTime != nil {
		args = append(args, *entryTime)
		setParts = append(setParts, fmt.Sprintf("entry_time = $%d", len(args)))
	}
	if exitTime != nil {
		args = append(args, *exitTime)
		setParts = append(setParts, fmt.Sprintf("exit_time = $%d", len(args)))
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET %s WHERE visitor_id = $%d AND NOT is_deleted
    `, VisitorsTable, strings.Join(setParts, ", "), len(args)), args...)
	if err != nil {
		return fmt.Errorf("update visitor status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitorNotFound
	}
	return nil
}

// UpdateVisitorParams represents admin-editable descriptive fields. Batch
// number, status, flags and timestamps are deliberately absent.
type UpdateVisitorParams struct {
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

// UpdateVisitorDetails applies the provided descriptive fields and returns the
// updated record.
func (s *VisitorStore) UpdateVisitorDetails(ctx context.Context, id uuid.UUID, params UpdateVisitorParams) (Visitor, error) {
	setParts := []string{}
	var args []any

	appendSet := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}

	appendSet("name", params.Name)
	appendSet("gender", params.Gender)
	appendSet("mobile", params.Mobile)
	appendSet("email", params.Email)
	appendSet("address", params.Address)
	appendSet("company", params.Company)
	appendSet("host", params.Host)
	appendSet("purpose", params.Purpose)
	appendSet("plant", params.Plant)
	appendSet("assets", params.Assets)
	appendSet("safety_equipment", params.SafetyEquipment)
	appendSet("visitor_card_no", params.VisitorCardNo)
	appendSet("national_id", params.NationalID)

	if len(setParts) == 0 {
		return Visitor{}, errors.New("no fields to update")
	}

	args = append(args, id)
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET %s
        WHERE visitor_id = $%d AND NOT is_deleted
        RETURNING `+visitorColumns+`
    `, VisitorsTable, strings.Join(setParts, ", "), len(args)), args...)

	visitor, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Visitor{}, ErrVisitorNotFound
		}
		return Visitor{}, fmt.Errorf("update visitor details: %w", err)
	}
	return visitor, nil
}

// SetVisitorBlacklisted toggles the blacklist flag independent of status.
func (s *VisitorStore) SetVisitorBlacklisted(ctx context.Context, id uuid.UUID, blacklisted bool) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_blacklisted = $1 WHERE visitor_id = $2 AND NOT is_deleted
    `, VisitorsTable), blacklisted, id)
	if err != nil {
		return fmt.Errorf("set blacklist flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitorNotFound
	}
	return nil
}

// SoftDeleteVisitor hides the row from reads without removing it. The batch
// number stays reserved forever.
func (s *VisitorStore) SoftDeleteVisitor(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_deleted = TRUE WHERE visitor_id = $1 AND NOT is_deleted
    `, VisitorsTable), id)
	if err != nil {
		return fmt.Errorf("soft delete visitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitorNotFound
	}
	return nil
}

func scanVisitor(row pgx.Row) (Visitor, error) {
	var v Visitor
	if err := row.Scan(
		&v.VisitorID,
		&v.BatchNo,
		&v.Name,
		&v.Gender,
		&v.Mobile,
		&v.Email,
		&v.Address,
		&v.VisitDate,
		&v.VisitTime,
		&v.Duration,
		&v.Company,
		&v.Host,
		&v.Purpose,
		&v.Plant,
		&v.Assets,
		&v.SafetyEquipment,
		&v.VisitorCardNo,
		&v.NationalID,
		&v.PhotoPath,
		&v.Status,
		&v.IsBlacklisted,
		&v.IsDeleted,
		&v.EntryTime,
		&v.ExitTime,
		&v.CreatedAt,
	); err != nil {
		return Visitor{}, err
	}
	return v, nil
}
