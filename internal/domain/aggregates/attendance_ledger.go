package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

var AttendanceLedgerContract = Contract{
	Name:        "Attendance.LedgerAggregate",
	TxOwnership: TxOwnedByAggregate,
	ReadPolicy:  ReadsThroughAggregate,
	NaturalKey:  []string{"date", "student_id"},
	Notes: "Owns the one-fact-per-student-per-day invariant. Writes are single conditional " +
		"statements on the natural key; statistics scan facts through Iterate and grouped counts.",
}

// AttendanceLedger is the authoritative store of attendance facts.
//
// Write failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type AttendanceLedger interface {
	Aggregate

	// Upsert writes the fact for (StudentID, Date), overwriting status, note, marker,
	// holiday flag and mark time when one exists. The surviving ID is returned.
	Upsert(ctx context.Context, in UpsertFactInput) (*attendance.Fact, error)

	// InsertIfAbsent creates the fact only when no fact exists for the natural key.
	InsertIfAbsent(ctx context.Context, in UpsertFactInput) (bool, error)

	// Replace atomically removes factID and writes in. With preserveID and an unchanged
	// natural key the row is updated in place instead.
	Replace(ctx context.Context, factID uuid.UUID, in UpsertFactInput, preserveID bool) (ReplaceFactResult, error)

	// Delete removes a fact by ID, returning the deleted fact. Missing IDs are CodeNotFound.
	Delete(ctx context.Context, factID uuid.UUID) (*attendance.Fact, error)

	GetByID(ctx context.Context, factID uuid.UUID) (*attendance.Fact, error)
	Get(ctx context.Context, studentID uuid.UUID, date time.Time) (*attendance.Fact, error)
	Exists(ctx context.Context, studentID uuid.UUID, date time.Time) (bool, error)
	Query(ctx context.Context, f attendance.FactFilter) ([]*attendance.Fact, error)
	Page(ctx context.Context, f attendance.FactFilter) (attendance.Page, error)
	Iterate(ctx context.Context, f attendance.FactFilter, batchSize int, fn func(batch []*attendance.Fact) error) error

	// CountByClassAndStatus groups a school's facts for one date by class and status.
	CountByClassAndStatus(ctx context.Context, schoolID uuid.UUID, date time.Time) ([]attendance.ClassStatusCount, error)
}

type UpsertFactInput struct {
	StudentID uuid.UUID
	Date      time.Time
	Status    attendance.Status
	Note      string
	MarkedBy  *uuid.UUID
	IsHoliday bool
	MarkedAt  time.Time
}

type ReplaceFactResult struct {
	Previous *attendance.Fact
	Current  *attendance.Fact
}
