package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/koclink/coachsync/internal/models"
)

const pendingColumns = `id, student_id, teacher_id, student_name, student_school, status, created_at, responded_at`

// PendingRequestRepository manages the local mirror of connection requests.
type PendingRequestRepository struct {
	db *sqlx.DB
}

// NewPendingRequestRepository constructs a PendingRequestRepository.
func NewPendingRequestRepository(db *sqlx.DB) *PendingRequestRepository {
	return &PendingRequestRepository{db: db}
}

// ReplacePending swaps the scope's pending list for the latest remote
// snapshot in one transaction. The listener always delivers full snapshots,
// not increments.
func (r *PendingRequestRepository) ReplacePending(ctx context.Context, teacherID string, requests []models.PendingRequest) error {
	return RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM pending_requests WHERE teacher_id = $1 AND status = $2",
			teacherID, models.StatusPending); err != nil {
			return fmt.Errorf("clear pending requests: %w", err)
		}
		const query = `INSERT INTO pending_requests (id, student_id, teacher_id, student_name, student_school, status, created_at, responded_at)
            VALUES (:id, :student_id, :teacher_id, :student_name, :student_school, :status, :created_at, :responded_at)
            ON CONFLICT (id) DO UPDATE SET
                status = EXCLUDED.status,
                responded_at = EXCLUDED.responded_at`
		for i := range requests {
			if _, err := tx.NamedExecContext(ctx, query, &requests[i]); err != nil {
				return fmt.Errorf("insert pending request %s: %w", requests[i].ID, err)
			}
		}
		return nil
	})
}

// ListPending returns unresolved requests for the scope, newest first.
func (r *PendingRequestRepository) ListPending(ctx context.Context, teacherID string) ([]models.PendingRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM pending_requests WHERE teacher_id = $1 AND status = $2 ORDER BY created_at DESC", pendingColumns)
	var requests []models.PendingRequest
	if err := r.db.SelectContext(ctx, &requests, query, teacherID, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// FindByID fetches a request by identifier.
func (r *PendingRequestRepository) FindByID(ctx context.Context, id string) (*models.PendingRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM pending_requests WHERE id = $1", pendingColumns)
	var request models.PendingRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateStatus resolves a request locally. Resolved requests drop out of the
// pending view but are kept.
func (r *PendingRequestRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE pending_requests SET status = $2, responded_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update pending request status: %w", err)
	}
	return nil
}
