package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ecoride/carpool/internal/model"
)

const reviewColumns = `id, subject_id, author_id, ride_id, note, commentaire, status, valide, rejete,
	motif_rejet, motif_litige, litige_utilise, moderator_id, created_at, updated_at`

func scanReview(sc scanner) (*model.Review, error) {
	var (
		r         model.Review
		moderator sql.NullInt64
	)
	err := sc.Scan(&r.ID, &r.SubjectID, &r.AuthorID, &r.RideID, &r.Rating, &r.Comment, &r.Status, &r.Validated, &r.Rejected,
		&r.RejectReason, &r.DisputeReason, &r.DisputeUsed, &moderator, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	r.ModeratorID = idOf(moderator)
	return &r, nil
}

// ListReviewsByStatus returns up to limit reviews in any of statuses,
// oldest first.
func (s *Store) ListReviewsByStatus(ctx context.Context, limit int, statuses ...model.ReviewStatus) ([]model.Review, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, limitOr(limit))

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM avis WHERE status IN ("+marks+") ORDER BY id LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RatingOf averages the approved reviews about userID.
func (s *Store) RatingOf(ctx context.Context, userID uint64) (model.RatingSummary, error) {
	sum := model.RatingSummary{UserID: userID}
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(note) FROM avis WHERE subject_id=? AND status=? AND rejete=FALSE",
		userID, model.ReviewApproved).Scan(&sum.Count, &avg)
	if err != nil {
		return sum, mapError(err)
	}
	if avg.Valid {
		sum.Average = avg.Float64
	}
	return sum, nil
}

func (t *txRepo) GetReview(ctx context.Context, id uint64) (*model.Review, error) {
	return scanReview(t.q.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM avis WHERE id=? FOR UPDATE", id))
}

func (t *txRepo) CreateReview(ctx context.Context, r *model.Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	r.UpdatedAt = r.CreatedAt
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO avis (subject_id, author_id, ride_id, note, commentaire, status, valide, rejete,
			motif_rejet, motif_litige, litige_utilise, moderator_id, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.SubjectID, r.AuthorID, r.RideID, r.Rating, r.Comment, r.Status, r.Validated, r.Rejected,
		r.RejectReason, r.DisputeReason, r.DisputeUsed, nullID(r.ModeratorID), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	r.ID, err = lastID(res)
	return err
}

func (t *txRepo) UpdateReview(ctx context.Context, r *model.Review) error {
	r.UpdatedAt = t.now()
	res, err := t.q.ExecContext(ctx,
		`UPDATE avis SET status=?, valide=?, rejete=?, motif_rejet=?, motif_litige=?, litige_utilise=?,
			moderator_id=?, updated_at=? WHERE id=?`,
		r.Status, r.Validated, r.Rejected, r.RejectReason, r.DisputeReason, r.DisputeUsed,
		nullID(r.ModeratorID), r.UpdatedAt, r.ID)
	if err != nil {
		return mapError(err)
	}
	return affected(res)
}
