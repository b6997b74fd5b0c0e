package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ repository.VerificationRepository = (*VerificationRepo)(nil)

const sessionColumns = `id, started_at, ended_at, state, verifier_id, reviewer_id, reviewed_at, completed_at,
		notes, rejection_reason, supersedes_id, total_lines, lines_counted, lines_matching,
		lines_with_difference, total_monetary_difference, completion_pct`

const lineColumns = `session_id, product_id, product_name, unit_price, expected_quantity, counted_quantity,
		difference, monetary_difference, counted_at, adjustment_movement_id`

// VerificationRepo sesiones de conteo y sus líneas sobre PostgreSQL.
type VerificationRepo struct {
	q Querier
}

// NewVerificationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewVerificationRepository(q Querier) *VerificationRepo {
	return &VerificationRepo{q: q}
}

func scanSession(row pgx.Row) (*entity.VerificationSession, error) {
	var s entity.VerificationSession
	err := row.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &s.State, &s.VerifierID, &s.ReviewerID,
		&s.ReviewedAt, &s.CompletedAt, &s.Notes, &s.RejectionReason, &s.SupersedesID,
		&s.Summary.TotalLines, &s.Summary.LinesCounted, &s.Summary.LinesMatching,
		&s.Summary.LinesWithDifference, &s.Summary.TotalMonetaryDifference, &s.Summary.CompletionPct)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserta la sesión y su instantánea de líneas.
func (r *VerificationRepo) CreateSession(ctx context.Context, s *entity.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.StartedAt, s.EndedAt, s.State, s.VerifierID, s.ReviewerID, s.ReviewedAt, s.CompletedAt,
		s.Notes, s.RejectionReason, s.SupersedesID, s.Summary.TotalLines, s.Summary.LinesCounted,
		s.Summary.LinesMatching, s.Summary.LinesWithDifference, s.Summary.TotalMonetaryDifference,
		s.Summary.CompletionPct,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert verification session: %w", err)
	}

	lineQuery := `
		INSERT INTO verification_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, l := range s.Lines {
		_, err := r.q.Exec(ctx, lineQuery,
			s.ID, l.ProductID, l.ProductName, l.UnitPrice, l.ExpectedQuantity, l.CountedQuantity,
			l.Difference, l.MonetaryDifference, l.CountedAt, l.AdjustmentMovementID,
		)
		if err != nil {
			return fmt.Errorf("insert verification line %s: %w", l.ProductID, err)
		}
	}
	return nil
}

func (r *VerificationRepo) getOne(ctx context.Context, query string, args ...any) (*entity.VerificationSession, error) {
	s, err := scanSession(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verification session: %w", err)
	}
	if s.Lines, err = r.lines(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *VerificationRepo) lines(ctx context.Context, sessionID string) ([]*entity.VerificationLine, error) {
	query := `SELECT ` + lineColumns + ` FROM verification_lines
		WHERE session_id = $1 ORDER BY product_name, product_id`
	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list verification lines: %w", err)
	}
	defer rows.Close()
	var out []*entity.VerificationLine
	for rows.Next() {
		var l entity.VerificationLine
		err := rows.Scan(&l.SessionID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.ExpectedQuantity,
			&l.CountedQuantity, &l.Difference, &l.MonetaryDifference, &l.CountedAt, &l.AdjustmentMovementID)
		if err != nil {
			return nil, fmt.Errorf("scan verification line: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *VerificationRepo) GetSession(ctx context.Context, id string) (*entity.VerificationSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM verification_sessions WHERE id = $1`, id)
}

func (r *VerificationRepo) GetSessionForUpdate(ctx context.Context, id string) (*entity.VerificationSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM verification_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *VerificationRepo) UpdateSession(ctx context.Context, s *entity.VerificationSession) error {
	query := `
		UPDATE verification_sessions SET
			ended_at = $1, state = $2, reviewer_id = $3, reviewed_at = $4, completed_at = $5,
			notes = $6, rejection_reason = $7, total_lines = $8, lines_counted = $9,
			lines_matching = $10, lines_with_difference = $11, total_monetary_difference = $12,
			completion_pct = $13
		WHERE id = $14`
	tag, err := r.q.Exec(ctx, query,
		s.EndedAt, s.State, s.ReviewerID, s.ReviewedAt, s.CompletedAt, s.Notes, s.RejectionReason,
		s.Summary.TotalLines, s.Summary.LinesCounted, s.Summary.LinesMatching,
		s.Summary.LinesWithDifference, s.Summary.TotalMonetaryDifference, s.Summary.CompletionPct, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update verification session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *VerificationRepo) UpdateLine(ctx context.Context, l *entity.VerificationLine) error {
	query := `
		UPDATE verification_lines SET
			counted_quantity = $1, difference = $2, monetary_difference = $3, counted_at = $4,
			adjustment_movement_id = $5
		WHERE session_id = $6 AND product_id = $7`
	tag, err := r.q.Exec(ctx, query,
		l.CountedQuantity, l.Difference, l.MonetaryDifference, l.CountedAt, l.AdjustmentMovementID,
		l.SessionID, l.ProductID,
	)
	if err != nil {
		return fmt.Errorf("update verification line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindOpen la sesión no terminal, si existe (el índice parcial garantiza a lo sumo una).
func (r *VerificationRepo) FindOpen(ctx context.Context) (*entity.VerificationSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM verification_sessions
		WHERE state IN ($1, $2) LIMIT 1`,
		entity.SessionStateInProgress, entity.SessionStatePendingApproval)
}

// ListSessions sesiones sin líneas, más recientes primero.
func (r *VerificationRepo) ListSessions(ctx context.Context, limit, offset int) ([]*entity.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions
		ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limitArg(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list verification sessions: %w", err)
	}
	defer rows.Close()
	var out []*entity.VerificationSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
