// Package verification conduce las sesiones de conteo físico:
// IN_PROGRESS → PENDING_APPROVAL → APPROVED | REJECTED.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/application/validation"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// Config opciones del flujo de verificación.
type Config struct {
	// AllowRestart permite reemplazar una sesión REJECTED por una nueva IN_PROGRESS.
	AllowRestart bool
	TxTimeout    time.Duration
}

// UseCase motor del flujo de verificación.
type UseCase struct {
	txRunner ports.TxRunner
	ledger   *ledger.Service
	renderer ports.VerificationReportRenderer
	policy   *authz.Policy
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewUseCase construye el caso de uso. renderer puede ser nil si no se generan reportes.
func NewUseCase(
	txRunner ports.TxRunner,
	ledgerSvc *ledger.Service,
	renderer ports.VerificationReportRenderer,
	policy *authz.Policy,
	log *logger.Logger,
	cfg Config,
) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{
		txRunner: txRunner,
		ledger:   ledgerSvc,
		renderer: renderer,
		policy:   policy,
		log:      log.Component("verification"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock reemplaza el reloj (pruebas).
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// StartSession abre una sesión tomando como esperado el saldo actual de cada producto activo.
// Solo puede haber una sesión abierta a la vez.
func (uc *UseCase) StartSession(ctx context.Context, actor entity.Actor, notes string) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(actor, entity.CapCountInventory); err != nil {
		return nil, err
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = uc.startInTx(ctx, tx, actor, notes, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", s.ID).Int("lines", len(s.Lines)).Msg("sesión de verificación iniciada")
	return s, nil
}

func (uc *UseCase) startInTx(ctx context.Context, tx repository.Tx, actor entity.Actor, notes string, supersedes *string) (*entity.VerificationSession, error) {
	open, err := tx.Verifications().FindOpen(ctx)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, &domain.InvalidTransitionError{
			From:   open.State,
			To:     entity.SessionStateInProgress,
			Reason: "ya existe la sesión abierta " + open.ID,
		}
	}

	products, err := tx.Products().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	s := &entity.VerificationSession{
		ID:           uuid.New().String(),
		StartedAt:    now,
		State:        entity.SessionStateInProgress,
		VerifierID:   actor.ID,
		Notes:        strings.TrimSpace(notes),
		SupersedesID: supersedes,
	}
	for _, p := range products {
		s.Lines = append(s.Lines, &entity.VerificationLine{
			SessionID:          s.ID,
			ProductID:          p.ID,
			ProductName:        p.Name,
			UnitPrice:          p.UnitPrice,
			ExpectedQuantity:   p.CurrentQuantity,
			Difference:         decimal.Zero,
			MonetaryDifference: decimal.Zero,
		})
	}
	s.Summary = inventory.Summarize(s.Lines)
	if err := tx.Verifications().CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("crear sesión: %w", err)
	}
	return s, nil
}

// RecordCount registra (o corrige) el conteo de un producto y recalcula el resumen en la misma transacción.
func (uc *UseCase) RecordCount(ctx context.Context, actor entity.Actor, sessionID, productID string, counted decimal.Decimal) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(actor, entity.CapCountInventory); err != nil {
		return nil, err
	}
	if counted.IsNegative() {
		return nil, domain.NewValidationError("counted_quantity", "debe ser mayor o igual que 0")
	}
	if !inventory.FitsScale(counted) {
		return nil, domain.NewValidationError("counted_quantity", validation.ScaleReason)
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = loadForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if s.State != entity.SessionStateInProgress {
			return &domain.InvalidTransitionError{
				From:   s.State,
				To:     entity.SessionStateInProgress,
				Reason: "solo se registran conteos en una sesión IN_PROGRESS",
			}
		}
		line := s.Line(productID)
		if line == nil {
			return domain.NewValidationError("product_id", "el producto no pertenece a la sesión")
		}
		inventory.CountLine(line, counted, uc.now().UTC())
		if err := tx.Verifications().UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("guardar conteo: %w", err)
		}
		s.Summary = inventory.Summarize(s.Lines)
		return tx.Verifications().UpdateSession(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SubmitForApproval cierra el conteo. Falla con InvalidTransitionError si queda alguna línea sin contar.
func (uc *UseCase) SubmitForApproval(ctx context.Context, actor entity.Actor, sessionID string) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(actor, entity.CapCountInventory); err != nil {
		return nil, err
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = loadForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := inventory.CheckTransition(s.State, entity.SessionStatePendingApproval); err != nil {
			return err
		}
		if n := inventory.PendingLines(s.Lines); n > 0 {
			return &domain.InvalidTransitionError{
				From:   s.State,
				To:     entity.SessionStatePendingApproval,
				Reason: fmt.Sprintf("%d líneas sin contar", n),
			}
		}
		now := uc.now().UTC()
		s.State = entity.SessionStatePendingApproval
		s.EndedAt = &now
		s.Summary = inventory.Summarize(s.Lines)
		return tx.Verifications().UpdateSession(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", s.ID).Str("total_difference", s.Summary.TotalMonetaryDifference.String()).Msg("sesión enviada a aprobación")
	return s, nil
}

// Approve aplica un movimiento de ajuste por cada línea con diferencia y cierra la sesión.
// Todo en una transacción: si un ajuste falla (por ejemplo, stock negativo) no se aplica ninguno.
func (uc *UseCase) Approve(ctx context.Context, reviewer entity.Actor, sessionID string) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(reviewer, entity.CapReviewVerification); err != nil {
		return nil, err
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var (
		s       *entity.VerificationSession
		applied []string
	)
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		applied = nil
		var err error
		s, err = loadForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := inventory.CheckTransition(s.State, entity.SessionStateApproved); err != nil {
			return err
		}

		sid := s.ID
		for _, line := range s.Lines {
			typ, qty, ok := inventory.AdjustmentFor(line.Difference)
			if !ok {
				continue
			}
			mov, err := uc.ledger.ApplyInTx(ctx, tx, ledger.MovementInput{
				ProductID:      line.ProductID,
				Type:           typ,
				Origin:         entity.MovementOriginVerificationAdj,
				Quantity:       qty,
				ActorID:        reviewer.ID,
				VerificationID: &sid,
				Note:           "ajuste por verificación " + s.ID,
			})
			if err != nil {
				return fmt.Errorf("ajuste de %s: %w", line.ProductID, err)
			}
			movID := mov.ID
			line.AdjustmentMovementID = &movID
			if err := tx.Verifications().UpdateLine(ctx, line); err != nil {
				return err
			}
			applied = append(applied, mov.ID)
		}

		now := uc.now().UTC()
		s.State = entity.SessionStateApproved
		s.ReviewerID = reviewer.ID
		s.ReviewedAt = &now
		s.CompletedAt = &now
		s.Summary = inventory.Summarize(s.Lines)
		if err := tx.Verifications().UpdateSession(ctx, s); err != nil {
			return err
		}
		return enqueue(ctx, tx, s, entity.EventVerificationApproved, applied, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrCommitUnknown) {
			pae := &domain.PartialApplicationError{
				Operation: "approve_verification",
				EntityID:  sessionID,
				Applied:   applied,
				Context:   map[string]string{"session_id": sessionID, "reviewer_id": reviewer.ID},
				Err:       err,
			}
			uc.log.Error().Err(err).Str("session_id", sessionID).Strs("movements", applied).
				Msg("aplicación parcial: requiere conciliación manual")
			return nil, pae
		}
		return nil, err
	}
	uc.log.Info().Str("session_id", s.ID).Int("adjustments", len(applied)).Msg("verificación aprobada")
	return s, nil
}

// Reject cierra la sesión sin tocar el libro. El motivo es obligatorio.
func (uc *UseCase) Reject(ctx context.Context, reviewer entity.Actor, sessionID, reason string) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(reviewer, entity.CapReviewVerification); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "es obligatorio")
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = loadForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := inventory.CheckTransition(s.State, entity.SessionStateRejected); err != nil {
			return err
		}
		now := uc.now().UTC()
		s.State = entity.SessionStateRejected
		s.RejectionReason = reason
		s.ReviewerID = reviewer.ID
		s.ReviewedAt = &now
		s.CompletedAt = &now
		if err := tx.Verifications().UpdateSession(ctx, s); err != nil {
			return err
		}
		return enqueue(ctx, tx, s, entity.EventVerificationRejected, nil, now)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", s.ID).Str("reason", reason).Msg("verificación rechazada")
	return s, nil
}

// Restart reemplaza una sesión REJECTED por una nueva sesión IN_PROGRESS (con nuevo snapshot)
// si la política lo permite. La sesión rechazada no se modifica.
func (uc *UseCase) Restart(ctx context.Context, actor entity.Actor, rejectedID string) (*entity.VerificationSession, error) {
	if err := uc.policy.Require(actor, entity.CapCountInventory); err != nil {
		return nil, err
	}
	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		prev, err := loadForUpdate(ctx, tx, rejectedID)
		if err != nil {
			return err
		}
		if prev.State != entity.SessionStateRejected {
			return &domain.InvalidTransitionError{
				From: prev.State, To: entity.SessionStateInProgress,
				Reason: "solo una sesión REJECTED puede reiniciarse",
			}
		}
		if !uc.cfg.AllowRestart {
			return &domain.InvalidTransitionError{
				From: prev.State, To: entity.SessionStateInProgress,
				Reason: "la política vigente no permite reiniciar sesiones rechazadas",
			}
		}
		prevID := prev.ID
		s, err = uc.startInTx(ctx, tx, actor, prev.Notes, &prevID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session_id", s.ID).Str("supersedes", rejectedID).Msg("sesión reiniciada")
	return s, nil
}

// GetSession devuelve la sesión con sus líneas.
func (uc *UseCase) GetSession(ctx context.Context, id string) (*entity.VerificationSession, error) {
	var s *entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		s, err = tx.Verifications().GetSession(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// ListSessions lista sesiones (sin líneas), más recientes primero.
func (uc *UseCase) ListSessions(ctx context.Context, limit, offset int) ([]*entity.VerificationSession, error) {
	var out []*entity.VerificationSession
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.Verifications().ListSessions(ctx, limit, offset)
		return err
	})
	return out, err
}

// RenderReport genera el PDF de la sesión.
func (uc *UseCase) RenderReport(ctx context.Context, id string) ([]byte, error) {
	if uc.renderer == nil {
		return nil, errors.New("generador de reportes no configurado")
	}
	s, err := uc.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.renderer.RenderVerification(s)
}

func loadForUpdate(ctx context.Context, tx repository.Tx, id string) (*entity.VerificationSession, error) {
	s, err := tx.Verifications().GetSessionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

type sessionEvent struct {
	SessionID               string          `json:"session_id"`
	State                   string          `json:"state"`
	ReviewerID              string          `json:"reviewer_id"`
	TotalMonetaryDifference decimal.Decimal `json:"total_monetary_difference"`
	AdjustmentMovementIDs   []string        `json:"adjustment_movement_ids,omitempty"`
	RejectionReason         string          `json:"rejection_reason,omitempty"`
}

func enqueue(ctx context.Context, tx repository.Tx, s *entity.VerificationSession, eventType string, movements []string, now time.Time) error {
	ev, err := entity.NewLedgerEvent("verification", s.ID, eventType, sessionEvent{
		SessionID:               s.ID,
		State:                   s.State,
		ReviewerID:              s.ReviewerID,
		TotalMonetaryDifference: s.Summary.TotalMonetaryDifference,
		AdjustmentMovementIDs:   movements,
		RejectionReason:         s.RejectionReason,
	}, now)
	if err != nil {
		return err
	}
	if err := tx.Outbox().Create(ctx, ev); err != nil {
		return fmt.Errorf("encolar evento: %w", err)
	}
	return nil
}
