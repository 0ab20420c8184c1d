package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetUnit(ctx context.Context, id int64) (*UnitInfo, error)
	ClearedChallans(ctx context.Context, unitID int64, from, to time.Time, dcIDs []int64) ([]ClearedChallanRow, error)
	LatestPaymentNumber(ctx context.Context) (string, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error)
	ClearPayment(ctx context.Context, id int64, clearedAt time.Time) (*Payment, error)
	PendingSummary(ctx context.Context) ([]PendingUnitSummary, error)
	MonthSummary(ctx context.Context, from, to time.Time) (*MonthSummary, error)
	UnitClearedChallans(ctx context.Context, unitID int64, from, to time.Time) ([]ClearedChallanInfo, error)
}

// createAttempts bounds retries when two payments race for the same number.
const createAttempts = 3

// Service issues and settles contractor payments.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, clock shared.Clock, logger *slog.Logger) *Service {
	return &Service{repo: repo, clock: clock, logger: logger}
}

// Calculate prices the unit's cleared challans in range without writing
// anything. Calling it twice returns the same proposal.
func (s *Service) Calculate(ctx context.Context, req CalculationRequest) (*Calculation, error) {
	if req.FromDate.After(req.ToDate) {
		return nil, ErrInvalidDateRange
	}

	unit, err := s.repo.GetUnit(ctx, req.StitchingUnitID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ClearedChallans(ctx, req.StitchingUnitID, req.FromDate, req.ToDate, req.DCIDs)
	if err != nil {
		return nil, err
	}

	calc := BuildCalculation(*unit, rows)
	return &calc, nil
}

// CreatePayment calculates and books a payment for the unit's cleared
// challans. The deduction defaults to the suggested reject deduction and may
// be overridden, but never past the gross amount. The covered challans are
// linked to the payment so they cannot be silently paid twice.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	from := monthStart(req.PaymentDate)
	if req.FromDate != nil {
		from = *req.FromDate
	}

	calc, err := s.Calculate(ctx, CalculationRequest{
		StitchingUnitID: req.StitchingUnitID,
		FromDate:        from,
		ToDate:          req.PaymentDate,
		DCIDs:           req.DCIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(calc.Challans) == 0 || calc.TotalOKPieces == 0 {
		return nil, ErrNothingToPay
	}

	deduction := calc.SuggestedDeduction
	if req.DeductionAmount != nil {
		deduction = *req.DeductionAmount
	}
	if deduction > calc.GrossAmount {
		return nil, ErrDeductionExceedsGross
	}

	dcIDs := make([]int64, 0, len(calc.Challans))
	for _, cp := range calc.Challans {
		dcIDs = append(dcIDs, cp.DCID)
	}

	payment := Payment{
		StitchingUnitID: req.StitchingUnitID,
		PaymentDate:     req.PaymentDate,
		TotalPieces:     calc.TotalOKPieces,
		RatePerPiece:    calc.RatePerPiece,
		GrossAmount:     calc.GrossAmount,
		DeductionAmount: deduction,
		NetAmount:       calc.GrossAmount - deduction,
		Status:          PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		CreatedBy:       req.CreatedBy,
	}

	// A concurrent create can win the same number; the unique index rejects
	// the loser, which retries with a fresh sequence read.
	for attempt := 0; attempt < createAttempts; attempt++ {
		latest, err := s.repo.LatestPaymentNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest payment number: %w", err)
		}
		payment.PaymentNumber = shared.NextInSeries(latest, "PAY", 4)

		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.CreatePayment(ctx, payment)
			if err != nil {
				return err
			}
			payment.ID = id
			return tx.LinkChallans(ctx, id, dcIDs)
		})
		if err == nil {
			return s.repo.GetPayment(ctx, payment.ID)
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}
		s.logger.Warn("payment number collision, retrying",
			slog.String("payment_number", payment.PaymentNumber))
	}
	return nil, ErrDuplicateNumber
}

// GetPayment retrieves a payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments lists payments, defaulting to the current month.
func (s *Service) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error) {
	now := s.clock.Now()
	if req.FromDate.IsZero() {
		req.FromDate = monthStart(now)
	}
	if req.ToDate.IsZero() {
		req.ToDate = now
	}
	return s.repo.ListPayments(ctx, req)
}

// ClearPayment marks a payment cleared. Clearing twice is harmless; the
// cleared date moves to the later call.
func (s *Service) ClearPayment(ctx context.Context, id int64, clearedAt *time.Time) (*Payment, error) {
	at := s.clock.Now()
	if clearedAt != nil {
		at = *clearedAt
	}
	return s.repo.ClearPayment(ctx, id, at)
}

// PendingSummary aggregates pending payments per unit.
func (s *Service) PendingSummary(ctx context.Context) ([]PendingUnitSummary, error) {
	return s.repo.PendingSummary(ctx)
}

// Dashboard returns the payment dashboard payload.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.clock.Now()
	month, err := s.repo.MonthSummary(ctx, monthStart(now), now)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.PendingSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{ThisMonth: *month, PendingByUnit: pending}, nil
}

// UnitClearedChallans lists a unit's cleared challans with payment linkage,
// defaulting to the current month.
func (s *Service) UnitClearedChallans(ctx context.Context, unitID int64, from, to *time.Time) ([]ClearedChallanInfo, error) {
	if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	f := monthStart(now)
	if from != nil {
		f = *from
	}
	t := now
	if to != nil {
		t = *to
	}
	return s.repo.UnitClearedChallans(ctx, unitID, f, t)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
