package payments

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepo struct {
	units        map[int64]*UnitInfo
	cleared      []ClearedChallanRow
	payments     map[int64]*Payment
	links        map[int64][]int64
	latestNumber string
	nextID       int64

	duplicateCreates int // fail this many creates with ErrDuplicateNumber
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		units:    make(map[int64]*UnitInfo),
		payments: make(map[int64]*Payment),
		links:    make(map[int64][]int64),
		nextID:   1,
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) GetUnit(_ context.Context, id int64) (*UnitInfo, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return u, nil
}

func (m *mockRepo) ClearedChallans(_ context.Context, _ int64, _, _ time.Time, dcIDs []int64) ([]ClearedChallanRow, error) {
	if len(dcIDs) == 0 {
		return m.cleared, nil
	}
	wanted := make(map[int64]bool, len(dcIDs))
	for _, id := range dcIDs {
		wanted[id] = true
	}
	var out []ClearedChallanRow
	for _, row := range m.cleared {
		if wanted[row.DCID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockRepo) LatestPaymentNumber(_ context.Context) (string, error) {
	return m.latestNumber, nil
}

func (m *mockRepo) GetPayment(_ context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

func (m *mockRepo) ListPayments(_ context.Context, _ ListPaymentsRequest) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepo) ClearPayment(_ context.Context, id int64, clearedAt time.Time) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	p.Status = PaymentStatusCleared
	p.ClearedDate = &clearedAt
	p.UpdatedAt = &clearedAt
	return p, nil
}

func (m *mockRepo) PendingSummary(_ context.Context) ([]PendingUnitSummary, error) {
	return nil, nil
}

func (m *mockRepo) MonthSummary(_ context.Context, _, _ time.Time) (*MonthSummary, error) {
	return &MonthSummary{}, nil
}

func (m *mockRepo) UnitClearedChallans(_ context.Context, _ int64, _, _ time.Time) ([]ClearedChallanInfo, error) {
	return nil, nil
}

func (m *mockRepo) CreatePayment(_ context.Context, p Payment) (int64, error) {
	if m.duplicateCreates > 0 {
		m.duplicateCreates--
		return 0, ErrDuplicateNumber
	}
	id := m.nextID
	m.nextID++
	p.ID = id
	m.payments[id] = &p
	m.latestNumber = p.PaymentNumber
	return id, nil
}

func (m *mockRepo) LinkChallans(_ context.Context, paymentID int64, dcIDs []int64) error {
	m.links[paymentID] = dcIDs
	return nil
}

// ============================================================================
// FIXTURES
// ============================================================================

var testNow = time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC)

func testService(repo *mockRepo) *Service {
	return NewService(repo, shared.FixedClock{At: testNow}, slog.New(slog.DiscardHandler))
}

func seedUnit(repo *mockRepo) {
	repo.units[1] = &UnitInfo{ID: 1, Name: "Shree Garments", RatePerPiece: 10}
	repo.cleared = []ClearedChallanRow{
		{DCID: 1, DCNumber: "DC0001", TotalPiecesReturned: 40, RejectedPieces: 5},
		{DCID: 2, DCNumber: "DC0002", TotalPiecesReturned: 60, RejectedPieces: 0},
	}
}

func createRequest() CreatePaymentRequest {
	return CreatePaymentRequest{
		StitchingUnitID: 1,
		PaymentDate:     testNow,
		PaymentMethod:   "bank transfer",
		CreatedBy:       "accounts",
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestCalculate(t *testing.T) {
	ctx := context.Background()

	t.Run("prices cleared challans without writing", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		req := CalculationRequest{
			StitchingUnitID: 1,
			FromDate:        testNow.AddDate(0, -1, 0),
			ToDate:          testNow,
		}
		calc, err := svc.Calculate(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, 95, calc.TotalOKPieces)
		assert.Equal(t, 950.0, calc.GrossAmount)
		assert.Equal(t, 25.0, calc.SuggestedDeduction)
		assert.Equal(t, 925.0, calc.NetAmount)
		assert.Empty(t, repo.payments)

		again, err := svc.Calculate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, calc, again)
	})

	t.Run("unknown unit", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		_, err := svc.Calculate(ctx, CalculationRequest{
			StitchingUnitID: 9, FromDate: testNow.AddDate(0, -1, 0), ToDate: testNow,
		})
		assert.ErrorIs(t, err, ErrUnitNotFound)
	})

	t.Run("reversed date range", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		_, err := svc.Calculate(ctx, CalculationRequest{
			StitchingUnitID: 1, FromDate: testNow, ToDate: testNow.AddDate(0, -1, 0),
		})
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("books pending payment with suggested deduction", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		payment, err := svc.CreatePayment(ctx, createRequest())
		require.NoError(t, err)

		assert.Equal(t, "PAY0001", payment.PaymentNumber)
		assert.Equal(t, PaymentStatusPending, payment.Status)
		assert.Equal(t, 95, payment.TotalPieces)
		assert.Equal(t, 950.0, payment.GrossAmount)
		assert.Equal(t, 25.0, payment.DeductionAmount)
		assert.Equal(t, 925.0, payment.NetAmount)
		assert.Equal(t, []int64{1, 2}, repo.links[payment.ID])
	})

	t.Run("deduction override", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		override := 100.0
		req := createRequest()
		req.DeductionAmount = &override

		payment, err := svc.CreatePayment(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 100.0, payment.DeductionAmount)
		assert.Equal(t, 850.0, payment.NetAmount)
	})

	t.Run("deduction past gross is rejected", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		override := 10000.0
		req := createRequest()
		req.DeductionAmount = &override

		_, err := svc.CreatePayment(ctx, req)
		assert.ErrorIs(t, err, ErrDeductionExceedsGross)
	})

	t.Run("payment numbers advance per latest record", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		repo.latestNumber = "PAY0012"
		svc := testService(repo)

		payment, err := svc.CreatePayment(ctx, createRequest())
		require.NoError(t, err)
		assert.Equal(t, "PAY0013", payment.PaymentNumber)
	})

	t.Run("number collision retries with a fresh read", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		repo.duplicateCreates = 1
		svc := testService(repo)

		payment, err := svc.CreatePayment(ctx, createRequest())
		require.NoError(t, err)
		assert.NotEmpty(t, payment.PaymentNumber)
	})

	t.Run("nothing to pay", func(t *testing.T) {
		repo := newMockRepo()
		repo.units[1] = &UnitInfo{ID: 1, Name: "Shree Garments", RatePerPiece: 10}
		svc := testService(repo)

		_, err := svc.CreatePayment(ctx, createRequest())
		assert.ErrorIs(t, err, ErrNothingToPay)
	})

	t.Run("all rejects is nothing to pay", func(t *testing.T) {
		repo := newMockRepo()
		repo.units[1] = &UnitInfo{ID: 1, Name: "Shree Garments", RatePerPiece: 10}
		repo.cleared = []ClearedChallanRow{
			{DCID: 1, DCNumber: "DC0001", TotalPiecesReturned: 20, RejectedPieces: 20},
		}
		svc := testService(repo)

		_, err := svc.CreatePayment(ctx, createRequest())
		assert.ErrorIs(t, err, ErrNothingToPay)
	})
}

func TestClearPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the payment cleared", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		payment, err := svc.CreatePayment(ctx, createRequest())
		require.NoError(t, err)

		cleared, err := svc.ClearPayment(ctx, payment.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusCleared, cleared.Status)
		require.NotNil(t, cleared.ClearedDate)
		assert.Equal(t, testNow, *cleared.ClearedDate)
		assert.Equal(t, &testNow, cleared.UpdatedAt)
	})

	t.Run("clearing twice restamps the date", func(t *testing.T) {
		repo := newMockRepo()
		seedUnit(repo)
		svc := testService(repo)

		payment, err := svc.CreatePayment(ctx, createRequest())
		require.NoError(t, err)

		_, err = svc.ClearPayment(ctx, payment.ID, nil)
		require.NoError(t, err)

		later := testNow.Add(48 * time.Hour)
		cleared, err := svc.ClearPayment(ctx, payment.ID, &later)
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusCleared, cleared.Status)
		assert.Equal(t, later, *cleared.ClearedDate)
	})

	t.Run("unknown payment", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		_, err := svc.ClearPayment(ctx, 99, nil)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}
