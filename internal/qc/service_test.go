package qc

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchtrack/stitchtrack/internal/shared"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type itemKey struct {
	dcID, bundleID int64
}

type mockRepo struct {
	challans        map[int64]*stitching.DeliveryChallan
	records         []QCRecord
	returns         []StitchReturn
	items           map[itemKey]*ItemQuantities
	bundlesReturned map[int64]int
	knownBundles    map[int64]bool
	nextRecordID    int64
	nextReturnID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		challans:        make(map[int64]*stitching.DeliveryChallan),
		items:           make(map[itemKey]*ItemQuantities),
		bundlesReturned: make(map[int64]int),
		knownBundles:    make(map[int64]bool),
		nextRecordID:    1,
		nextReturnID:    1,
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) GetChallan(_ context.Context, id int64) (*stitching.DeliveryChallan, error) {
	dc, ok := m.challans[id]
	if !ok {
		return nil, stitching.ErrChallanNotFound
	}
	return dc, nil
}

func (m *mockRepo) ScanHistory(_ context.Context, dcID int64) ([]QCRecord, error) {
	var out []QCRecord
	for _, rec := range m.records {
		if rec.DCID == dcID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockRepo) ListChallans(_ context.Context, _ *stitching.DCStatus, _ *int64) ([]ChallanView, error) {
	return nil, nil
}

func (m *mockRepo) PendingChallans(_ context.Context) ([]ChallanView, error) {
	var out []ChallanView
	for _, dc := range m.challans {
		if dc.Status == stitching.DCStatusHold || dc.Status == stitching.DCStatusPartial {
			out = append(out, ChallanView{ID: dc.ID, DCNumber: dc.DCNumber, DCDate: dc.DCDate, Status: dc.Status})
		}
	}
	return out, nil
}

func (m *mockRepo) CheckBundleExists(_ context.Context, bundleID int64) error {
	if !m.knownBundles[bundleID] {
		return ErrBundleNotFound
	}
	return nil
}

func (m *mockRepo) GetItemQuantities(_ context.Context, dcID, bundleID int64) (*ItemQuantities, error) {
	q, ok := m.items[itemKey{dcID, bundleID}]
	if !ok {
		return nil, ErrItemNotOnChallan
	}
	return q, nil
}

func (m *mockRepo) ListReturns(_ context.Context, _ ListReturnsRequest) ([]StitchReturn, error) {
	return m.returns, nil
}

func (m *mockRepo) Summary(_ context.Context, _ time.Time) (*Summary, error) {
	return &Summary{}, nil
}

func (m *mockRepo) InsertQCRecord(_ context.Context, rec QCRecord) (int64, error) {
	rec.ID = m.nextRecordID
	m.nextRecordID++
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *mockRepo) SetChallanStatus(_ context.Context, dcID int64, status stitching.DCStatus, holdReason *string, now time.Time) error {
	dc, ok := m.challans[dcID]
	if !ok {
		return stitching.ErrChallanNotFound
	}
	dc.Status = status
	dc.UpdatedAt = &now
	if holdReason != nil {
		dc.HoldReason = holdReason
	}
	return nil
}

func (m *mockRepo) SetChallanReturnTotals(_ context.Context, dcID int64, returned int, returnedAt time.Time) error {
	dc := m.challans[dcID]
	dc.TotalPiecesReturned = returned
	dc.ActualReturnDate = &returnedAt
	return nil
}

func (m *mockRepo) MarkChallanBundlesReturned(_ context.Context, dcID int64, _ time.Time) error {
	m.bundlesReturned[dcID]++
	return nil
}

func (m *mockRepo) InsertStitchReturn(_ context.Context, ret StitchReturn) (int64, error) {
	ret.ID = m.nextReturnID
	m.nextReturnID++
	m.returns = append(m.returns, ret)
	return ret.ID, nil
}

func (m *mockRepo) AddItemReturn(_ context.Context, dcID, bundleID int64, quantity int, returnType ReturnType, _ time.Time) error {
	q, ok := m.items[itemKey{dcID, bundleID}]
	if !ok {
		return ErrItemNotOnChallan
	}
	q.QuantityReturned += quantity
	return nil
}

// ============================================================================
// FIXTURES
// ============================================================================

var testNow = time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC)

func testService(repo *mockRepo) *Service {
	return NewService(repo, shared.FixedClock{At: testNow}, slog.New(slog.DiscardHandler))
}

func seedChallan(repo *mockRepo) *stitching.DeliveryChallan {
	dc := &stitching.DeliveryChallan{
		ID:              42,
		DCNumber:        "DC0007",
		StitchingUnitID: 1,
		DCDate:          testNow.Add(-72 * time.Hour),
		TotalPiecesSent: 40,
		Status:          stitching.DCStatusOpen,
		QRCodeData:      "DC|DC0007|42|40",
	}
	repo.challans[42] = dc
	return dc
}

func inboundScan(qty int) ScanRequest {
	return ScanRequest{
		QRCodeData:      "DC|DC0007|42|40",
		ScanType:        ScanInbound,
		ScannedQuantity: qty,
		ScannerName:     "qc-desk",
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestProcessScan(t *testing.T) {
	ctx := context.Background()

	t.Run("undecodable payload fails cleanly", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, ScanRequest{
			QRCodeData: "not a payload", ScanType: ScanInbound,
			ScannedQuantity: 40, ScannerName: "qc-desk",
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Empty(t, repo.records)
		assert.Equal(t, stitching.DCStatusOpen, repo.challans[42].Status)
	})

	t.Run("unknown challan fails cleanly", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, inboundScan(40))
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Empty(t, repo.records)
	})

	t.Run("outbound match keeps challan open", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, ScanRequest{
			QRCodeData: "DC|DC0007|42|40", ScanType: ScanOutbound,
			ScannedQuantity: 40, ScannerName: "gate",
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.IsMatch)
		assert.Equal(t, stitching.DCStatusOpen, result.NewStatus)
		assert.NotEmpty(t, result.ScanRef)
		require.Len(t, repo.records, 1)
		assert.Equal(t, result.ScanRef, repo.records[0].ScanRef)
	})

	t.Run("outbound mismatch holds the challan", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, ScanRequest{
			QRCodeData: "DC|DC0007|42|40", ScanType: ScanOutbound,
			ScannedQuantity: 35, ScannerName: "gate",
		})
		require.NoError(t, err)
		assert.Equal(t, -5, result.Variance)
		assert.Equal(t, stitching.DCStatusHold, repo.challans[42].Status)
		assert.Equal(t, &testNow, repo.challans[42].UpdatedAt)
	})

	t.Run("inbound full count clears and returns bundles", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, inboundScan(40))
		require.NoError(t, err)
		assert.Equal(t, stitching.DCStatusCleared, result.NewStatus)

		dc := repo.challans[42]
		assert.Equal(t, stitching.DCStatusCleared, dc.Status)
		assert.Equal(t, 40, dc.TotalPiecesReturned)
		require.NotNil(t, dc.ActualReturnDate)
		assert.Equal(t, testNow, *dc.ActualReturnDate)
		assert.Equal(t, 1, repo.bundlesReturned[42])
	})

	t.Run("inbound short count marks partial", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, inboundScan(25))
		require.NoError(t, err)
		assert.Equal(t, stitching.DCStatusPartial, result.NewStatus)
		assert.Equal(t, 25, repo.challans[42].TotalPiecesReturned)
		assert.Zero(t, repo.bundlesReturned[42])
	})

	t.Run("inbound zero count holds", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		result, err := svc.ProcessScan(ctx, inboundScan(0))
		require.NoError(t, err)
		assert.Equal(t, stitching.DCStatusHold, result.NewStatus)
	})

	t.Run("repeated inbound scan overwrites return totals", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		_, err := svc.ProcessScan(ctx, inboundScan(25))
		require.NoError(t, err)
		_, err = svc.ProcessScan(ctx, inboundScan(30))
		require.NoError(t, err)

		assert.Equal(t, 30, repo.challans[42].TotalPiecesReturned)
		assert.Equal(t, stitching.DCStatusPartial, repo.challans[42].Status)
		assert.Len(t, repo.records, 2)
	})

	t.Run("every processed scan writes exactly one record", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		for _, qty := range []int{25, 25, 40} {
			_, err := svc.ProcessScan(ctx, inboundScan(qty))
			require.NoError(t, err)
		}
		assert.Len(t, repo.records, 3)
	})

	t.Run("rejects manual scan type in requests", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		req := inboundScan(40)
		req.ScanType = ScanManual
		_, err := svc.ProcessScan(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidScanType)
	})
}

func TestManualStatusUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("hold requires a reason", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		_, err := svc.ManualStatusUpdate(ctx, 42, ManualStatusRequest{
			Status: stitching.DCStatusHold, UpdatedBy: "supervisor",
		})
		assert.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("hold stores the reason and an audit record", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		dc, err := svc.ManualStatusUpdate(ctx, 42, ManualStatusRequest{
			Status: stitching.DCStatusHold, Reason: "unit reported lost bundle", UpdatedBy: "supervisor",
		})
		require.NoError(t, err)
		assert.Equal(t, stitching.DCStatusHold, dc.Status)
		require.NotNil(t, dc.HoldReason)
		assert.Equal(t, "unit reported lost bundle", *dc.HoldReason)

		require.Len(t, repo.records, 1)
		rec := repo.records[0]
		assert.Equal(t, ScanManual, rec.ScanType)
		assert.Equal(t, 40, rec.ScannedQuantity)
		assert.Equal(t, 40, rec.ExpectedQuantity)
		assert.True(t, rec.IsMatch)
		assert.Equal(t, "supervisor", rec.ScannerName)
	})

	t.Run("manual clear returns the bundles", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		dc, err := svc.ManualStatusUpdate(ctx, 42, ManualStatusRequest{
			Status: stitching.DCStatusCleared, Reason: "counted by hand", UpdatedBy: "supervisor",
		})
		require.NoError(t, err)
		assert.Equal(t, stitching.DCStatusCleared, dc.Status)
		assert.Equal(t, 1, repo.bundlesReturned[42])
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		repo := newMockRepo()
		seedChallan(repo)
		svc := testService(repo)

		_, err := svc.ManualStatusUpdate(ctx, 42, ManualStatusRequest{
			Status: "archived", UpdatedBy: "supervisor",
		})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("unknown challan", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		_, err := svc.ManualStatusUpdate(ctx, 99, ManualStatusRequest{
			Status: stitching.DCStatusCleared, UpdatedBy: "supervisor",
		})
		assert.ErrorIs(t, err, stitching.ErrChallanNotFound)
	})
}

func TestRecordStitchReturn(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *mockRepo) {
		seedChallan(repo)
		repo.knownBundles[10] = true
		repo.items[itemKey{42, 10}] = &ItemQuantities{QuantitySent: 20}
	}

	t.Run("records ok pieces against the item", func(t *testing.T) {
		repo := newMockRepo()
		seed(repo)
		svc := testService(repo)

		ret, err := svc.RecordStitchReturn(ctx, CreateReturnRequest{
			DCID: 42, BundleID: 10, QuantityReturned: 15,
			ReturnType: ReturnOK, InspectorName: "qc-desk",
		})
		require.NoError(t, err)
		assert.Equal(t, ReturnOK, ret.ReturnType)
		assert.Equal(t, testNow, ret.ReturnDate)
		assert.Equal(t, 15, repo.items[itemKey{42, 10}].QuantityReturned)
	})

	t.Run("running total may not exceed sent", func(t *testing.T) {
		repo := newMockRepo()
		seed(repo)
		svc := testService(repo)

		_, err := svc.RecordStitchReturn(ctx, CreateReturnRequest{
			DCID: 42, BundleID: 10, QuantityReturned: 15,
			ReturnType: ReturnOK, InspectorName: "qc-desk",
		})
		require.NoError(t, err)

		_, err = svc.RecordStitchReturn(ctx, CreateReturnRequest{
			DCID: 42, BundleID: 10, QuantityReturned: 10,
			ReturnType: ReturnReject, InspectorName: "qc-desk",
		})
		assert.ErrorIs(t, err, ErrReturnExceedsSent)
	})

	t.Run("bundle must be on the challan", func(t *testing.T) {
		repo := newMockRepo()
		seed(repo)
		repo.knownBundles[11] = true
		svc := testService(repo)

		_, err := svc.RecordStitchReturn(ctx, CreateReturnRequest{
			DCID: 42, BundleID: 11, QuantityReturned: 5,
			ReturnType: ReturnOK, InspectorName: "qc-desk",
		})
		assert.ErrorIs(t, err, ErrItemNotOnChallan)
	})

	t.Run("unknown return type", func(t *testing.T) {
		repo := newMockRepo()
		seed(repo)
		svc := testService(repo)

		_, err := svc.RecordStitchReturn(ctx, CreateReturnRequest{
			DCID: 42, BundleID: 10, QuantityReturned: 5,
			ReturnType: "scrap", InspectorName: "qc-desk",
		})
		assert.ErrorIs(t, err, ErrInvalidReturnType)
	})
}

func TestPendingChallans(t *testing.T) {
	repo := newMockRepo()
	dc := seedChallan(repo)
	dc.Status = stitching.DCStatusHold
	svc := testService(repo)

	pending, err := svc.PendingChallans(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].DaysPending)
}
