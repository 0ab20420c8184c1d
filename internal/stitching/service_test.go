package stitching

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchtrack/stitchtrack/internal/cutting"
	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepo struct {
	units           map[int64]*StitchingUnit
	challans        map[int64]*DeliveryChallan
	items           map[int64][]DCItem
	bundles         map[int64]*DispatchBundle
	latestDCNumber  string
	knownLots       map[int64]bool
	nextUnitID      int64
	nextChallanID   int64
	qrPathsRecorded int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		units:         make(map[int64]*StitchingUnit),
		challans:      make(map[int64]*DeliveryChallan),
		items:         make(map[int64][]DCItem),
		bundles:       make(map[int64]*DispatchBundle),
		knownLots:     make(map[int64]bool),
		nextUnitID:    1,
		nextChallanID: 1,
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) CreateUnit(_ context.Context, u StitchingUnit) (int64, error) {
	for _, existing := range m.units {
		if existing.Name == u.Name {
			return 0, ErrUnitNameTaken
		}
	}
	id := m.nextUnitID
	m.nextUnitID++
	u.ID = id
	m.units[id] = &u
	return id, nil
}

func (m *mockRepo) GetUnit(_ context.Context, id int64) (*StitchingUnit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return u, nil
}

func (m *mockRepo) ListUnits(_ context.Context, isActive *bool) ([]StitchingUnit, error) {
	var out []StitchingUnit
	for _, u := range m.units {
		if isActive == nil || u.IsActive == *isActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateUnit(_ context.Context, id int64, req UpdateUnitRequest, now time.Time) (*StitchingUnit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.RatePerPiece != nil {
		u.RatePerPiece = *req.RatePerPiece
	}
	u.UpdatedAt = &now
	return u, nil
}

func (m *mockRepo) GetChallan(_ context.Context, id int64) (*DeliveryChallan, error) {
	dc, ok := m.challans[id]
	if !ok {
		return nil, ErrChallanNotFound
	}
	return dc, nil
}

func (m *mockRepo) ListChallans(_ context.Context, req ListChallansRequest) ([]DeliveryChallan, error) {
	var out []DeliveryChallan
	for _, dc := range m.challans {
		if req.Status != nil && dc.Status != *req.Status {
			continue
		}
		if req.UnitID != nil && dc.StitchingUnitID != *req.UnitID {
			continue
		}
		out = append(out, *dc)
	}
	return out, nil
}

func (m *mockRepo) LatestChallanNumber(_ context.Context) (string, error) {
	return m.latestDCNumber, nil
}

func (m *mockRepo) GetChallanItems(_ context.Context, dcID int64) ([]DCItemDetail, error) {
	var out []DCItemDetail
	for _, item := range m.items[dcID] {
		detail := DCItemDetail{DCItem: item}
		if b, ok := m.bundles[item.BundleID]; ok {
			detail.BundleNumber = b.BundleNumber
		}
		out = append(out, detail)
	}
	return out, nil
}

func (m *mockRepo) UpdateChallan(_ context.Context, id int64, req UpdateChallanRequest, _ time.Time) (*DeliveryChallan, error) {
	dc, ok := m.challans[id]
	if !ok {
		return nil, ErrChallanNotFound
	}
	if req.Notes != nil {
		dc.Notes = req.Notes
	}
	if req.ExpectedReturnDate != nil {
		dc.ExpectedReturnDate = req.ExpectedReturnDate
	}
	return dc, nil
}

func (m *mockRepo) UpdateChallanQRPath(_ context.Context, dcID int64, path string, _ time.Time) error {
	dc, ok := m.challans[dcID]
	if !ok {
		return ErrChallanNotFound
	}
	dc.QRCodePath = &path
	m.qrPathsRecorded++
	return nil
}

func (m *mockRepo) CheckLotExists(_ context.Context, lotID int64) error {
	if !m.knownLots[lotID] {
		return ErrLotNotFound
	}
	return nil
}

func (m *mockRepo) GetBundlesForDispatch(_ context.Context, bundleIDs []int64) ([]DispatchBundle, error) {
	var out []DispatchBundle
	for _, id := range bundleIDs {
		if b, ok := m.bundles[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockRepo) Dashboard(_ context.Context) (*Dashboard, error) {
	return &Dashboard{}, nil
}

func (m *mockRepo) CreateChallan(_ context.Context, dc DeliveryChallan) (int64, error) {
	id := m.nextChallanID
	m.nextChallanID++
	dc.ID = id
	m.challans[id] = &dc
	m.latestDCNumber = dc.DCNumber
	return id, nil
}

func (m *mockRepo) SetChallanQRData(_ context.Context, dcID int64, qrData string) error {
	m.challans[dcID].QRCodeData = qrData
	return nil
}

func (m *mockRepo) InsertItem(_ context.Context, item DCItem) error {
	m.items[item.DCID] = append(m.items[item.DCID], item)
	return nil
}

func (m *mockRepo) MarkBundlesDispatched(_ context.Context, bundleIDs []int64, _ time.Time) error {
	for _, id := range bundleIDs {
		b, ok := m.bundles[id]
		if !ok || !b.Status.CanDispatch() {
			return ErrBundleUnavailable
		}
		b.Status = cutting.BundleStatusDispatched
	}
	return nil
}

type mockRenderer struct{ err error }

func (m *mockRenderer) RenderQR(_, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "/tmp/qr/" + name + ".png", nil
}

func (m *mockRenderer) RenderBarcode(_, name string) (string, error) {
	return "/tmp/barcode/" + name + ".png", nil
}

// ============================================================================
// FIXTURES
// ============================================================================

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func testService(repo *mockRepo) *Service {
	return NewService(repo, &mockRenderer{}, shared.FixedClock{At: testNow}, slog.New(slog.DiscardHandler))
}

func seedDispatchScenario(repo *mockRepo) {
	repo.units[1] = &StitchingUnit{ID: 1, Name: "Shree Garments", RatePerPiece: 12, IsActive: true}
	repo.knownLots[5] = true
	repo.bundles[10] = &DispatchBundle{ID: 10, BundleNumber: "LOT001-S-FRONT-001", Status: cutting.BundleStatusCreated, Quantity: 20}
	repo.bundles[11] = &DispatchBundle{ID: 11, BundleNumber: "LOT001-S-BACK-002", Status: cutting.BundleStatusCreated, Quantity: 20}
}

func dispatchRequest() CreateChallanRequest {
	return CreateChallanRequest{
		StitchingUnitID: 1,
		CuttingLotID:    5,
		Items: []ChallanItemRequest{
			{BundleID: 10, QuantitySent: 20},
			{BundleID: 11, QuantitySent: 20},
		},
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateChallan(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches bundles and opens the challan", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		challan, err := svc.CreateChallan(ctx, dispatchRequest())
		require.NoError(t, err)

		assert.Equal(t, "DC0001", challan.DCNumber)
		assert.Equal(t, DCStatusOpen, challan.Status)
		assert.Equal(t, 40, challan.TotalPiecesSent)
		assert.Equal(t, "DC|DC0001|1|40", challan.QRCodeData)
		assert.Len(t, challan.Items, 2)

		assert.Equal(t, cutting.BundleStatusDispatched, repo.bundles[10].Status)
		assert.Equal(t, cutting.BundleStatusDispatched, repo.bundles[11].Status)
		assert.Equal(t, 1, repo.qrPathsRecorded)
	})

	t.Run("challan numbers advance per latest record", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		repo.latestDCNumber = "DC0041"
		svc := testService(repo)

		challan, err := svc.CreateChallan(ctx, dispatchRequest())
		require.NoError(t, err)
		assert.Equal(t, "DC0042", challan.DCNumber)
	})

	t.Run("corrupted latest number restarts the series", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		repo.latestDCNumber = "DCX-bad"
		svc := testService(repo)

		challan, err := svc.CreateChallan(ctx, dispatchRequest())
		require.NoError(t, err)
		assert.Equal(t, "DC0001", challan.DCNumber)
	})

	t.Run("rejects unknown unit", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		req := dispatchRequest()
		req.StitchingUnitID = 99
		_, err := svc.CreateChallan(ctx, req)
		assert.ErrorIs(t, err, ErrUnitNotFound)
	})

	t.Run("rejects unknown lot", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		req := dispatchRequest()
		req.CuttingLotID = 99
		_, err := svc.CreateChallan(ctx, req)
		assert.ErrorIs(t, err, ErrLotNotFound)
	})

	t.Run("rejects missing bundles", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		req := dispatchRequest()
		req.Items = append(req.Items, ChallanItemRequest{BundleID: 77, QuantitySent: 5})
		_, err := svc.CreateChallan(ctx, req)
		assert.ErrorIs(t, err, ErrBundleNotFound)
	})

	t.Run("rejects already dispatched bundle", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		repo.bundles[10].Status = cutting.BundleStatusDispatched
		svc := testService(repo)

		_, err := svc.CreateChallan(ctx, dispatchRequest())
		assert.ErrorIs(t, err, ErrBundleUnavailable)
	})

	t.Run("rejects duplicate bundle entries", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		req := dispatchRequest()
		req.Items = append(req.Items, ChallanItemRequest{BundleID: 10, QuantitySent: 5})
		_, err := svc.CreateChallan(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateBundle)
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		svc := testService(repo)

		req := dispatchRequest()
		req.Items = nil
		_, err := svc.CreateChallan(ctx, req)
		assert.ErrorIs(t, err, ErrNoItems)
	})

	t.Run("qr render failure still creates the challan", func(t *testing.T) {
		repo := newMockRepo()
		seedDispatchScenario(repo)
		clock := shared.FixedClock{At: testNow}
		svc := NewService(repo, &mockRenderer{err: assert.AnError}, clock, slog.New(slog.DiscardHandler))

		challan, err := svc.CreateChallan(ctx, dispatchRequest())
		require.NoError(t, err)
		assert.Nil(t, challan.QRCodePath)
		assert.Zero(t, repo.qrPathsRecorded)
	})
}

func TestCreateUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("new units start active", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		unit, err := svc.CreateUnit(ctx, CreateUnitRequest{
			Name:           "Shree Garments",
			ContactPerson:  "Ravi",
			Phone:          "9000000000",
			Address:        "Tirupur",
			CapacityPerDay: 500,
			RatePerPiece:   12.5,
		})
		require.NoError(t, err)
		assert.True(t, unit.IsActive)
		assert.Equal(t, 12.5, unit.RatePerPiece)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		repo := newMockRepo()
		svc := testService(repo)

		req := CreateUnitRequest{
			Name: "Shree Garments", ContactPerson: "Ravi", Phone: "9000000000",
			Address: "Tirupur", CapacityPerDay: 500, RatePerPiece: 12.5,
		}
		_, err := svc.CreateUnit(ctx, req)
		require.NoError(t, err)

		_, err = svc.CreateUnit(ctx, req)
		assert.ErrorIs(t, err, ErrUnitNameTaken)
	})
}

func TestUpdateUnit(t *testing.T) {
	repo := newMockRepo()
	repo.units[1] = &StitchingUnit{ID: 1, Name: "Shree Garments", RatePerPiece: 12, IsActive: true}
	svc := testService(repo)

	rate := 14.0
	unit, err := svc.UpdateUnit(context.Background(), 1, UpdateUnitRequest{RatePerPiece: &rate})
	require.NoError(t, err)
	assert.Equal(t, 14.0, unit.RatePerPiece)
	assert.Equal(t, &testNow, unit.UpdatedAt)
}

func TestQRPayload(t *testing.T) {
	assert.Equal(t, "DC|DC0007|42|120", QRPayload("DC0007", 42, 120))
}
