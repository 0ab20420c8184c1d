package cutting

import (
	"context"
	"errors"
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
	lots            map[int64]*CuttingLot
	bundles         map[int64]*Bundle
	latestLotNumber string
	nextLotID       int64
	nextBundleID    int64

	styleColorErr error
	codePathCalls int
	lastCodeStamp time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		lots:         make(map[int64]*CuttingLot),
		bundles:      make(map[int64]*Bundle),
		nextLotID:    1,
		nextBundleID: 1,
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) CreateLot(_ context.Context, lot CuttingLot) (int64, error) {
	id := m.nextLotID
	m.nextLotID++
	lot.ID = id
	m.lots[id] = &lot
	m.latestLotNumber = lot.LotNumber
	return id, nil
}

func (m *mockRepo) InsertBundle(_ context.Context, b Bundle) (int64, error) {
	id := m.nextBundleID
	m.nextBundleID++
	b.ID = id
	m.bundles[id] = &b
	return id, nil
}

func (m *mockRepo) GetLot(_ context.Context, id int64) (*CuttingLot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return nil, ErrLotNotFound
	}
	return lot, nil
}

func (m *mockRepo) ListLots(_ context.Context, _ ListLotsRequest) ([]CuttingLot, error) {
	var out []CuttingLot
	for _, lot := range m.lots {
		out = append(out, *lot)
	}
	return out, nil
}

func (m *mockRepo) LatestLotNumber(_ context.Context) (string, error) {
	return m.latestLotNumber, nil
}

func (m *mockRepo) GetBundle(_ context.Context, id int64) (*Bundle, error) {
	b, ok := m.bundles[id]
	if !ok {
		return nil, ErrBundleNotFound
	}
	return b, nil
}

func (m *mockRepo) GetBundles(_ context.Context, ids []int64) ([]Bundle, error) {
	var out []Bundle
	for _, id := range ids {
		if b, ok := m.bundles[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockRepo) ListLotBundles(_ context.Context, lotID int64) ([]Bundle, error) {
	var out []Bundle
	for _, b := range m.bundles {
		if b.CuttingLotID == lotID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockRepo) SearchBundles(_ context.Context, _ SearchBundlesRequest) ([]Bundle, error) {
	return nil, nil
}

func (m *mockRepo) UpdateBundleCodePaths(_ context.Context, bundleID int64, qrPath, barcodePath *string, now time.Time) error {
	b, ok := m.bundles[bundleID]
	if !ok {
		return ErrBundleNotFound
	}
	b.QRCodePath = qrPath
	b.BarcodePath = barcodePath
	m.codePathCalls++
	m.lastCodeStamp = now
	return nil
}

func (m *mockRepo) StickerData(_ context.Context, _ []int64) ([]StickerData, error) {
	return nil, nil
}

func (m *mockRepo) CheckStyleAndColor(_ context.Context, _, _ int64) error {
	return m.styleColorErr
}

func (m *mockRepo) Stats(_ context.Context) (*Stats, error) {
	return &Stats{}, nil
}

// ============================================================================
// MOCK RENDERER
// ============================================================================

type mockRenderer struct {
	qrErr      error
	barcodeErr error
}

func (m *mockRenderer) RenderQR(_, name string) (string, error) {
	if m.qrErr != nil {
		return "", m.qrErr
	}
	return "/tmp/qr/" + name + ".png", nil
}

func (m *mockRenderer) RenderBarcode(_, name string) (string, error) {
	if m.barcodeErr != nil {
		return "", m.barcodeErr
	}
	return "/tmp/barcode/" + name + ".png", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testClock() shared.Clock {
	return shared.FixedClock{At: testNow}
}

func validRequest() CreateProgramRequest {
	return CreateProgramRequest{
		StyleID:   1,
		ColorID:   2,
		FabricLot: "FAB-88",
		LayNumber: 1,
		LayCount:  10,
		SizeRatios: []SizeRatio{
			{SizeID: 1, SizeName: "S", Ratio: 2},
			{SizeID: 2, SizeName: "M", Ratio: 3},
		},
		PanelTypes: []PanelType{PanelFront, PanelBack},
		CreatedBy:  "supervisor",
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateProgram(t *testing.T) {
	ctx := context.Background()

	t.Run("expands ratios into bundles", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)

		assert.Equal(t, "LOT001", result.Lot.LotNumber)
		assert.Equal(t, 4, result.TotalBundles)
		assert.Equal(t, 100, result.TotalPieces)
		assert.Equal(t, 100, result.Lot.TotalPieces)

		require.Len(t, result.Bundles, 4)
		assert.Equal(t, "LOT001-S-FRONT-001", result.Bundles[0].BundleNumber)
		assert.Equal(t, "LOT001-S-BACK-002", result.Bundles[1].BundleNumber)
		assert.Equal(t, "LOT001-M-FRONT-003", result.Bundles[2].BundleNumber)
		assert.Equal(t, "LOT001-M-BACK-004", result.Bundles[3].BundleNumber)

		for _, b := range result.Bundles {
			assert.Equal(t, BundleStatusCreated, b.Status)
			assert.NotEmpty(t, b.BarcodeData)
		}

		assert.Equal(t, map[string]int{
			"S-front": 20, "S-back": 20,
			"M-front": 30, "M-back": 30,
		}, result.Summary)
	})

	t.Run("lot numbers advance per latest record", func(t *testing.T) {
		repo := newMockRepo()
		repo.latestLotNumber = "LOT007"
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, "LOT008", result.Lot.LotNumber)
	})

	t.Run("corrupted latest lot number restarts the series", func(t *testing.T) {
		repo := newMockRepo()
		repo.latestLotNumber = "LOT-BROKEN"
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, "LOT001", result.Lot.LotNumber)
	})

	t.Run("render failure does not fail creation", func(t *testing.T) {
		repo := newMockRepo()
		renderer := &mockRenderer{qrErr: errors.New("disk full"), barcodeErr: errors.New("disk full")}
		svc := NewService(repo, renderer, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, 4, result.TotalBundles)
		assert.Zero(t, repo.codePathCalls)
		for _, b := range result.Bundles {
			assert.Nil(t, b.QRCodePath)
			assert.Nil(t, b.BarcodePath)
		}
	})

	t.Run("successful render stores artifact paths", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)
		assert.Equal(t, 4, repo.codePathCalls)
		assert.Equal(t, testNow, repo.lastCodeStamp)
		for _, b := range result.Bundles {
			require.NotNil(t, b.QRCodePath)
			require.NotNil(t, b.BarcodePath)
		}
	})

	t.Run("rejects empty size ratios", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		req := validRequest()
		req.SizeRatios = nil
		_, err := svc.CreateProgram(ctx, req)
		assert.ErrorIs(t, err, ErrNoSizeRatios)
	})

	t.Run("rejects empty panel types", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		req := validRequest()
		req.PanelTypes = nil
		_, err := svc.CreateProgram(ctx, req)
		assert.ErrorIs(t, err, ErrNoPanelTypes)
	})

	t.Run("rejects zero lay count", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		req := validRequest()
		req.LayCount = 0
		_, err := svc.CreateProgram(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidLayCount)
	})

	t.Run("rejects non-positive ratio", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		req := validRequest()
		req.SizeRatios[0].Ratio = 0
		_, err := svc.CreateProgram(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRatio)
	})

	t.Run("rejects unknown panel type", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		req := validRequest()
		req.PanelTypes = []PanelType{"hood"}
		_, err := svc.CreateProgram(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidPanel)
	})

	t.Run("rejects unknown style", func(t *testing.T) {
		repo := newMockRepo()
		repo.styleColorErr = ErrStyleNotFound
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		_, err := svc.CreateProgram(ctx, validRequest())
		assert.ErrorIs(t, err, ErrStyleNotFound)
	})
}

func TestGetLotBundles(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown lot", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		_, err := svc.GetLotBundles(ctx, 99)
		assert.ErrorIs(t, err, ErrLotNotFound)
	})

	t.Run("returns bundles of the lot", func(t *testing.T) {
		repo := newMockRepo()
		svc := NewService(repo, &mockRenderer{}, testClock(), testLogger())

		result, err := svc.CreateProgram(ctx, validRequest())
		require.NoError(t, err)

		bundles, err := svc.GetLotBundles(ctx, result.Lot.ID)
		require.NoError(t, err)
		assert.Len(t, bundles, 4)
	})
}
