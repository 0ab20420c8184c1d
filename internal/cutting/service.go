package cutting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stitchtrack/stitchtrack/internal/codeimage"
	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLot(ctx context.Context, id int64) (*CuttingLot, error)
	ListLots(ctx context.Context, req ListLotsRequest) ([]CuttingLot, error)
	LatestLotNumber(ctx context.Context) (string, error)
	GetBundle(ctx context.Context, id int64) (*Bundle, error)
	GetBundles(ctx context.Context, ids []int64) ([]Bundle, error)
	ListLotBundles(ctx context.Context, lotID int64) ([]Bundle, error)
	SearchBundles(ctx context.Context, req SearchBundlesRequest) ([]Bundle, error)
	UpdateBundleCodePaths(ctx context.Context, bundleID int64, qrPath, barcodePath *string, now time.Time) error
	StickerData(ctx context.Context, bundleIDs []int64) ([]StickerData, error)
	CheckStyleAndColor(ctx context.Context, styleID, colorID int64) error
	Stats(ctx context.Context) (*Stats, error)
}

// Service coordinates cutting-program operations.
type Service struct {
	repo     RepositoryPort
	renderer codeimage.Renderer
	clock    shared.Clock
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, renderer codeimage.Renderer, clock shared.Clock, logger *slog.Logger) *Service {
	return &Service{repo: repo, renderer: renderer, clock: clock, logger: logger}
}

// CreateProgram expands a cutting-program request into a lot and its
// bundles, then renders sticker artifacts for each bundle. Rendering failures
// degrade to a missing artifact path and never abort bundle creation.
func (s *Service) CreateProgram(ctx context.Context, req CreateProgramRequest) (*ProgramResult, error) {
	if err := validateProgramRequest(req); err != nil {
		return nil, err
	}

	if err := s.repo.CheckStyleAndColor(ctx, req.StyleID, req.ColorID); err != nil {
		return nil, fmt.Errorf("check style and color: %w", err)
	}

	latest, err := s.repo.LatestLotNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest lot number: %w", err)
	}
	lotNumber := shared.NextInSeries(latest, "LOT", 3)

	specs, totalPieces := ExpandProgram(req.SizeRatios, req.PanelTypes, req.LayCount)
	now := s.clock.Now()

	lot := CuttingLot{
		LotNumber:   lotNumber,
		StyleID:     req.StyleID,
		ColorID:     req.ColorID,
		FabricLot:   req.FabricLot,
		LayNumber:   req.LayNumber,
		TotalPieces: totalPieces,
		CuttingDate: now,
		CreatedBy:   req.CreatedBy,
		Notes:       req.Notes,
	}

	var bundles []Bundle
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lotID, err := tx.CreateLot(ctx, lot)
		if err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		lot.ID = lotID

		for i, spec := range specs {
			number := BundleNumber(lotNumber, spec.SizeName, spec.Panel, i+1)
			b := Bundle{
				BundleNumber: number,
				CuttingLotID: lotID,
				SizeID:       spec.SizeID,
				PanelType:    spec.Panel,
				Quantity:     spec.Quantity,
				BarcodeData:  BarcodePayload(number, lotNumber, spec.SizeName, spec.Panel, spec.Quantity),
				Status:       BundleStatusCreated,
			}
			id, err := tx.InsertBundle(ctx, b)
			if err != nil {
				return fmt.Errorf("insert bundle %s: %w", number, err)
			}
			b.ID = id
			b.CreatedAt = now
			bundles = append(bundles, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.renderBundleCodes(ctx, bundles)

	summary := make(map[string]int, len(specs))
	for _, spec := range specs {
		summary[fmt.Sprintf("%s-%s", spec.SizeName, spec.Panel)] += spec.Quantity
	}

	lot.CreatedAt = now
	return &ProgramResult{
		Lot:          lot,
		Bundles:      bundles,
		TotalBundles: len(bundles),
		TotalPieces:  totalPieces,
		Summary:      summary,
	}, nil
}

// renderBundleCodes renders QR and barcode images for freshly created bundles.
// Runs after the creating transaction commits; each bundle is independent.
func (s *Service) renderBundleCodes(ctx context.Context, bundles []Bundle) {
	if s.renderer == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := range bundles {
		b := &bundles[i]
		g.Go(func() error {
			var qrPath, barcodePath *string

			if path, err := s.renderer.RenderQR(b.BarcodeData, b.BundleNumber); err != nil {
				s.logger.Warn("render qr failed",
					slog.String("bundle", b.BundleNumber), slog.Any("error", err))
			} else {
				qrPath = &path
			}

			if path, err := s.renderer.RenderBarcode(b.BarcodeData, b.BundleNumber); err != nil {
				s.logger.Warn("render barcode failed",
					slog.String("bundle", b.BundleNumber), slog.Any("error", err))
			} else {
				barcodePath = &path
			}

			if qrPath == nil && barcodePath == nil {
				return nil
			}
			if err := s.repo.UpdateBundleCodePaths(gctx, b.ID, qrPath, barcodePath, s.clock.Now()); err != nil {
				s.logger.Warn("store code paths failed",
					slog.String("bundle", b.BundleNumber), slog.Any("error", err))
				return nil
			}
			b.QRCodePath = qrPath
			b.BarcodePath = barcodePath
			return nil
		})
	}
	_ = g.Wait()
}

func validateProgramRequest(req CreateProgramRequest) error {
	if len(req.SizeRatios) == 0 {
		return ErrNoSizeRatios
	}
	if len(req.PanelTypes) == 0 {
		return ErrNoPanelTypes
	}
	if req.LayCount <= 0 {
		return ErrInvalidLayCount
	}
	for _, sr := range req.SizeRatios {
		if sr.Ratio <= 0 {
			return fmt.Errorf("size %s: %w", sr.SizeName, ErrInvalidRatio)
		}
	}
	for _, p := range req.PanelTypes {
		if !p.IsValid() {
			return fmt.Errorf("%q: %w", p, ErrInvalidPanel)
		}
	}
	return nil
}

// GetLot retrieves a cutting lot.
func (s *Service) GetLot(ctx context.Context, id int64) (*CuttingLot, error) {
	return s.repo.GetLot(ctx, id)
}

// ListLots lists cutting lots.
func (s *Service) ListLots(ctx context.Context, req ListLotsRequest) ([]CuttingLot, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	return s.repo.ListLots(ctx, req)
}

// GetLotBundles returns all bundles of a lot.
func (s *Service) GetLotBundles(ctx context.Context, lotID int64) ([]Bundle, error) {
	if _, err := s.repo.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return s.repo.ListLotBundles(ctx, lotID)
}

// GetBundle retrieves a single bundle.
func (s *Service) GetBundle(ctx context.Context, id int64) (*Bundle, error) {
	return s.repo.GetBundle(ctx, id)
}

// SearchBundles searches bundles by lot number, bundle number, or status.
func (s *Service) SearchBundles(ctx context.Context, req SearchBundlesRequest) ([]Bundle, error) {
	return s.repo.SearchBundles(ctx, req)
}

// StickerData returns bunch sticker rows for the given bundles. Bundles whose
// code images failed to render come back with nil artifact paths; sticker
// printing treats those as unavailable.
func (s *Service) StickerData(ctx context.Context, bundleIDs []int64) ([]StickerData, error) {
	if len(bundleIDs) == 0 {
		return nil, nil
	}
	return s.repo.StickerData(ctx, bundleIDs)
}

// Stats returns the cutting dashboard summary.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
