package stitching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchtrack/stitchtrack/internal/codeimage"
	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	CreateUnit(ctx context.Context, u StitchingUnit) (int64, error)
	GetUnit(ctx context.Context, id int64) (*StitchingUnit, error)
	ListUnits(ctx context.Context, isActive *bool) ([]StitchingUnit, error)
	UpdateUnit(ctx context.Context, id int64, req UpdateUnitRequest, now time.Time) (*StitchingUnit, error)

	GetChallan(ctx context.Context, id int64) (*DeliveryChallan, error)
	ListChallans(ctx context.Context, req ListChallansRequest) ([]DeliveryChallan, error)
	LatestChallanNumber(ctx context.Context) (string, error)
	GetChallanItems(ctx context.Context, dcID int64) ([]DCItemDetail, error)
	UpdateChallan(ctx context.Context, id int64, req UpdateChallanRequest, now time.Time) (*DeliveryChallan, error)
	UpdateChallanQRPath(ctx context.Context, dcID int64, path string, now time.Time) error
	CheckLotExists(ctx context.Context, lotID int64) error
	GetBundlesForDispatch(ctx context.Context, bundleIDs []int64) ([]DispatchBundle, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

// Service coordinates stitching unit and delivery challan operations.
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

// ============================================================================
// STITCHING UNITS
// ============================================================================

// CreateUnit registers a stitching unit. New units start active.
func (s *Service) CreateUnit(ctx context.Context, req CreateUnitRequest) (*StitchingUnit, error) {
	unit := StitchingUnit{
		Name:           req.Name,
		ContactPerson:  req.ContactPerson,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		CapacityPerDay: req.CapacityPerDay,
		RatePerPiece:   req.RatePerPiece,
		IsActive:       true,
	}

	id, err := s.repo.CreateUnit(ctx, unit)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUnit(ctx, id)
}

// GetUnit retrieves a stitching unit.
func (s *Service) GetUnit(ctx context.Context, id int64) (*StitchingUnit, error) {
	return s.repo.GetUnit(ctx, id)
}

// ListUnits lists stitching units, optionally filtered by activity.
func (s *Service) ListUnits(ctx context.Context, isActive *bool) ([]StitchingUnit, error) {
	return s.repo.ListUnits(ctx, isActive)
}

// UpdateUnit applies partial updates to a stitching unit.
func (s *Service) UpdateUnit(ctx context.Context, id int64, req UpdateUnitRequest) (*StitchingUnit, error) {
	return s.repo.UpdateUnit(ctx, id, req, s.clock.Now())
}

// ============================================================================
// DELIVERY CHALLANS
// ============================================================================

// CreateChallan dispatches bundles to a stitching unit on a new challan.
// All listed bundles must still be in the cut stage; the challan, its items
// and the bundle status flips commit atomically.
func (s *Service) CreateChallan(ctx context.Context, req CreateChallanRequest) (*ChallanDetail, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}

	bundleIDs := make([]int64, 0, len(req.Items))
	seen := make(map[int64]bool, len(req.Items))
	totalPieces := 0
	for _, item := range req.Items {
		if seen[item.BundleID] {
			return nil, fmt.Errorf("bundle %d: %w", item.BundleID, ErrDuplicateBundle)
		}
		seen[item.BundleID] = true
		bundleIDs = append(bundleIDs, item.BundleID)
		totalPieces += item.QuantitySent
	}

	if _, err := s.repo.GetUnit(ctx, req.StitchingUnitID); err != nil {
		return nil, err
	}
	if err := s.repo.CheckLotExists(ctx, req.CuttingLotID); err != nil {
		return nil, err
	}

	bundles, err := s.repo.GetBundlesForDispatch(ctx, bundleIDs)
	if err != nil {
		return nil, err
	}
	if len(bundles) != len(bundleIDs) {
		return nil, ErrBundleNotFound
	}
	for _, b := range bundles {
		if !b.Status.CanDispatch() {
			return nil, fmt.Errorf("bundle %s: %w", b.BundleNumber, ErrBundleUnavailable)
		}
	}

	latest, err := s.repo.LatestChallanNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest challan number: %w", err)
	}
	dcNumber := shared.NextInSeries(latest, "DC", 4)
	now := s.clock.Now()

	dc := DeliveryChallan{
		DCNumber:           dcNumber,
		StitchingUnitID:    req.StitchingUnitID,
		CuttingLotID:       req.CuttingLotID,
		DCDate:             now,
		TotalPiecesSent:    totalPieces,
		Status:             DCStatusOpen,
		DispatchDate:       &now,
		ExpectedReturnDate: req.ExpectedReturnDate,
		Notes:              req.Notes,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateChallan(ctx, dc)
		if err != nil {
			return fmt.Errorf("create challan: %w", err)
		}
		dc.ID = id

		// Payload embeds the row ID, so it is only known after insert.
		dc.QRCodeData = QRPayload(dcNumber, id, totalPieces)
		if err := tx.SetChallanQRData(ctx, id, dc.QRCodeData); err != nil {
			return fmt.Errorf("set qr data: %w", err)
		}

		for _, item := range req.Items {
			err := tx.InsertItem(ctx, DCItem{DCID: id, BundleID: item.BundleID, QuantitySent: item.QuantitySent})
			if err != nil {
				return fmt.Errorf("insert item for bundle %d: %w", item.BundleID, err)
			}
		}
		return tx.MarkBundlesDispatched(ctx, bundleIDs, now)
	})
	if err != nil {
		return nil, err
	}

	s.renderChallanQR(ctx, &dc)

	items, err := s.repo.GetChallanItems(ctx, dc.ID)
	if err != nil {
		return nil, err
	}
	dc.CreatedAt = now
	return &ChallanDetail{DeliveryChallan: dc, Items: items}, nil
}

// renderChallanQR renders the challan QR image after commit, best effort.
func (s *Service) renderChallanQR(ctx context.Context, dc *DeliveryChallan) {
	if s.renderer == nil {
		return
	}
	path, err := s.renderer.RenderQR(dc.QRCodeData, fmt.Sprintf("dc_%d", dc.ID))
	if err != nil {
		s.logger.Warn("render challan qr failed",
			slog.String("dc_number", dc.DCNumber), slog.Any("error", err))
		return
	}
	if err := s.repo.UpdateChallanQRPath(ctx, dc.ID, path, s.clock.Now()); err != nil {
		s.logger.Warn("store challan qr path failed",
			slog.String("dc_number", dc.DCNumber), slog.Any("error", err))
		return
	}
	dc.QRCodePath = &path
}

// GetChallan retrieves a challan with its items.
func (s *Service) GetChallan(ctx context.Context, id int64) (*ChallanDetail, error) {
	dc, err := s.repo.GetChallan(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetChallanItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ChallanDetail{DeliveryChallan: *dc, Items: items}, nil
}

// ListChallans lists challans filtered by status and unit.
func (s *Service) ListChallans(ctx context.Context, req ListChallansRequest) ([]DeliveryChallan, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	return s.repo.ListChallans(ctx, req)
}

// UpdateChallan applies mutable challan fields.
func (s *Service) UpdateChallan(ctx context.Context, id int64, req UpdateChallanRequest) (*DeliveryChallan, error) {
	return s.repo.UpdateChallan(ctx, id, req, s.clock.Now())
}

// GetChallanItems returns the items of a challan joined with bundle details.
func (s *Service) GetChallanItems(ctx context.Context, dcID int64) ([]DCItemDetail, error) {
	if _, err := s.repo.GetChallan(ctx, dcID); err != nil {
		return nil, err
	}
	return s.repo.GetChallanItems(ctx, dcID)
}

// Dashboard returns the stitching dashboard summary.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return s.repo.Dashboard(ctx)
}
