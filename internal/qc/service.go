package qc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stitchtrack/stitchtrack/internal/shared"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetChallan(ctx context.Context, id int64) (*stitching.DeliveryChallan, error)
	ScanHistory(ctx context.Context, dcID int64) ([]QCRecord, error)
	ListChallans(ctx context.Context, status *stitching.DCStatus, unitID *int64) ([]ChallanView, error)
	PendingChallans(ctx context.Context) ([]ChallanView, error)
	CheckBundleExists(ctx context.Context, bundleID int64) error
	GetItemQuantities(ctx context.Context, dcID, bundleID int64) (*ItemQuantities, error)
	ListReturns(ctx context.Context, req ListReturnsRequest) ([]StitchReturn, error)
	Summary(ctx context.Context, todayStart time.Time) (*Summary, error)
}

// Service reconciles challan scans and stitch returns.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, clock shared.Clock, logger *slog.Logger) *Service {
	return &Service{repo: repo, clock: clock, logger: logger}
}

// ProcessScan reconciles one QR scan against its challan. An undecodable
// payload or unknown challan yields an unsuccessful result without touching
// any state; every decodable scan against a known challan writes exactly one
// QC record. Repeating an inbound scan overwrites the return totals, so the
// latest physical count always wins.
func (s *Service) ProcessScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if !req.ScanType.IsScannable() {
		return nil, ErrInvalidScanType
	}

	payload, ok := DecodePayload(req.QRCodeData)
	if !ok {
		return &ScanResult{
			Success:         false,
			Message:         "invalid QR code format",
			ScannedQuantity: req.ScannedQuantity,
		}, nil
	}

	dc, err := s.repo.GetChallan(ctx, payload.DCID)
	if err != nil {
		if errors.Is(err, stitching.ErrChallanNotFound) {
			return &ScanResult{
				Success:         false,
				Message:         "delivery challan not found",
				ScannedQuantity: req.ScannedQuantity,
			}, nil
		}
		return nil, err
	}

	expected := payload.ExpectedPieces
	isMatch := expected == req.ScannedQuantity
	variance := req.ScannedQuantity - expected
	now := s.clock.Now()
	newStatus := NextStatus(dc.Status, req.ScanType, isMatch, req.ScannedQuantity)
	scanRef := uuid.NewString()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.InsertQCRecord(ctx, QCRecord{
			ScanRef:          scanRef,
			DCID:             dc.ID,
			ScanType:         req.ScanType,
			ScanDatetime:     now,
			ScannedQuantity:  req.ScannedQuantity,
			ExpectedQuantity: expected,
			IsMatch:          isMatch,
			Variance:         variance,
			ScannerName:      req.ScannerName,
			Notes:            req.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert qc record: %w", err)
		}

		if newStatus != dc.Status {
			if err := tx.SetChallanStatus(ctx, dc.ID, newStatus, nil, now); err != nil {
				return fmt.Errorf("set status: %w", err)
			}
		}
		if req.ScanType == ScanInbound {
			if err := tx.SetChallanReturnTotals(ctx, dc.ID, req.ScannedQuantity, now); err != nil {
				return fmt.Errorf("set return totals: %w", err)
			}
			if newStatus == stitching.DCStatusCleared {
				if err := tx.MarkChallanBundlesReturned(ctx, dc.ID, now); err != nil {
					return fmt.Errorf("mark bundles returned: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Success:          true,
		Message:          "scan processed",
		ScanRef:          scanRef,
		DCID:             dc.ID,
		ExpectedQuantity: expected,
		ScannedQuantity:  req.ScannedQuantity,
		IsMatch:          isMatch,
		Variance:         variance,
		NewStatus:        newStatus,
	}, nil
}

// ManualStatusUpdate overrides a challan status outside the scan flow.
// Moving to hold requires a reason; the override leaves an audit record with
// the sent quantity on both sides so it never reads as a count discrepancy.
func (s *Service) ManualStatusUpdate(ctx context.Context, dcID int64, req ManualStatusRequest) (*stitching.DeliveryChallan, error) {
	if !req.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if req.Status == stitching.DCStatusHold && req.Reason == "" {
		return nil, ErrReasonRequired
	}

	dc, err := s.repo.GetChallan(ctx, dcID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var holdReason *string
		if req.Status == stitching.DCStatusHold {
			holdReason = &req.Reason
		}
		if err := tx.SetChallanStatus(ctx, dcID, req.Status, holdReason, now); err != nil {
			return err
		}

		notes := "manual status update"
		if req.Reason != "" {
			notes = "manual status update: " + req.Reason
		}
		_, err := tx.InsertQCRecord(ctx, QCRecord{
			ScanRef:          uuid.NewString(),
			DCID:             dcID,
			ScanType:         ScanManual,
			ScanDatetime:     now,
			ScannedQuantity:  dc.TotalPiecesSent,
			ExpectedQuantity: dc.TotalPiecesSent,
			IsMatch:          true,
			Variance:         0,
			ScannerName:      req.UpdatedBy,
			Notes:            &notes,
		})
		if err != nil {
			return fmt.Errorf("insert qc record: %w", err)
		}

		if req.Status == stitching.DCStatusCleared {
			return tx.MarkChallanBundlesReturned(ctx, dcID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetChallan(ctx, dcID)
}

// RecordStitchReturn books returned pieces against one bundle of a challan.
// The running return total of an item may never exceed the quantity sent.
func (s *Service) RecordStitchReturn(ctx context.Context, req CreateReturnRequest) (*StitchReturn, error) {
	if !req.ReturnType.IsValid() {
		return nil, ErrInvalidReturnType
	}

	if _, err := s.repo.GetChallan(ctx, req.DCID); err != nil {
		return nil, err
	}
	if err := s.repo.CheckBundleExists(ctx, req.BundleID); err != nil {
		return nil, err
	}

	item, err := s.repo.GetItemQuantities(ctx, req.DCID, req.BundleID)
	if err != nil {
		return nil, err
	}
	if item.QuantityReturned+req.QuantityReturned > item.QuantitySent {
		return nil, fmt.Errorf("bundle %d: %w", req.BundleID, ErrReturnExceedsSent)
	}

	ret := StitchReturn{
		DCID:              req.DCID,
		BundleID:          req.BundleID,
		ReturnDate:        s.clock.Now(),
		QuantityReturned:  req.QuantityReturned,
		ReturnType:        req.ReturnType,
		DefectDescription: req.DefectDescription,
		InspectorName:     req.InspectorName,
		Notes:             req.Notes,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertStitchReturn(ctx, ret)
		if err != nil {
			return fmt.Errorf("insert stitch return: %w", err)
		}
		ret.ID = id
		return tx.AddItemReturn(ctx, req.DCID, req.BundleID, req.QuantityReturned, req.ReturnType, ret.ReturnDate)
	})
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// ScanHistory returns the scan records of a challan.
func (s *Service) ScanHistory(ctx context.Context, dcID int64) ([]QCRecord, error) {
	if _, err := s.repo.GetChallan(ctx, dcID); err != nil {
		return nil, err
	}
	return s.repo.ScanHistory(ctx, dcID)
}

// ListChallans returns challans for the QC board.
func (s *Service) ListChallans(ctx context.Context, status *stitching.DCStatus, unitID *int64) ([]ChallanView, error) {
	return s.repo.ListChallans(ctx, status, unitID)
}

// PendingChallans returns hold and partial challans with their age in days.
func (s *Service) PendingChallans(ctx context.Context) ([]PendingChallan, error) {
	views, err := s.repo.PendingChallans(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	pending := make([]PendingChallan, 0, len(views))
	for _, v := range views {
		pending = append(pending, PendingChallan{
			ChallanView: v,
			DaysPending: int(now.Sub(v.DCDate).Hours() / 24),
		})
	}
	return pending, nil
}

// ListReturns lists stitch return records.
func (s *Service) ListReturns(ctx context.Context, req ListReturnsRequest) ([]StitchReturn, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	return s.repo.ListReturns(ctx, req)
}

// Stats returns the QC summary for dashboards.
func (s *Service) Stats(ctx context.Context) (*Summary, error) {
	now := s.clock.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.Summary(ctx, todayStart)
}
