package qc

import (
	"strconv"
	"strings"
	"time"

	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// ============================================================================
// SCAN TYPES
// ============================================================================

// ScanType identifies the direction of a reconciliation scan.
type ScanType string

const (
	ScanOutbound ScanType = "outbound" // Scanned while the challan leaves the factory
	ScanInbound  ScanType = "inbound"  // Scanned when stitched pieces come back
	ScanManual   ScanType = "manual"   // Audit record written by a manual override
)

// IsScannable reports whether the type may appear in a scan request.
// Manual records are only written by status overrides.
func (t ScanType) IsScannable() bool {
	return t == ScanOutbound || t == ScanInbound
}

// ReturnType classifies returned stitched pieces.
type ReturnType string

const (
	ReturnOK     ReturnType = "ok"
	ReturnReject ReturnType = "reject"
)

// IsValid checks if the return type is valid.
func (t ReturnType) IsValid() bool {
	return t == ReturnOK || t == ReturnReject
}

// ============================================================================
// ENTITIES
// ============================================================================

// QCRecord is one reconciliation scan against a challan.
type QCRecord struct {
	ID               int64     `json:"id" db:"id"`
	ScanRef          string    `json:"scan_ref" db:"scan_ref"`
	DCID             int64     `json:"dc_id" db:"dc_id"`
	ScanType         ScanType  `json:"scan_type" db:"scan_type"`
	ScanDatetime     time.Time `json:"scan_datetime" db:"scan_datetime"`
	ScannedQuantity  int       `json:"scanned_quantity" db:"scanned_quantity"`
	ExpectedQuantity int       `json:"expected_quantity" db:"expected_quantity"`
	IsMatch          bool      `json:"is_match" db:"is_match"`
	Variance         int       `json:"variance" db:"variance"`
	ScannerName      string    `json:"scanner_name" db:"scanner_name"`
	Notes            *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// StitchReturn records one batch of pieces handed back by a stitching unit.
type StitchReturn struct {
	ID                int64      `json:"id" db:"id"`
	DCID              int64      `json:"dc_id" db:"dc_id"`
	BundleID          int64      `json:"bundle_id" db:"bundle_id"`
	ReturnDate        time.Time  `json:"return_date" db:"return_date"`
	QuantityReturned  int        `json:"quantity_returned" db:"quantity_returned"`
	ReturnType        ReturnType `json:"return_type" db:"return_type"`
	DefectDescription *string    `json:"defect_description,omitempty" db:"defect_description"`
	InspectorName     string     `json:"inspector_name" db:"inspector_name"`
	Notes             *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ============================================================================
// PAYLOAD DECODING
// ============================================================================

// ScanPayload is the decoded content of a challan QR code.
type ScanPayload struct {
	DCNumber       string
	DCID           int64
	ExpectedPieces int
}

// DecodePayload parses a challan QR payload of the form
// "DC|{dc_number}|{dc_id}|{expected_pieces}". Extra trailing fields are
// tolerated; anything else fails the decode.
func DecodePayload(data string) (*ScanPayload, bool) {
	parts := strings.Split(data, "|")
	if len(parts) < 4 || parts[0] != "DC" {
		return nil, false
	}
	dcID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, false
	}
	expected, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, false
	}
	return &ScanPayload{DCNumber: parts[1], DCID: dcID, ExpectedPieces: expected}, true
}

// NextStatus computes the challan status a scan result implies.
// Outbound: a clean count keeps the challan open, a mismatch holds it.
// Inbound: a full count clears it, a short positive count marks it partial,
// and an empty count holds it. Anything else leaves the status untouched.
func NextStatus(current stitching.DCStatus, scanType ScanType, isMatch bool, scanned int) stitching.DCStatus {
	switch scanType {
	case ScanOutbound:
		if isMatch {
			return stitching.DCStatusOpen
		}
		return stitching.DCStatusHold
	case ScanInbound:
		if isMatch {
			return stitching.DCStatusCleared
		}
		if scanned > 0 {
			return stitching.DCStatusPartial
		}
		return stitching.DCStatusHold
	}
	return current
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// ScanRequest represents one QR scan from the shop floor.
type ScanRequest struct {
	QRCodeData      string   `json:"qr_code_data" validate:"required,max=500"`
	ScanType        ScanType `json:"scan_type" validate:"required"`
	ScannedQuantity int      `json:"scanned_quantity" validate:"gte=0"`
	ScannerName     string   `json:"scanner_name" validate:"required,max=100"`
	Notes           *string  `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ScanResult is the outcome of processing a scan. Success false means the
// payload could not be matched to a challan; no state was changed.
type ScanResult struct {
	Success          bool               `json:"success"`
	Message          string             `json:"message"`
	ScanRef          string             `json:"scan_ref,omitempty"`
	DCID             int64              `json:"dc_id,omitempty"`
	ExpectedQuantity int                `json:"expected_quantity"`
	ScannedQuantity  int                `json:"scanned_quantity"`
	IsMatch          bool               `json:"is_match"`
	Variance         int                `json:"variance"`
	NewStatus        stitching.DCStatus `json:"new_status,omitempty"`
}

// ManualStatusRequest overrides a challan status outside the scan flow.
type ManualStatusRequest struct {
	Status    stitching.DCStatus `json:"status" validate:"required"`
	Reason    string             `json:"reason" validate:"max=500"`
	UpdatedBy string             `json:"updated_by" validate:"required,max=100"`
}

// CreateReturnRequest records returned pieces for one bundle of a challan.
type CreateReturnRequest struct {
	DCID              int64      `json:"dc_id" validate:"required,gt=0"`
	BundleID          int64      `json:"bundle_id" validate:"required,gt=0"`
	QuantityReturned  int        `json:"quantity_returned" validate:"required,gt=0"`
	ReturnType        ReturnType `json:"return_type" validate:"required"`
	DefectDescription *string    `json:"defect_description,omitempty" validate:"omitempty,max=500"`
	InspectorName     string     `json:"inspector_name" validate:"required,max=100"`
	Notes             *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ListReturnsRequest filters stitch return listings.
type ListReturnsRequest struct {
	DCID       *int64      `json:"dc_id,omitempty"`
	ReturnType *ReturnType `json:"return_type,omitempty"`
	Limit      int         `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int         `json:"offset" validate:"gte=0"`
}

// ChallanView is a challan row enriched for the QC dashboard.
type ChallanView struct {
	ID                  int64              `json:"id" db:"id"`
	DCNumber            string             `json:"dc_number" db:"dc_number"`
	DCDate              time.Time          `json:"dc_date" db:"dc_date"`
	Status              stitching.DCStatus `json:"status" db:"status"`
	TotalPiecesSent     int                `json:"total_pieces_sent" db:"total_pieces_sent"`
	TotalPiecesReturned int                `json:"total_pieces_returned" db:"total_pieces_returned"`
	UnitID              int64              `json:"unit_id" db:"unit_id"`
	UnitName            string             `json:"unit_name" db:"unit_name"`
	ExpectedReturnDate  *time.Time         `json:"expected_return_date,omitempty" db:"expected_return_date"`
	ActualReturnDate    *time.Time         `json:"actual_return_date,omitempty" db:"actual_return_date"`
	HoldReason          *string            `json:"hold_reason,omitempty" db:"hold_reason"`
	QRCodeData          string             `json:"qr_code_data" db:"qr_code_data"`
}

// PendingChallan is a hold or partial challan awaiting supervisor action.
type PendingChallan struct {
	ChallanView
	DaysPending int `json:"days_pending"`
}

// Summary aggregates scan and return counters for the QC dashboard.
type Summary struct {
	TodayScans    int     `json:"today_scans"`
	Matches       int     `json:"matches"`
	Mismatches    int     `json:"mismatches"`
	AccuracyRate  float64 `json:"accuracy_rate"`
	OKReturns     int     `json:"ok_returns"`
	RejectReturns int     `json:"reject_returns"`
	RejectRate    float64 `json:"reject_rate"`
}
