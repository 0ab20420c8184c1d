package stitching

import (
	"fmt"
	"time"
)

// ============================================================================
// CHALLAN STATUS
// ============================================================================

// DCStatus is the reconciliation state of a delivery challan.
type DCStatus string

const (
	DCStatusOpen    DCStatus = "open"    // Dispatched, nothing received back yet
	DCStatusPartial DCStatus = "partial" // Some pieces received back
	DCStatusHold    DCStatus = "hold"    // Discrepancy found, needs supervisor attention
	DCStatusCleared DCStatus = "cleared" // Fully reconciled, eligible for payment
)

// IsValid checks if the status is valid.
func (s DCStatus) IsValid() bool {
	switch s {
	case DCStatusOpen, DCStatusPartial, DCStatusHold, DCStatusCleared:
		return true
	default:
		return false
	}
}

// ============================================================================
// ENTITIES
// ============================================================================

// StitchingUnit is an external contractor that stitches dispatched bundles.
type StitchingUnit struct {
	ID             int64      `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	ContactPerson  string     `json:"contact_person" db:"contact_person"`
	Phone          string     `json:"phone" db:"phone"`
	Email          *string    `json:"email,omitempty" db:"email"`
	Address        string     `json:"address" db:"address"`
	CapacityPerDay int        `json:"capacity_per_day" db:"capacity_per_day"`
	RatePerPiece   float64    `json:"rate_per_piece" db:"rate_per_piece"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DeliveryChallan tracks one dispatch of bundles to a stitching unit.
type DeliveryChallan struct {
	ID                  int64      `json:"id" db:"id"`
	DCNumber            string     `json:"dc_number" db:"dc_number"`
	StitchingUnitID     int64      `json:"stitching_unit_id" db:"stitching_unit_id"`
	CuttingLotID        int64      `json:"cutting_lot_id" db:"cutting_lot_id"`
	DCDate              time.Time  `json:"dc_date" db:"dc_date"`
	TotalPiecesSent     int        `json:"total_pieces_sent" db:"total_pieces_sent"`
	TotalPiecesReturned int        `json:"total_pieces_returned" db:"total_pieces_returned"`
	Status              DCStatus   `json:"status" db:"status"`
	QRCodeData          string     `json:"qr_code_data" db:"qr_code_data"`
	QRCodePath          *string    `json:"qr_code_path,omitempty" db:"qr_code_path"`
	DispatchDate        *time.Time `json:"dispatch_date,omitempty" db:"dispatch_date"`
	ExpectedReturnDate  *time.Time `json:"expected_return_date,omitempty" db:"expected_return_date"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty" db:"actual_return_date"`
	HoldReason          *string    `json:"hold_reason,omitempty" db:"hold_reason"`
	Notes               *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DCItem links one bundle to a challan with its piece counts.
type DCItem struct {
	ID               int64      `json:"id" db:"id"`
	DCID             int64      `json:"dc_id" db:"dc_id"`
	BundleID         int64      `json:"bundle_id" db:"bundle_id"`
	QuantitySent     int        `json:"quantity_sent" db:"quantity_sent"`
	QuantityReturned int        `json:"quantity_returned" db:"quantity_returned"`
	QuantityOK       int        `json:"quantity_ok" db:"quantity_ok"`
	QuantityRejected int        `json:"quantity_rejected" db:"quantity_rejected"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DCItemDetail is a challan item joined with its bundle for display.
type DCItemDetail struct {
	DCItem
	BundleNumber string `json:"bundle_number" db:"bundle_number"`
	PanelType    string `json:"panel_type" db:"panel_type"`
}

// ChallanDetail bundles a challan with its items.
type ChallanDetail struct {
	DeliveryChallan
	Items []DCItemDetail `json:"items"`
}

// QRPayload is the scannable payload printed on a challan document.
// Scanners decode it back with qc.DecodePayload.
func QRPayload(dcNumber string, dcID int64, totalPieces int) string {
	return fmt.Sprintf("DC|%s|%d|%d", dcNumber, dcID, totalPieces)
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CreateUnitRequest represents a request to register a stitching unit.
type CreateUnitRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	ContactPerson  string  `json:"contact_person" validate:"required,max=100"`
	Phone          string  `json:"phone" validate:"required,max=20"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Address        string  `json:"address" validate:"required,max=500"`
	CapacityPerDay int     `json:"capacity_per_day" validate:"required,gt=0"`
	RatePerPiece   float64 `json:"rate_per_piece" validate:"required,gt=0"`
}

// UpdateUnitRequest carries partial stitching unit updates.
type UpdateUnitRequest struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	ContactPerson  *string  `json:"contact_person,omitempty" validate:"omitempty,max=100"`
	Phone          *string  `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email          *string  `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Address        *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	CapacityPerDay *int     `json:"capacity_per_day,omitempty" validate:"omitempty,gt=0"`
	RatePerPiece   *float64 `json:"rate_per_piece,omitempty" validate:"omitempty,gt=0"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

// ChallanItemRequest is one bundle entry of a challan creation request.
type ChallanItemRequest struct {
	BundleID     int64 `json:"bundle_id" validate:"required,gt=0"`
	QuantitySent int   `json:"quantity_sent" validate:"required,gt=0"`
}

// CreateChallanRequest represents a request to dispatch bundles on a challan.
type CreateChallanRequest struct {
	StitchingUnitID    int64                `json:"stitching_unit_id" validate:"required,gt=0"`
	CuttingLotID       int64                `json:"cutting_lot_id" validate:"required,gt=0"`
	ExpectedReturnDate *time.Time           `json:"expected_return_date,omitempty"`
	Notes              *string              `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items              []ChallanItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateChallanRequest carries mutable challan fields.
type UpdateChallanRequest struct {
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
	Notes              *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ListChallansRequest filters challan listings.
type ListChallansRequest struct {
	Status *DCStatus `json:"status,omitempty"`
	UnitID *int64    `json:"unit_id,omitempty"`
	Limit  int       `json:"limit" validate:"gte=0,lte=1000"`
	Offset int       `json:"offset" validate:"gte=0"`
}

// Dashboard summarises challan flow for the stitching dashboard.
type Dashboard struct {
	ChallansByStatus map[DCStatus]int `json:"dc_status"`
	ActiveUnits      int              `json:"active_units"`
}
