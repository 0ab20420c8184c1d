package cutting

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// BUNDLE STATUS
// ============================================================================

// BundleStatus represents the inventory-ledger state of a bundle.
type BundleStatus string

const (
	BundleStatusCreated    BundleStatus = "created"    // Cut and bundled, waiting for dispatch
	BundleStatusDispatched BundleStatus = "dispatched" // Out with a stitching unit
	BundleStatusReturned   BundleStatus = "returned"   // Back from stitching
)

// IsValid checks if the status is valid.
func (s BundleStatus) IsValid() bool {
	switch s {
	case BundleStatusCreated, BundleStatusDispatched, BundleStatusReturned:
		return true
	default:
		return false
	}
}

// CanDispatch reports whether a bundle in this status may join a challan.
func (s BundleStatus) CanDispatch() bool {
	return s == BundleStatusCreated
}

// ============================================================================
// PANEL TYPE
// ============================================================================

// PanelType is the garment component a bundle represents.
type PanelType string

const (
	PanelFront  PanelType = "front"
	PanelBack   PanelType = "back"
	PanelSleeve PanelType = "sleeve"
	PanelCollar PanelType = "collar"
	PanelCuff   PanelType = "cuff"
	PanelPocket PanelType = "pocket"
)

// IsValid checks if the panel type is valid.
func (p PanelType) IsValid() bool {
	switch p {
	case PanelFront, PanelBack, PanelSleeve, PanelCollar, PanelCuff, PanelPocket:
		return true
	default:
		return false
	}
}

// ============================================================================
// ENTITIES
// ============================================================================

// CuttingLot groups the bundles produced by one cutting program.
type CuttingLot struct {
	ID          int64      `json:"id" db:"id"`
	LotNumber   string     `json:"lot_number" db:"lot_number"`
	StyleID     int64      `json:"style_id" db:"style_id"`
	ColorID     int64      `json:"color_id" db:"color_id"`
	FabricLot   string     `json:"fabric_lot" db:"fabric_lot"`
	LayNumber   int        `json:"lay_number" db:"lay_number"`
	TotalPieces int        `json:"total_pieces" db:"total_pieces"`
	CuttingDate time.Time  `json:"cutting_date" db:"cutting_date"`
	CreatedBy   string     `json:"created_by" db:"created_by"`
	Notes       *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Bundle is a sub-lot of cut pieces of one size and panel type.
type Bundle struct {
	ID           int64        `json:"id" db:"id"`
	BundleNumber string       `json:"bundle_number" db:"bundle_number"`
	CuttingLotID int64        `json:"cutting_lot_id" db:"cutting_lot_id"`
	SizeID       int64        `json:"size_id" db:"size_id"`
	PanelType    PanelType    `json:"panel_type" db:"panel_type"`
	Quantity     int          `json:"quantity" db:"quantity"`
	BarcodeData  string       `json:"barcode_data" db:"barcode_data"`
	QRCodePath   *string      `json:"qr_code_path,omitempty" db:"qr_code_path"`
	BarcodePath  *string      `json:"barcode_path,omitempty" db:"barcode_path"`
	Status       BundleStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time   `json:"updated_at,omitempty" db:"updated_at"`
}

// ============================================================================
// PROGRAM EXPANSION
// ============================================================================

// SizeRatio is one (size, ratio) entry of a cutting program.
type SizeRatio struct {
	SizeID   int64  `json:"size_id" validate:"required,gt=0"`
	SizeName string `json:"size_name" validate:"required,max=50"`
	Ratio    int    `json:"ratio" validate:"required,gt=0"`
}

// BundleSpec is one concrete bundle a program expands to.
type BundleSpec struct {
	SizeID   int64
	SizeName string
	Panel    PanelType
	Quantity int
}

// ExpandProgram turns a size-ratio x panel-type x lay-count request into
// one bundle spec per (size, panel) pair. Pieces per size = ratio * layCount,
// replicated for every requested panel type.
func ExpandProgram(ratios []SizeRatio, panels []PanelType, layCount int) ([]BundleSpec, int) {
	var specs []BundleSpec
	total := 0
	for _, sr := range ratios {
		pieces := sr.Ratio * layCount
		if pieces <= 0 {
			continue
		}
		for _, panel := range panels {
			specs = append(specs, BundleSpec{
				SizeID:   sr.SizeID,
				SizeName: sr.SizeName,
				Panel:    panel,
				Quantity: pieces,
			})
			total += pieces
		}
	}
	return specs, total
}

// BundleNumber composes a bundle number from lot, size, panel and sequence,
// e.g. "LOT001-M-FRONT-003".
func BundleNumber(lotNumber, sizeName string, panel PanelType, sequence int) string {
	return fmt.Sprintf("%s-%s-%s-%03d", lotNumber, sizeName, strings.ToUpper(string(panel)), sequence)
}

// BarcodePayload is the scannable payload printed on a bundle sticker.
func BarcodePayload(bundleNumber, lotNumber, sizeName string, panel PanelType, quantity int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", bundleNumber, lotNumber, sizeName, panel, quantity)
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CreateProgramRequest represents a request to create a cutting program.
type CreateProgramRequest struct {
	StyleID    int64       `json:"style_id" validate:"required,gt=0"`
	ColorID    int64       `json:"color_id" validate:"required,gt=0"`
	FabricLot  string      `json:"fabric_lot" validate:"required,max=100"`
	LayNumber  int         `json:"lay_number" validate:"required,gt=0"`
	LayCount   int         `json:"lay_count" validate:"required,gt=0"`
	SizeRatios []SizeRatio `json:"size_ratios" validate:"required,min=1,dive"`
	PanelTypes []PanelType `json:"panel_types" validate:"required,min=1"`
	CreatedBy  string      `json:"created_by" validate:"required,max=100"`
	Notes      *string     `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ProgramResult is the outcome of creating a cutting program.
type ProgramResult struct {
	Lot          CuttingLot     `json:"cutting_lot"`
	Bundles      []Bundle       `json:"bundles"`
	TotalBundles int            `json:"total_bundles"`
	TotalPieces  int            `json:"total_pieces"`
	Summary      map[string]int `json:"summary"`
}

// ListLotsRequest filters lot listings.
type ListLotsRequest struct {
	Limit  int `json:"limit" validate:"gte=0,lte=1000"`
	Offset int `json:"offset" validate:"gte=0"`
}

// SearchBundlesRequest filters bundle searches.
type SearchBundlesRequest struct {
	LotNumber    *string       `json:"lot_number,omitempty"`
	BundleNumber *string       `json:"bundle_number,omitempty"`
	Status       *BundleStatus `json:"status,omitempty"`
}

// StickerData carries everything needed to print one bunch sticker.
type StickerData struct {
	BundleID     int64     `json:"bundle_id" db:"bundle_id"`
	BundleNumber string    `json:"bundle_number" db:"bundle_number"`
	StyleName    string    `json:"style_name" db:"style_name"`
	ColorName    string    `json:"color_name" db:"color_name"`
	SizeName     string    `json:"size_name" db:"size_name"`
	PanelType    PanelType `json:"panel_type" db:"panel_type"`
	Quantity     int       `json:"quantity" db:"quantity"`
	LotNumber    string    `json:"lot_number" db:"lot_number"`
	BarcodeData  string    `json:"barcode_data" db:"barcode_data"`
	QRCodePath   *string   `json:"qr_code_path,omitempty" db:"qr_code_path"`
	BarcodePath  *string   `json:"barcode_path,omitempty" db:"barcode_path"`
}

// Stats summarises the cutting stage for dashboards.
type Stats struct {
	TotalLots       int                  `json:"total_lots"`
	BundlesByStatus map[BundleStatus]int `json:"bundle_status"`
}
