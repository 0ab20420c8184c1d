package payments

import (
	"time"
)

// RejectDeductionRate is the share of the piece rate withheld for every
// rejected piece.
const RejectDeductionRate = 0.5

// ============================================================================
// PAYMENT STATUS
// ============================================================================

// PaymentStatus is the settlement state of a contractor payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusCleared PaymentStatus = "cleared"
)

// IsValid checks if the status is valid.
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusCleared
}

// ============================================================================
// ENTITIES
// ============================================================================

// Payment is one settlement issued to a stitching unit.
type Payment struct {
	ID              int64         `json:"id" db:"id"`
	PaymentNumber   string        `json:"payment_number" db:"payment_number"`
	StitchingUnitID int64         `json:"stitching_unit_id" db:"stitching_unit_id"`
	PaymentDate     time.Time     `json:"payment_date" db:"payment_date"`
	TotalPieces     int           `json:"total_pieces" db:"total_pieces"`
	RatePerPiece    float64       `json:"rate_per_piece" db:"rate_per_piece"`
	GrossAmount     float64       `json:"gross_amount" db:"gross_amount"`
	DeductionAmount float64       `json:"deduction_amount" db:"deduction_amount"`
	NetAmount       float64       `json:"net_amount" db:"net_amount"`
	Status          PaymentStatus `json:"status" db:"status"`
	PaymentMethod   string        `json:"payment_method" db:"payment_method"`
	ReferenceNumber *string       `json:"reference_number,omitempty" db:"reference_number"`
	Notes           *string       `json:"notes,omitempty" db:"notes"`
	CreatedBy       string        `json:"created_by" db:"created_by"`
	ClearedDate     *time.Time    `json:"cleared_date,omitempty" db:"cleared_date"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// ============================================================================
// CALCULATION
// ============================================================================

// UnitInfo is the slice of a stitching unit the calculator needs.
type UnitInfo struct {
	ID           int64
	Name         string
	RatePerPiece float64
}

// ClearedChallanRow is one cleared challan with its reject total.
type ClearedChallanRow struct {
	DCID                int64
	DCNumber            string
	TotalPiecesReturned int
	RejectedPieces      int
}

// ChallanPayment is the payable breakdown of one cleared challan.
type ChallanPayment struct {
	DCID                int64   `json:"dc_id"`
	DCNumber            string  `json:"dc_number"`
	TotalPiecesReturned int     `json:"total_pieces_returned"`
	OKPieces            int     `json:"total_ok_pieces"`
	RatePerPiece        float64 `json:"rate_per_piece"`
	Amount              float64 `json:"amount"`
}

// Calculation is a payment proposal for a unit over a set of cleared challans.
type Calculation struct {
	StitchingUnitID    int64            `json:"stitching_unit_id"`
	UnitName           string           `json:"unit_name"`
	TotalPieces        int              `json:"total_pieces"`
	TotalOKPieces      int              `json:"total_ok_pieces"`
	RatePerPiece       float64          `json:"rate_per_piece"`
	GrossAmount        float64          `json:"gross_amount"`
	SuggestedDeduction float64          `json:"suggested_deduction"`
	NetAmount          float64          `json:"net_amount"`
	Challans           []ChallanPayment `json:"dc_list"`
}

// OKPieces is the payable piece count of a challan. Rejects above the
// returned count floor at zero rather than going negative.
func OKPieces(returned, rejected int) int {
	if ok := returned - rejected; ok > 0 {
		return ok
	}
	return 0
}

// BuildCalculation prices a set of cleared challans for one unit. Only OK
// pieces earn the full rate; every rejected piece additionally suggests a
// deduction of half the rate.
func BuildCalculation(unit UnitInfo, rows []ClearedChallanRow) Calculation {
	calc := Calculation{
		StitchingUnitID: unit.ID,
		UnitName:        unit.Name,
		RatePerPiece:    unit.RatePerPiece,
	}

	totalRejected := 0
	for _, row := range rows {
		ok := OKPieces(row.TotalPiecesReturned, row.RejectedPieces)
		amount := float64(ok) * unit.RatePerPiece

		calc.Challans = append(calc.Challans, ChallanPayment{
			DCID:                row.DCID,
			DCNumber:            row.DCNumber,
			TotalPiecesReturned: row.TotalPiecesReturned,
			OKPieces:            ok,
			RatePerPiece:        unit.RatePerPiece,
			Amount:              amount,
		})
		calc.TotalPieces += row.TotalPiecesReturned
		calc.TotalOKPieces += ok
		calc.GrossAmount += amount
		totalRejected += row.RejectedPieces
	}

	calc.SuggestedDeduction = float64(totalRejected) * unit.RatePerPiece * RejectDeductionRate
	calc.NetAmount = calc.GrossAmount - calc.SuggestedDeduction
	return calc
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CalculationRequest scopes a payment calculation.
type CalculationRequest struct {
	StitchingUnitID int64     `json:"stitching_unit_id" validate:"required,gt=0"`
	FromDate        time.Time `json:"from_date" validate:"required"`
	ToDate          time.Time `json:"to_date" validate:"required"`
	DCIDs           []int64   `json:"dc_ids,omitempty"`
}

// CreatePaymentRequest represents a request to issue a payment.
type CreatePaymentRequest struct {
	StitchingUnitID int64      `json:"stitching_unit_id" validate:"required,gt=0"`
	PaymentDate     time.Time  `json:"payment_date" validate:"required"`
	FromDate        *time.Time `json:"from_date,omitempty"`
	DCIDs           []int64    `json:"dc_ids,omitempty"`
	DeductionAmount *float64   `json:"deduction_amount,omitempty" validate:"omitempty,gte=0"`
	PaymentMethod   string     `json:"payment_method" validate:"required,max=50"`
	ReferenceNumber *string    `json:"reference_number,omitempty" validate:"omitempty,max=100"`
	Notes           *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	CreatedBy       string     `json:"created_by" validate:"required,max=100"`
}

// ListPaymentsRequest filters payment listings.
type ListPaymentsRequest struct {
	FromDate time.Time      `json:"from_date"`
	ToDate   time.Time      `json:"to_date"`
	UnitID   *int64         `json:"unit_id,omitempty"`
	Status   *PaymentStatus `json:"status,omitempty"`
}

// PendingUnitSummary aggregates pending payments for one unit.
type PendingUnitSummary struct {
	StitchingUnitID int64   `json:"stitching_unit_id" db:"stitching_unit_id"`
	UnitName        string  `json:"unit_name" db:"unit_name"`
	TotalAmount     float64 `json:"total_amount" db:"total_amount"`
	PaymentCount    int     `json:"payment_count" db:"payment_count"`
}

// MonthSummary totals the current month's payments.
type MonthSummary struct {
	TotalPayments int     `json:"total_payments"`
	TotalAmount   float64 `json:"total_amount"`
	PendingAmount float64 `json:"pending_amount"`
	ClearedAmount float64 `json:"cleared_amount"`
}

// Dashboard is the payment dashboard payload.
type Dashboard struct {
	ThisMonth     MonthSummary         `json:"this_month"`
	PendingByUnit []PendingUnitSummary `json:"pending_by_unit"`
}

// ClearedChallanInfo is a cleared challan listed for payment selection.
type ClearedChallanInfo struct {
	ID                  int64      `json:"id" db:"id"`
	DCNumber            string     `json:"dc_number" db:"dc_number"`
	DCDate              time.Time  `json:"dc_date" db:"dc_date"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty" db:"actual_return_date"`
	TotalPiecesReturned int        `json:"total_pieces_returned" db:"total_pieces_returned"`
	AlreadyPaid         bool       `json:"already_paid" db:"already_paid"`
	PaymentID           *int64     `json:"payment_id,omitempty" db:"payment_id"`
}
