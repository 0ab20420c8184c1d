package payments

import "errors"

// Domain errors for contractor payments.
var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrUnitNotFound          = errors.New("stitching unit not found")
	ErrNothingToPay          = errors.New("no cleared challans with payable pieces in range")
	ErrDuplicateNumber       = errors.New("payment number already issued")
	ErrInvalidDateRange      = errors.New("from date must not be after to date")
	ErrDeductionExceedsGross = errors.New("deduction exceeds gross amount")
)
