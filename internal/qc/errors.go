package qc

import "errors"

// Domain errors for quality control.
var (
	ErrBundleNotFound    = errors.New("bundle not found")
	ErrItemNotOnChallan  = errors.New("bundle is not part of this challan")
	ErrReturnExceedsSent = errors.New("returned quantity exceeds quantity sent")
	ErrReasonRequired    = errors.New("a reason is required to place a challan on hold")
	ErrInvalidStatus     = errors.New("unknown challan status")
	ErrInvalidScanType   = errors.New("scan type must be outbound or inbound")
	ErrInvalidReturnType = errors.New("return type must be ok or reject")
)
