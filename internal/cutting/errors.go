package cutting

import "errors"

// Domain errors for the cutting stage.
var (
	ErrLotNotFound    = errors.New("cutting lot not found")
	ErrBundleNotFound = errors.New("bundle not found")
	ErrStyleNotFound  = errors.New("style not found")
	ErrColorNotFound  = errors.New("color not found")

	ErrNoSizeRatios    = errors.New("at least one size ratio is required")
	ErrNoPanelTypes    = errors.New("at least one panel type is required")
	ErrInvalidRatio    = errors.New("size ratio must be greater than zero")
	ErrInvalidLayCount = errors.New("lay count must be greater than zero")
	ErrInvalidPanel    = errors.New("unknown panel type")
)
