package stitching

import "errors"

// Domain errors for the stitching stage.
var (
	ErrUnitNotFound    = errors.New("stitching unit not found")
	ErrUnitNameTaken   = errors.New("stitching unit name already exists")
	ErrChallanNotFound = errors.New("delivery challan not found")
	ErrLotNotFound     = errors.New("cutting lot not found")

	ErrNoItems                = errors.New("at least one challan item is required")
	ErrDuplicateChallanNumber = errors.New("challan number already issued")
	ErrBundleNotFound         = errors.New("one or more bundles not found")
	ErrBundleUnavailable      = errors.New("bundle already dispatched or returned")
	ErrDuplicateBundle        = errors.New("bundle listed more than once")
)
