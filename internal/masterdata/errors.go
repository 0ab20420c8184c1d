package masterdata

import "errors"

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryNameTaken     = errors.New("category name already exists")
	ErrStyleNotFound         = errors.New("style not found")
	ErrStyleCodeTaken        = errors.New("style code already exists")
	ErrColorNotFound         = errors.New("color not found")
	ErrSizeNotFound          = errors.New("size not found")
	ErrProductDetailNotFound = errors.New("product detail not found")
	ErrMissingColumns        = errors.New("workbook is missing required columns")
	ErrEmptyWorkbook         = errors.New("workbook has no data rows")
	ErrNoPlanBlocks          = errors.New("sheet contains no usable plan blocks")
)
