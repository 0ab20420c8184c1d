package masterdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stitchtrack/stitchtrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	UpdateCategory(ctx context.Context, id int64, req UpdateCategoryRequest, now time.Time) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreateStyle(ctx context.Context, req CreateStyleRequest) (*Style, error)
	ListStyles(ctx context.Context, categoryID *int64) ([]Style, error)
	GetStyle(ctx context.Context, id int64) (*Style, error)
	CreateColor(ctx context.Context, req CreateColorRequest) (*Color, error)
	ListColors(ctx context.Context, styleID *int64) ([]Color, error)
	GetColor(ctx context.Context, id int64) (*Color, error)
	CreateSize(ctx context.Context, req CreateSizeRequest) (*Size, error)
	ListSizes(ctx context.Context, colorID *int64) ([]Size, error)
	CreateProductDetail(ctx context.Context, req CreateProductDetailRequest) (*ProductDetail, error)
	ListProductDetails(ctx context.Context, category *string) ([]ProductDetail, error)
	GetProductDetail(ctx context.Context, id int64) (*ProductDetail, error)
	ProductDetailByStyleNo(ctx context.Context, styleNo string) (*ProductDetail, error)
	UpdateProductDetail(ctx context.Context, id int64, req UpdateProductDetailRequest, now time.Time) (*ProductDetail, error)
	DeleteProductDetail(ctx context.Context, id int64) error
	LatestPlanNumber(ctx context.Context) (string, error)
	PendingPlans(ctx context.Context) ([]CuttingPlan, error)
}

// Service manages master data and cutting-plan imports.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, clock shared.Clock, logger *slog.Logger) *Service {
	return &Service{repo: repo, clock: clock, logger: logger}
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	return s.repo.CreateCategory(ctx, req)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// GetCategory retrieves a category.
func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// UpdateCategory patches a category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, req UpdateCategoryRequest) (*Category, error) {
	return s.repo.UpdateCategory(ctx, id, req, s.clock.Now())
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// CreateStyle registers a style under an existing category.
func (s *Service) CreateStyle(ctx context.Context, req CreateStyleRequest) (*Style, error) {
	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	return s.repo.CreateStyle(ctx, req)
}

// ListStyles returns styles, optionally scoped to a category.
func (s *Service) ListStyles(ctx context.Context, categoryID *int64) ([]Style, error) {
	return s.repo.ListStyles(ctx, categoryID)
}

// GetStyle retrieves a style.
func (s *Service) GetStyle(ctx context.Context, id int64) (*Style, error) {
	return s.repo.GetStyle(ctx, id)
}

// CreateColor registers a color under an existing style.
func (s *Service) CreateColor(ctx context.Context, req CreateColorRequest) (*Color, error) {
	if _, err := s.repo.GetStyle(ctx, req.StyleID); err != nil {
		return nil, err
	}
	return s.repo.CreateColor(ctx, req)
}

// ListColors returns colors, optionally scoped to a style.
func (s *Service) ListColors(ctx context.Context, styleID *int64) ([]Color, error) {
	return s.repo.ListColors(ctx, styleID)
}

// CreateSize registers a size under an existing color.
func (s *Service) CreateSize(ctx context.Context, req CreateSizeRequest) (*Size, error) {
	if _, err := s.repo.GetColor(ctx, req.ColorID); err != nil {
		return nil, err
	}
	return s.repo.CreateSize(ctx, req)
}

// ListSizes returns sizes, optionally scoped to a color.
func (s *Service) ListSizes(ctx context.Context, colorID *int64) ([]Size, error) {
	return s.repo.ListSizes(ctx, colorID)
}

// CreateProductDetail registers a product detail record.
func (s *Service) CreateProductDetail(ctx context.Context, req CreateProductDetailRequest) (*ProductDetail, error) {
	return s.repo.CreateProductDetail(ctx, req)
}

// ListProductDetails returns product details, optionally scoped to a category.
func (s *Service) ListProductDetails(ctx context.Context, category *string) ([]ProductDetail, error) {
	return s.repo.ListProductDetails(ctx, category)
}

// GetProductDetail retrieves a product detail.
func (s *Service) GetProductDetail(ctx context.Context, id int64) (*ProductDetail, error) {
	return s.repo.GetProductDetail(ctx, id)
}

// UpdateProductDetail patches a product detail.
func (s *Service) UpdateProductDetail(ctx context.Context, id int64, req UpdateProductDetailRequest) (*ProductDetail, error) {
	return s.repo.UpdateProductDetail(ctx, id, req, s.clock.Now())
}

// DeleteProductDetail removes a product detail.
func (s *Service) DeleteProductDetail(ctx context.Context, id int64) error {
	return s.repo.DeleteProductDetail(ctx, id)
}

// ============================================================================
// WORKBOOK IMPORT
// ============================================================================

// ImportWorkbook reads a master-data spreadsheet and upserts the category,
// style, color and size hierarchy row by row. Rows that fail validation or
// persistence are reported with their sheet row number; the rest still land.
func (s *Service) ImportWorkbook(ctx context.Context, reader io.Reader) (*ImportResult, error) {
	book, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	rows, err := book.GetRows(book.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyWorkbook
	}

	columns, err := importColumnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for idx, row := range rows[1:] {
		sheetRow := idx + 2

		parsed, err := parseImportRow(columns, row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: sheetRow, Message: err.Error()})
			continue
		}

		if err := s.importRow(ctx, parsed); err != nil {
			result.Errors = append(result.Errors, RowError{Row: sheetRow, Message: err.Error()})
			continue
		}
		result.Processed++
	}
	return result, nil
}

func (s *Service) importRow(ctx context.Context, row ImportRow) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		categoryID, err := tx.GetOrCreateCategory(ctx, row.Category)
		if err != nil {
			return fmt.Errorf("category %q: %w", row.Category, err)
		}
		styleID, err := tx.GetOrCreateStyle(ctx, row.StyleCode, row.StyleName, categoryID)
		if err != nil {
			return fmt.Errorf("style %q: %w", row.StyleCode, err)
		}
		colorID, err := tx.GetOrCreateColorByCode(ctx, styleID, row.ColorCode, row.ColorName, row.ColorHex)
		if err != nil {
			return fmt.Errorf("color %q: %w", row.ColorCode, err)
		}
		if _, err := tx.GetOrCreateSizeByCode(ctx, colorID, row.SizeCode, row.SizeName, row.SizeOrder); err != nil {
			return fmt.Errorf("size %q: %w", row.SizeCode, err)
		}
		return nil
	})
}

func importColumnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, required := range importColumns {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return index, nil
}

func parseImportRow(columns map[string]int, row []string) (ImportRow, error) {
	get := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	parsed := ImportRow{
		Category:  get("category"),
		StyleName: get("style_name"),
		StyleCode: get("style_code"),
		ColorName: get("color_name"),
		ColorCode: get("color_code"),
		ColorHex:  get("color_hex"),
		SizeName:  get("size_name"),
		SizeCode:  get("size_code"),
	}
	for _, required := range importColumns {
		if get(required) == "" {
			return ImportRow{}, fmt.Errorf("missing value for %s", required)
		}
	}
	if raw := get("size_order"); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return ImportRow{}, fmt.Errorf("size_order %q is not a number", raw)
		}
		parsed.SizeOrder = order
	}
	return parsed, nil
}

// ============================================================================
// CUTTING PLANS
// ============================================================================

// PlanTemplate renders the downloadable CSV rows for a category, one block
// per product detail and color.
func (s *Service) PlanTemplate(ctx context.Context, category string) ([][]string, error) {
	details, err := s.repo.ListProductDetails(ctx, &category)
	if err != nil {
		return nil, err
	}
	return BuildPlanTemplate(category, details), nil
}

// UploadPlans parses a filled plan sheet and books one pending cutting plan
// per usable block, resolving (and creating where missing) the master rows
// each block refers to. The whole upload lands in one transaction.
func (s *Service) UploadPlans(ctx context.Context, category string, reader io.Reader) ([]CuttingPlan, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read plan sheet: %w", err)
	}

	blocks := ParsePlanBlocks(records, category)
	if len(blocks) == 0 {
		return nil, ErrNoPlanBlocks
	}

	latest, err := s.repo.LatestPlanNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest plan number: %w", err)
	}

	now := s.clock.Now()
	var plans []CuttingPlan
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number := latest
		for _, block := range blocks {
			plan, err := s.buildPlan(ctx, tx, block)
			if err != nil {
				return err
			}
			number = shared.NextInSeries(number, "CT", 4)
			plan.CTNumber = number
			plan.CreatedAt = now

			id, err := tx.CreatePlan(ctx, *plan)
			if err != nil {
				return err
			}
			plan.ID = id
			plans = append(plans, *plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Service) buildPlan(ctx context.Context, tx TxRepository, block PlanBlock) (*CuttingPlan, error) {
	categoryID, err := tx.GetOrCreateCategory(ctx, block.Category)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", block.Category, err)
	}
	styleID, err := tx.GetOrCreateStyle(ctx, block.StyleCode, block.StyleCode, categoryID)
	if err != nil {
		return nil, fmt.Errorf("style %q: %w", block.StyleCode, err)
	}
	colorID, err := tx.GetOrCreateColorByName(ctx, styleID, block.ColorName)
	if err != nil {
		return nil, fmt.Errorf("color %q: %w", block.ColorName, err)
	}

	// Sizes from the product detail come first so their sort order wins over
	// whatever order the sheet listed them in.
	detail, err := s.repo.ProductDetailByStyleNo(ctx, block.StyleCode)
	if err != nil {
		return nil, err
	}
	order := 0
	if detail != nil {
		for _, name := range SplitList(deref(detail.AllSizes)) {
			if _, err := tx.GetOrCreateSizeByName(ctx, colorID, name, order); err != nil {
				return nil, fmt.Errorf("size %q: %w", name, err)
			}
			order++
		}
	}

	ratios := make([]SizeRatio, 0, len(block.Ratios))
	for _, entry := range block.Ratios {
		sizeID, err := tx.GetOrCreateSizeByName(ctx, colorID, entry.SizeName, order)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", entry.SizeName, err)
		}
		order++
		ratios = append(ratios, SizeRatio{SizeID: sizeID, SizeName: entry.SizeName, Ratio: entry.Ratio})
	}

	pieces := PlanPieces(block.TotalPieces, block.Ratios)
	for i := range pieces {
		pieces[i].SizeID = ratios[i].SizeID
	}

	plan := &CuttingPlan{
		Category:    block.Category,
		StyleID:     styleID,
		StyleCode:   block.StyleCode,
		ColorID:     colorID,
		ColorName:   block.ColorName,
		TotalPieces: block.TotalPieces,
		SizeRatios:  ratios,
		SizePieces:  pieces,
		Status:      PlanStatusPending,
	}
	if block.SubCategory != "" {
		plan.SubCategory = &block.SubCategory
	}
	return plan, nil
}

// PendingPlans lists uploaded plans that still await cutting.
func (s *Service) PendingPlans(ctx context.Context) ([]CuttingPlan, error) {
	return s.repo.PendingPlans(ctx)
}
