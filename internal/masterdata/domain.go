package masterdata

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Category groups styles, e.g. Shirts or Night Set.
type Category struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Style is a product style within a category, identified by a unique code.
type Style struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	CategoryID  int64      `json:"category_id"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Color belongs to a style. HexValue is optional display metadata.
type Color struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	StyleID   int64      `json:"style_id"`
	HexValue  *string    `json:"hex_value,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Size belongs to a color. SortOrder keeps S before M before L in listings.
type Size struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	ColorID   int64      `json:"color_id"`
	SortOrder int        `json:"sort_order"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProductDetail is the flat per-style master record the cutting-plan template
// is generated from. Colors, sizes and cut parts are comma separated lists.
type ProductDetail struct {
	ID          int64      `json:"id"`
	Category    string     `json:"category"`
	SubCategory *string    `json:"sub_category,omitempty"`
	StyleNo     *string    `json:"style_no,omitempty"`
	AllColors   *string    `json:"all_colors,omitempty"`
	AllSizes    *string    `json:"all_sizes,omitempty"`
	CutParts    *string    `json:"cut_parts,omitempty"`
	CutCost     *float64   `json:"cut_cost,omitempty"`
	PrintCost   *float64   `json:"print_cost,omitempty"`
	StitchCost  *float64   `json:"stitch_cost,omitempty"`
	IronCost    *float64   `json:"iron_cost,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// PlanStatus tracks whether an uploaded cutting plan has been cut yet.
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusStarted   PlanStatus = "started"
	PlanStatusCompleted PlanStatus = "completed"
)

// SizeRatio is one size line from an uploaded plan block.
type SizeRatio struct {
	SizeID   int64   `json:"size_id"`
	SizeName string  `json:"size_name"`
	Ratio    float64 `json:"ratio"`
}

// SizePieces is the computed per-size piece count for a plan.
type SizePieces struct {
	SizeID   int64  `json:"size_id"`
	SizeName string `json:"size_name"`
	Pieces   int    `json:"pcs"`
}

// CuttingPlan is a yet-to-cut requirement uploaded ahead of the actual
// cutting program. Ratios come from the uploaded sheet; pieces are computed.
type CuttingPlan struct {
	ID          int64        `json:"id"`
	CTNumber    string       `json:"ct_number"`
	Category    string       `json:"category"`
	SubCategory *string      `json:"sub_category,omitempty"`
	StyleID     int64        `json:"style_id"`
	StyleCode   string       `json:"style_code"`
	ColorID     int64        `json:"color_id"`
	ColorName   string       `json:"color_name"`
	TotalPieces int          `json:"total_pcs"`
	SizeRatios  []SizeRatio  `json:"size_ratios"`
	SizePieces  []SizePieces `json:"size_pcs"`
	Status      PlanStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// CreateCategoryRequest creates a category.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// UpdateCategoryRequest patches a category. Nil fields are left unchanged.
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CreateStyleRequest creates a style under a category.
type CreateStyleRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Code        string  `json:"code" validate:"required,max=50"`
	CategoryID  int64   `json:"category_id" validate:"required"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CreateColorRequest creates a color under a style.
type CreateColorRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Code     string  `json:"code" validate:"required,max=50"`
	StyleID  int64   `json:"style_id" validate:"required"`
	HexValue *string `json:"hex_value,omitempty" validate:"omitempty,max=7"`
}

// CreateSizeRequest creates a size under a color.
type CreateSizeRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	Code      string `json:"code" validate:"required,max=20"`
	ColorID   int64  `json:"color_id" validate:"required"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// CreateProductDetailRequest creates a product detail record.
type CreateProductDetailRequest struct {
	Category    string   `json:"category" validate:"required,max=100"`
	SubCategory *string  `json:"sub_category,omitempty" validate:"omitempty,max=50"`
	StyleNo     *string  `json:"style_no,omitempty" validate:"omitempty,max=100"`
	AllColors   *string  `json:"all_colors,omitempty" validate:"omitempty,max=1000"`
	AllSizes    *string  `json:"all_sizes,omitempty" validate:"omitempty,max=1000"`
	CutParts    *string  `json:"cut_parts,omitempty" validate:"omitempty,max=1000"`
	CutCost     *float64 `json:"cut_cost,omitempty" validate:"omitempty,gte=0"`
	PrintCost   *float64 `json:"print_cost,omitempty" validate:"omitempty,gte=0"`
	StitchCost  *float64 `json:"stitch_cost,omitempty" validate:"omitempty,gte=0"`
	IronCost    *float64 `json:"iron_cost,omitempty" validate:"omitempty,gte=0"`
}

// UpdateProductDetailRequest patches a product detail. Nil fields are left
// unchanged.
type UpdateProductDetailRequest struct {
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	SubCategory *string  `json:"sub_category,omitempty" validate:"omitempty,max=50"`
	StyleNo     *string  `json:"style_no,omitempty" validate:"omitempty,max=100"`
	AllColors   *string  `json:"all_colors,omitempty" validate:"omitempty,max=1000"`
	AllSizes    *string  `json:"all_sizes,omitempty" validate:"omitempty,max=1000"`
	CutParts    *string  `json:"cut_parts,omitempty" validate:"omitempty,max=1000"`
	CutCost     *float64 `json:"cut_cost,omitempty" validate:"omitempty,gte=0"`
	PrintCost   *float64 `json:"print_cost,omitempty" validate:"omitempty,gte=0"`
	StitchCost  *float64 `json:"stitch_cost,omitempty" validate:"omitempty,gte=0"`
	IronCost    *float64 `json:"iron_cost,omitempty" validate:"omitempty,gte=0"`
}

// ============================================================================
// WORKBOOK IMPORT
// ============================================================================

// ImportRow is one parsed data row from a master-data workbook.
type ImportRow struct {
	Category  string
	StyleName string
	StyleCode string
	ColorName string
	ColorCode string
	ColorHex  string
	SizeName  string
	SizeCode  string
	SizeOrder int
}

// RowError attributes an import failure to a workbook row. Row is the
// 1-based sheet row number, header included.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk upload. Rows with errors are skipped, the
// rest are imported.
type ImportResult struct {
	Processed int        `json:"processed_count"`
	Errors    []RowError `json:"errors"`
}

// importColumns are the headers a master-data workbook must carry.
var importColumns = []string{
	"category", "style_name", "style_code", "color_name", "color_code", "size_name", "size_code",
}

// ============================================================================
// CUTTING PLAN PARSING
// ============================================================================

// planHeader is the first row of the downloadable cutting-plan template.
var planHeader = []string{"Category", "sub_category", "style_no", "color", "total pcs", "sizes", "Required ratio"}

// RatioEntry is one size/ratio pair parsed from an uploaded plan block.
type RatioEntry struct {
	SizeName string
	Ratio    float64
}

// PlanBlock is one style+color block parsed from an uploaded plan sheet: a
// header row with the total followed by one row per size with its ratio.
type PlanBlock struct {
	Category    string
	SubCategory string
	StyleCode   string
	ColorName   string
	TotalPieces int
	Ratios      []RatioEntry
}

// SplitList splits a comma separated master-data field, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// BuildPlanTemplate renders the CSV rows for a category's cutting-plan
// template. One block per product detail and color: a header row the user
// fills the total into, then a row per size for the ratio, then a blank
// separator. Details without colors still get a single block.
func BuildPlanTemplate(category string, details []ProductDetail) [][]string {
	rows := [][]string{planHeader}

	for _, pd := range details {
		colors := SplitList(deref(pd.AllColors))
		sizes := SplitList(deref(pd.AllSizes))

		subCategory := deref(pd.SubCategory)
		if subCategory == "" && isNightSet(pd.Category) {
			subCategory = "top"
		}

		if len(colors) == 0 {
			colors = []string{""}
		}
		for _, color := range colors {
			rows = append(rows, []string{pd.Category, subCategory, deref(pd.StyleNo), color, "", "", ""})
			for _, size := range sizes {
				rows = append(rows, []string{"", "", "", "", "", size, ""})
			}
			rows = append(rows, nil)
		}
	}
	return rows
}

func isNightSet(category string) bool {
	switch strings.ToLower(category) {
	case "night set", "m. night set":
		return true
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParsePlanBlocks walks the uploaded sheet rows and extracts plan blocks.
// The header row is skipped, as are blocks missing a style or color and
// blocks whose total does not parse to a positive number. Size rows with an
// unparsable ratio count as ratio 0 so the size still appears with 0 pieces.
func ParsePlanBlocks(rows [][]string, defaultCategory string) []PlanBlock {
	var blocks []PlanBlock

	i := 1
	for i < len(rows) {
		row := rows[i]
		i++
		if isBlankRow(row) {
			continue
		}

		block := PlanBlock{
			Category:    cell(row, 0),
			SubCategory: cell(row, 1),
			StyleCode:   cell(row, 2),
			ColorName:   cell(row, 3),
		}
		if block.Category == "" {
			block.Category = defaultCategory
		}

		total, err := strconv.Atoi(cell(row, 4))
		valid := block.StyleCode != "" && block.ColorName != "" && err == nil && total > 0
		block.TotalPieces = total

		// Size rows follow until a blank separator, whether or not the
		// block header was usable.
		for i < len(rows) && isSizeRow(rows[i]) {
			name := cell(rows[i], 5)
			ratio, _ := strconv.ParseFloat(cell(rows[i], 6), 64)
			block.Ratios = append(block.Ratios, RatioEntry{SizeName: name, Ratio: ratio})
			i++
		}
		for i < len(rows) && isBlankRow(rows[i]) {
			i++
		}

		if valid {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func isSizeRow(row []string) bool {
	return !isBlankRow(row) && (cell(row, 5) != "" || cell(row, 6) != "")
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// PlanPieces apportions a block's total across its size ratios. Each size
// gets round(total * ratio / ratioSum); the last size absorbs the rounding
// remainder so the pieces always sum to the total.
func PlanPieces(total int, ratios []RatioEntry) []SizePieces {
	if len(ratios) == 0 {
		return nil
	}

	ratioSum := 0.0
	for _, r := range ratios {
		ratioSum += r.Ratio
	}
	if ratioSum == 0 {
		ratioSum = 1
	}

	out := make([]SizePieces, 0, len(ratios))
	assigned := 0
	for idx, r := range ratios {
		pcs := int(math.Round(float64(total) * r.Ratio / ratioSum))
		assigned += pcs
		if idx == len(ratios)-1 && assigned != total {
			pcs += total - assigned
		}
		if pcs < 0 {
			pcs = 0
		}
		out = append(out, SizePieces{SizeName: r.SizeName, Pieces: pcs})
	}
	return out
}
