package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchtrack/stitchtrack/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations for imports and plan uploads.
type TxRepository interface {
	GetOrCreateCategory(ctx context.Context, name string) (int64, error)
	GetOrCreateStyle(ctx context.Context, code, name string, categoryID int64) (int64, error)
	GetOrCreateColorByCode(ctx context.Context, styleID int64, code, name, hex string) (int64, error)
	GetOrCreateColorByName(ctx context.Context, styleID int64, name string) (int64, error)
	GetOrCreateSizeByCode(ctx context.Context, colorID int64, code, name string, sortOrder int) (int64, error)
	GetOrCreateSizeByName(ctx context.Context, colorID int64, name string, sortOrder int) (int64, error)
	CreatePlan(ctx context.Context, plan CuttingPlan) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const styleColumns = `id, name, code, category_id, description, created_at, updated_at`

func scanStyle(row pgx.Row) (Style, error) {
	var s Style
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.CategoryID, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const colorColumns = `id, name, code, style_id, hex_value, created_at, updated_at`

func scanColor(row pgx.Row) (Color, error) {
	var c Color
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.StyleID, &c.HexValue, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const sizeColumns = `id, name, code, color_id, sort_order, created_at, updated_at`

func scanSize(row pgx.Row) (Size, error) {
	var s Size
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.ColorID, &s.SortOrder, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const productDetailColumns = `id, category, sub_category, style_no, all_colors, all_sizes, cut_parts,
       cut_cost, print_cost, stitch_cost, iron_cost, created_at, updated_at`

func scanProductDetail(row pgx.Row) (ProductDetail, error) {
	var pd ProductDetail
	err := row.Scan(
		&pd.ID, &pd.Category, &pd.SubCategory, &pd.StyleNo, &pd.AllColors, &pd.AllSizes,
		&pd.CutParts, &pd.CutCost, &pd.PrintCost, &pd.StitchCost, &pd.IronCost,
		&pd.CreatedAt, &pd.UpdatedAt,
	)
	return pd, err
}

const planColumns = `id, ct_number, category, sub_category, style_id, style_code, color_id,
       color_name, total_pcs, size_ratios, size_pcs, status, created_at, updated_at`

func scanPlan(row pgx.Row) (CuttingPlan, error) {
	var p CuttingPlan
	err := row.Scan(
		&p.ID, &p.CTNumber, &p.Category, &p.SubCategory, &p.StyleID, &p.StyleCode,
		&p.ColorID, &p.ColorName, &p.TotalPieces, &p.SizeRatios, &p.SizePieces,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// ============================================================================
// CATEGORIES
// ============================================================================

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	query := fmt.Sprintf(`
		INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING %s
	`, categoryColumns)
	c, err := scanCategory(r.pool.QueryRow(ctx, query, req.Name, req.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCategoryNameTaken
		}
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories ORDER BY name`, categoryColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory retrieves a category by ID.
func (r *Repository) GetCategory(ctx context.Context, id int64) (*Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE id = $1`, categoryColumns)
	c, err := scanCategory(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateCategory applies the non-nil fields of req.
func (r *Repository) UpdateCategory(ctx context.Context, id int64, req UpdateCategoryRequest, now time.Time) (*Category, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{now}
	argPos := 2

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if req.Name != nil {
		addSet("name", *req.Name)
	}
	if req.Description != nil {
		addSet("description", *req.Description)
	}

	query := fmt.Sprintf(`
		UPDATE categories SET %s WHERE id = $%d
		RETURNING %s
	`, joinComma(sets), argPos, categoryColumns)
	args = append(args, id)

	c, err := scanCategory(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrCategoryNameTaken
		}
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// ============================================================================
// STYLES / COLORS / SIZES
// ============================================================================

// CreateStyle inserts a style.
func (r *Repository) CreateStyle(ctx context.Context, req CreateStyleRequest) (*Style, error) {
	query := fmt.Sprintf(`
		INSERT INTO styles (name, code, category_id, description) VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, styleColumns)
	s, err := scanStyle(r.pool.QueryRow(ctx, query, req.Name, req.Code, req.CategoryID, req.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrStyleCodeTaken
		}
		return nil, err
	}
	return &s, nil
}

// ListStyles returns styles, optionally scoped to a category.
func (r *Repository) ListStyles(ctx context.Context, categoryID *int64) ([]Style, error) {
	query := fmt.Sprintf(`SELECT %s FROM styles`, styleColumns)
	args := []interface{}{}
	if categoryID != nil {
		query += ` WHERE category_id = $1`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var styles []Style
	for rows.Next() {
		s, err := scanStyle(rows)
		if err != nil {
			return nil, err
		}
		styles = append(styles, s)
	}
	return styles, rows.Err()
}

// GetStyle retrieves a style by ID.
func (r *Repository) GetStyle(ctx context.Context, id int64) (*Style, error) {
	query := fmt.Sprintf(`SELECT %s FROM styles WHERE id = $1`, styleColumns)
	s, err := scanStyle(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStyleNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateColor inserts a color.
func (r *Repository) CreateColor(ctx context.Context, req CreateColorRequest) (*Color, error) {
	query := fmt.Sprintf(`
		INSERT INTO colors (name, code, style_id, hex_value) VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, colorColumns)
	c, err := scanColor(r.pool.QueryRow(ctx, query, req.Name, req.Code, req.StyleID, req.HexValue))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListColors returns colors, optionally scoped to a style.
func (r *Repository) ListColors(ctx context.Context, styleID *int64) ([]Color, error) {
	query := fmt.Sprintf(`SELECT %s FROM colors`, colorColumns)
	args := []interface{}{}
	if styleID != nil {
		query += ` WHERE style_id = $1`
		args = append(args, *styleID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var colors []Color
	for rows.Next() {
		c, err := scanColor(rows)
		if err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

// GetColor retrieves a color by ID.
func (r *Repository) GetColor(ctx context.Context, id int64) (*Color, error) {
	query := fmt.Sprintf(`SELECT %s FROM colors WHERE id = $1`, colorColumns)
	c, err := scanColor(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrColorNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateSize inserts a size.
func (r *Repository) CreateSize(ctx context.Context, req CreateSizeRequest) (*Size, error) {
	query := fmt.Sprintf(`
		INSERT INTO sizes (name, code, color_id, sort_order) VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, sizeColumns)
	s, err := scanSize(r.pool.QueryRow(ctx, query, req.Name, req.Code, req.ColorID, req.SortOrder))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSizes returns sizes in sort order, optionally scoped to a color.
func (r *Repository) ListSizes(ctx context.Context, colorID *int64) ([]Size, error) {
	query := fmt.Sprintf(`SELECT %s FROM sizes`, sizeColumns)
	args := []interface{}{}
	if colorID != nil {
		query += ` WHERE color_id = $1`
		args = append(args, *colorID)
	}
	query += ` ORDER BY sort_order, name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []Size
	for rows.Next() {
		s, err := scanSize(rows)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}

// ============================================================================
// PRODUCT DETAILS
// ============================================================================

// CreateProductDetail inserts a product detail record.
func (r *Repository) CreateProductDetail(ctx context.Context, req CreateProductDetailRequest) (*ProductDetail, error) {
	query := fmt.Sprintf(`
		INSERT INTO product_details (
			category, sub_category, style_no, all_colors, all_sizes, cut_parts,
			cut_cost, print_cost, stitch_cost, iron_cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s
	`, productDetailColumns)
	pd, err := scanProductDetail(r.pool.QueryRow(ctx, query,
		req.Category, req.SubCategory, req.StyleNo, req.AllColors, req.AllSizes,
		req.CutParts, req.CutCost, req.PrintCost, req.StitchCost, req.IronCost,
	))
	if err != nil {
		return nil, err
	}
	return &pd, nil
}

// ListProductDetails returns product details, newest first. Passing a
// category narrows the listing.
func (r *Repository) ListProductDetails(ctx context.Context, category *string) ([]ProductDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_details`, productDetailColumns)
	args := []interface{}{}
	if category != nil {
		query += ` WHERE category = $1`
		args = append(args, *category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []ProductDetail
	for rows.Next() {
		pd, err := scanProductDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, pd)
	}
	return details, rows.Err()
}

// GetProductDetail retrieves a product detail by ID.
func (r *Repository) GetProductDetail(ctx context.Context, id int64) (*ProductDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_details WHERE id = $1`, productDetailColumns)
	pd, err := scanProductDetail(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductDetailNotFound
		}
		return nil, err
	}
	return &pd, nil
}

// ProductDetailByStyleNo finds the product detail carrying a style number,
// or nil when none does.
func (r *Repository) ProductDetailByStyleNo(ctx context.Context, styleNo string) (*ProductDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_details WHERE style_no = $1 LIMIT 1`, productDetailColumns)
	pd, err := scanProductDetail(r.pool.QueryRow(ctx, query, styleNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pd, nil
}

// UpdateProductDetail applies the non-nil fields of req.
func (r *Repository) UpdateProductDetail(ctx context.Context, id int64, req UpdateProductDetailRequest, now time.Time) (*ProductDetail, error) {
	sets := []string{"updated_at = $1"}
	args := []interface{}{now}
	argPos := 2

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if req.Category != nil {
		addSet("category", *req.Category)
	}
	if req.SubCategory != nil {
		addSet("sub_category", *req.SubCategory)
	}
	if req.StyleNo != nil {
		addSet("style_no", *req.StyleNo)
	}
	if req.AllColors != nil {
		addSet("all_colors", *req.AllColors)
	}
	if req.AllSizes != nil {
		addSet("all_sizes", *req.AllSizes)
	}
	if req.CutParts != nil {
		addSet("cut_parts", *req.CutParts)
	}
	if req.CutCost != nil {
		addSet("cut_cost", *req.CutCost)
	}
	if req.PrintCost != nil {
		addSet("print_cost", *req.PrintCost)
	}
	if req.StitchCost != nil {
		addSet("stitch_cost", *req.StitchCost)
	}
	if req.IronCost != nil {
		addSet("iron_cost", *req.IronCost)
	}

	query := fmt.Sprintf(`
		UPDATE product_details SET %s WHERE id = $%d
		RETURNING %s
	`, joinComma(sets), argPos, productDetailColumns)
	args = append(args, id)

	pd, err := scanProductDetail(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductDetailNotFound
		}
		return nil, err
	}
	return &pd, nil
}

// DeleteProductDetail removes a product detail.
func (r *Repository) DeleteProductDetail(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM product_details WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductDetailNotFound
	}
	return nil
}

// ============================================================================
// CUTTING PLANS
// ============================================================================

// LatestPlanNumber returns the most recently issued CT number, or "" when the
// series is empty.
func (r *Repository) LatestPlanNumber(ctx context.Context) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT ct_number FROM cutting_plans ORDER BY id DESC LIMIT 1`,
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// PendingPlans lists uploaded plans that still await cutting.
func (r *Repository) PendingPlans(ctx context.Context) ([]CuttingPlan, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM cutting_plans
		WHERE status = $1 AND total_pcs > 0
		ORDER BY id
	`, planColumns)

	rows, err := r.pool.Query(ctx, query, PlanStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []CuttingPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) getOrCreate(ctx context.Context, selectQuery string, selectArgs []interface{}, insertQuery string, insertArgs []interface{}) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, selectQuery, selectArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = t.tx.QueryRow(ctx, insertQuery, insertArgs...).Scan(&id)
	return id, err
}

func (t *txRepo) GetOrCreateCategory(ctx context.Context, name string) (int64, error) {
	return t.getOrCreate(ctx,
		`SELECT id FROM categories WHERE name = $1`, []interface{}{name},
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`, []interface{}{name},
	)
}

func (t *txRepo) GetOrCreateStyle(ctx context.Context, code, name string, categoryID int64) (int64, error) {
	return t.getOrCreate(ctx,
		`SELECT id FROM styles WHERE code = $1`, []interface{}{code},
		`INSERT INTO styles (name, code, category_id) VALUES ($1, $2, $3) RETURNING id`,
		[]interface{}{name, code, categoryID},
	)
}

func (t *txRepo) GetOrCreateColorByCode(ctx context.Context, styleID int64, code, name, hex string) (int64, error) {
	var hexValue *string
	if hex != "" {
		hexValue = &hex
	}
	return t.getOrCreate(ctx,
		`SELECT id FROM colors WHERE style_id = $1 AND code = $2`, []interface{}{styleID, code},
		`INSERT INTO colors (name, code, style_id, hex_value) VALUES ($1, $2, $3, $4) RETURNING id`,
		[]interface{}{name, code, styleID, hexValue},
	)
}

func (t *txRepo) GetOrCreateColorByName(ctx context.Context, styleID int64, name string) (int64, error) {
	return t.getOrCreate(ctx,
		`SELECT id FROM colors WHERE style_id = $1 AND name = $2`, []interface{}{styleID, name},
		`INSERT INTO colors (name, code, style_id) VALUES ($1, $1, $2) RETURNING id`,
		[]interface{}{name, styleID},
	)
}

func (t *txRepo) GetOrCreateSizeByCode(ctx context.Context, colorID int64, code, name string, sortOrder int) (int64, error) {
	return t.getOrCreate(ctx,
		`SELECT id FROM sizes WHERE color_id = $1 AND code = $2`, []interface{}{colorID, code},
		`INSERT INTO sizes (name, code, color_id, sort_order) VALUES ($1, $2, $3, $4) RETURNING id`,
		[]interface{}{name, code, colorID, sortOrder},
	)
}

func (t *txRepo) GetOrCreateSizeByName(ctx context.Context, colorID int64, name string, sortOrder int) (int64, error) {
	return t.getOrCreate(ctx,
		`SELECT id FROM sizes WHERE color_id = $1 AND name = $2`, []interface{}{colorID, name},
		`INSERT INTO sizes (name, code, color_id, sort_order) VALUES ($1, $1, $2, $3) RETURNING id`,
		[]interface{}{name, colorID, sortOrder},
	)
}

func (t *txRepo) CreatePlan(ctx context.Context, plan CuttingPlan) (int64, error) {
	query := `
		INSERT INTO cutting_plans (
			ct_number, category, sub_category, style_id, style_code, color_id,
			color_name, total_pcs, size_ratios, size_pcs, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		plan.CTNumber, plan.Category, plan.SubCategory, plan.StyleID, plan.StyleCode,
		plan.ColorID, plan.ColorName, plan.TotalPieces, plan.SizeRatios, plan.SizePieces,
		plan.Status,
	).Scan(&id)
	return id, err
}
