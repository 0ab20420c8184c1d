package cutting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchtrack/stitchtrack/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for cutting operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateLot(ctx context.Context, lot CuttingLot) (int64, error)
	InsertBundle(ctx context.Context, b Bundle) (int64, error)
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

const lotColumns = `id, lot_number, style_id, color_id, fabric_lot, lay_number,
       total_pieces, cutting_date, created_by, notes, created_at, updated_at`

const bundleColumns = `id, bundle_number, cutting_lot_id, size_id, panel_type, quantity,
       barcode_data, qr_code_path, barcode_path, status, created_at, updated_at`

func scanLot(row pgx.Row) (CuttingLot, error) {
	var lot CuttingLot
	err := row.Scan(
		&lot.ID, &lot.LotNumber, &lot.StyleID, &lot.ColorID, &lot.FabricLot,
		&lot.LayNumber, &lot.TotalPieces, &lot.CuttingDate, &lot.CreatedBy,
		&lot.Notes, &lot.CreatedAt, &lot.UpdatedAt,
	)
	return lot, err
}

func scanBundle(row pgx.Row) (Bundle, error) {
	var b Bundle
	err := row.Scan(
		&b.ID, &b.BundleNumber, &b.CuttingLotID, &b.SizeID, &b.PanelType,
		&b.Quantity, &b.BarcodeData, &b.QRCodePath, &b.BarcodePath, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// GetLot retrieves a cutting lot by ID.
func (r *Repository) GetLot(ctx context.Context, id int64) (*CuttingLot, error) {
	query := fmt.Sprintf(`SELECT %s FROM cutting_lots WHERE id = $1`, lotColumns)
	lot, err := scanLot(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// ListLots returns cutting lots ordered newest first.
func (r *Repository) ListLots(ctx context.Context, req ListLotsRequest) ([]CuttingLot, error) {
	query := fmt.Sprintf(`SELECT %s FROM cutting_lots ORDER BY id DESC LIMIT $1 OFFSET $2`, lotColumns)
	rows, err := r.pool.Query(ctx, query, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []CuttingLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// LatestLotNumber returns the most recently issued lot number, or "" when the
// series is empty.
func (r *Repository) LatestLotNumber(ctx context.Context) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT lot_number FROM cutting_lots ORDER BY id DESC LIMIT 1`,
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// GetBundle retrieves a bundle by ID.
func (r *Repository) GetBundle(ctx context.Context, id int64) (*Bundle, error) {
	query := fmt.Sprintf(`SELECT %s FROM bundles WHERE id = $1`, bundleColumns)
	b, err := scanBundle(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBundleNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetBundles retrieves bundles by IDs.
func (r *Repository) GetBundles(ctx context.Context, ids []int64) ([]Bundle, error) {
	query := fmt.Sprintf(`SELECT %s FROM bundles WHERE id = ANY($1) ORDER BY id`, bundleColumns)
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// ListLotBundles retrieves all bundles of one lot ordered by bundle number.
func (r *Repository) ListLotBundles(ctx context.Context, lotID int64) ([]Bundle, error) {
	query := fmt.Sprintf(`SELECT %s FROM bundles WHERE cutting_lot_id = $1 ORDER BY bundle_number`, bundleColumns)
	rows, err := r.pool.Query(ctx, query, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// SearchBundles retrieves bundles matching the given criteria, capped at 50.
func (r *Repository) SearchBundles(ctx context.Context, req SearchBundlesRequest) ([]Bundle, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.BundleNumber != nil {
		conditions = append(conditions, fmt.Sprintf("b.bundle_number = $%d", argPos))
		args = append(args, *req.BundleNumber)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.LotNumber != nil {
		conditions = append(conditions, fmt.Sprintf("cl.lot_number = $%d", argPos))
		args = append(args, *req.LotNumber)
		argPos++
	}

	query := fmt.Sprintf(`
		SELECT b.id, b.bundle_number, b.cutting_lot_id, b.size_id, b.panel_type, b.quantity,
		       b.barcode_data, b.qr_code_path, b.barcode_path, b.status, b.created_at, b.updated_at
		FROM bundles b
		INNER JOIN cutting_lots cl ON cl.id = b.cutting_lot_id
		WHERE %s
		ORDER BY b.bundle_number
		LIMIT 50
	`, joinAnd(conditions))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}

// UpdateBundleCodePaths records the rendered artifact paths for a bundle.
func (r *Repository) UpdateBundleCodePaths(ctx context.Context, bundleID int64, qrPath, barcodePath *string, now time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bundles SET qr_code_path = $1, barcode_path = $2, updated_at = $3 WHERE id = $4`,
		qrPath, barcodePath, now, bundleID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBundleNotFound
	}
	return nil
}

// StickerData returns enriched bundle rows for bunch sticker printing.
func (r *Repository) StickerData(ctx context.Context, bundleIDs []int64) ([]StickerData, error) {
	query := `
		SELECT b.id AS bundle_id, b.bundle_number, st.name AS style_name,
		       c.name AS color_name, sz.name AS size_name, b.panel_type,
		       b.quantity, cl.lot_number, b.barcode_data, b.qr_code_path, b.barcode_path
		FROM bundles b
		INNER JOIN cutting_lots cl ON cl.id = b.cutting_lot_id
		INNER JOIN styles st ON st.id = cl.style_id
		INNER JOIN colors c ON c.id = cl.color_id
		INNER JOIN sizes sz ON sz.id = b.size_id
		WHERE b.id = ANY($1)
		ORDER BY b.bundle_number
	`
	rows, err := r.pool.Query(ctx, query, bundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stickers []StickerData
	for rows.Next() {
		var s StickerData
		err := rows.Scan(
			&s.BundleID, &s.BundleNumber, &s.StyleName, &s.ColorName, &s.SizeName,
			&s.PanelType, &s.Quantity, &s.LotNumber, &s.BarcodeData, &s.QRCodePath, &s.BarcodePath,
		)
		if err != nil {
			return nil, err
		}
		stickers = append(stickers, s)
	}
	return stickers, rows.Err()
}

// CheckStyleAndColor validates that both references exist.
func (r *Repository) CheckStyleAndColor(ctx context.Context, styleID, colorID int64) error {
	var styleExists, colorExists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM styles WHERE id = $1), EXISTS(SELECT 1 FROM colors WHERE id = $2)`,
		styleID, colorID,
	).Scan(&styleExists, &colorExists)
	if err != nil {
		return err
	}
	if !styleExists {
		return ErrStyleNotFound
	}
	if !colorExists {
		return ErrColorNotFound
	}
	return nil
}

// Stats aggregates lot and bundle counts for the cutting dashboard.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BundlesByStatus: map[BundleStatus]int{
		BundleStatusCreated:    0,
		BundleStatusDispatched: 0,
		BundleStatusReturned:   0,
	}}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cutting_lots`).Scan(&stats.TotalLots); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM bundles GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status BundleStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.BundlesByStatus[status] = count
	}
	return stats, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) CreateLot(ctx context.Context, lot CuttingLot) (int64, error) {
	query := `
		INSERT INTO cutting_lots (
			lot_number, style_id, color_id, fabric_lot, lay_number,
			total_pieces, cutting_date, created_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		lot.LotNumber, lot.StyleID, lot.ColorID, lot.FabricLot, lot.LayNumber,
		lot.TotalPieces, lot.CuttingDate, lot.CreatedBy, lot.Notes,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertBundle(ctx context.Context, b Bundle) (int64, error) {
	query := `
		INSERT INTO bundles (
			bundle_number, cutting_lot_id, size_id, panel_type, quantity,
			barcode_data, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		b.BundleNumber, b.CuttingLotID, b.SizeID, b.PanelType, b.Quantity,
		b.BarcodeData, b.Status,
	).Scan(&id)
	return id, err
}
