package stitching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchtrack/stitchtrack/internal/cutting"
	"github.com/stitchtrack/stitchtrack/internal/platform/db"
)

// DispatchBundle is the slice of a bundle the dispatch check needs.
type DispatchBundle struct {
	ID           int64
	BundleNumber string
	Status       cutting.BundleStatus
	Quantity     int
}

// Repository provides PostgreSQL backed persistence for stitching operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateChallan(ctx context.Context, dc DeliveryChallan) (int64, error)
	SetChallanQRData(ctx context.Context, dcID int64, qrData string) error
	InsertItem(ctx context.Context, item DCItem) error
	MarkBundlesDispatched(ctx context.Context, bundleIDs []int64, now time.Time) error
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

const unitColumns = `id, name, contact_person, phone, email, address,
       capacity_per_day, rate_per_piece, is_active, created_at, updated_at`

const challanColumns = `id, dc_number, stitching_unit_id, cutting_lot_id, dc_date,
       total_pieces_sent, total_pieces_returned, status, qr_code_data, qr_code_path,
       dispatch_date, expected_return_date, actual_return_date, hold_reason, notes,
       created_at, updated_at`

func scanUnit(row pgx.Row) (StitchingUnit, error) {
	var u StitchingUnit
	err := row.Scan(
		&u.ID, &u.Name, &u.ContactPerson, &u.Phone, &u.Email, &u.Address,
		&u.CapacityPerDay, &u.RatePerPiece, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func scanChallan(row pgx.Row) (DeliveryChallan, error) {
	var dc DeliveryChallan
	err := row.Scan(
		&dc.ID, &dc.DCNumber, &dc.StitchingUnitID, &dc.CuttingLotID, &dc.DCDate,
		&dc.TotalPiecesSent, &dc.TotalPiecesReturned, &dc.Status, &dc.QRCodeData,
		&dc.QRCodePath, &dc.DispatchDate, &dc.ExpectedReturnDate, &dc.ActualReturnDate,
		&dc.HoldReason, &dc.Notes, &dc.CreatedAt, &dc.UpdatedAt,
	)
	return dc, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ============================================================================
// STITCHING UNITS
// ============================================================================

// CreateUnit inserts a stitching unit. Unit names are unique.
func (r *Repository) CreateUnit(ctx context.Context, u StitchingUnit) (int64, error) {
	query := `
		INSERT INTO stitching_units (
			name, contact_person, phone, email, address,
			capacity_per_day, rate_per_piece, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		u.Name, u.ContactPerson, u.Phone, u.Email, u.Address,
		u.CapacityPerDay, u.RatePerPiece, u.IsActive,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrUnitNameTaken
	}
	return id, err
}

// GetUnit retrieves a stitching unit by ID.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*StitchingUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM stitching_units WHERE id = $1`, unitColumns)
	u, err := scanUnit(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListUnits returns stitching units ordered by name.
func (r *Repository) ListUnits(ctx context.Context, isActive *bool) ([]StitchingUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM stitching_units`, unitColumns)
	var args []interface{}
	if isActive != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *isActive)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []StitchingUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// UpdateUnit applies the non-nil fields of req to a unit.
func (r *Repository) UpdateUnit(ctx context.Context, id int64, req UpdateUnitRequest, now time.Time) (*StitchingUnit, error) {
	sets := []string{}
	var args []interface{}
	argPos := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if req.Name != nil {
		addSet("name", *req.Name)
	}
	if req.ContactPerson != nil {
		addSet("contact_person", *req.ContactPerson)
	}
	if req.Phone != nil {
		addSet("phone", *req.Phone)
	}
	if req.Email != nil {
		addSet("email", *req.Email)
	}
	if req.Address != nil {
		addSet("address", *req.Address)
	}
	if req.CapacityPerDay != nil {
		addSet("capacity_per_day", *req.CapacityPerDay)
	}
	if req.RatePerPiece != nil {
		addSet("rate_per_piece", *req.RatePerPiece)
	}
	if req.IsActive != nil {
		addSet("is_active", *req.IsActive)
	}
	if len(sets) == 0 {
		return r.GetUnit(ctx, id)
	}
	addSet("updated_at", now)

	query := fmt.Sprintf(
		`UPDATE stitching_units SET %s WHERE id = $%d RETURNING %s`,
		joinComma(sets), argPos, unitColumns,
	)
	args = append(args, id)

	u, err := scanUnit(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrUnitNameTaken
		}
		return nil, err
	}
	return &u, nil
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// ============================================================================
// DELIVERY CHALLANS
// ============================================================================

// GetChallan retrieves a challan by ID.
func (r *Repository) GetChallan(ctx context.Context, id int64) (*DeliveryChallan, error) {
	query := fmt.Sprintf(`SELECT %s FROM delivery_challans WHERE id = $1`, challanColumns)
	dc, err := scanChallan(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallanNotFound
		}
		return nil, err
	}
	return &dc, nil
}

// ListChallans returns challans matching the filters, newest first.
func (r *Repository) ListChallans(ctx context.Context, req ListChallansRequest) ([]DeliveryChallan, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.UnitID != nil {
		conditions = append(conditions, fmt.Sprintf("stitching_unit_id = $%d", argPos))
		args = append(args, *req.UnitID)
		argPos++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM delivery_challans
		WHERE %s
		ORDER BY dc_date DESC
		LIMIT $%d OFFSET $%d
	`, challanColumns, joinAnd(conditions), argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challans []DeliveryChallan
	for rows.Next() {
		dc, err := scanChallan(rows)
		if err != nil {
			return nil, err
		}
		challans = append(challans, dc)
	}
	return challans, rows.Err()
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}

// LatestChallanNumber returns the most recently issued DC number, or "" when
// the series is empty.
func (r *Repository) LatestChallanNumber(ctx context.Context) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT dc_number FROM delivery_challans ORDER BY id DESC LIMIT 1`,
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// GetChallanItems returns challan items joined with their bundles.
func (r *Repository) GetChallanItems(ctx context.Context, dcID int64) ([]DCItemDetail, error) {
	query := `
		SELECT i.id, i.dc_id, i.bundle_id, i.quantity_sent, i.quantity_returned,
		       i.quantity_ok, i.quantity_rejected, i.created_at, i.updated_at,
		       b.bundle_number, b.panel_type
		FROM dc_items i
		INNER JOIN bundles b ON b.id = i.bundle_id
		WHERE i.dc_id = $1
		ORDER BY b.bundle_number
	`
	rows, err := r.pool.Query(ctx, query, dcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DCItemDetail
	for rows.Next() {
		var d DCItemDetail
		err := rows.Scan(
			&d.ID, &d.DCID, &d.BundleID, &d.QuantitySent, &d.QuantityReturned,
			&d.QuantityOK, &d.QuantityRejected, &d.CreatedAt, &d.UpdatedAt,
			&d.BundleNumber, &d.PanelType,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// UpdateChallan applies mutable challan fields.
func (r *Repository) UpdateChallan(ctx context.Context, id int64, req UpdateChallanRequest, now time.Time) (*DeliveryChallan, error) {
	query := fmt.Sprintf(`
		UPDATE delivery_challans
		SET expected_return_date = COALESCE($1, expected_return_date),
		    notes = COALESCE($2, notes),
		    updated_at = $3
		WHERE id = $4
		RETURNING %s
	`, challanColumns)

	dc, err := scanChallan(r.pool.QueryRow(ctx, query,
		req.ExpectedReturnDate, req.Notes, now, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallanNotFound
		}
		return nil, err
	}
	return &dc, nil
}

// UpdateChallanQRPath records the rendered QR artifact path.
func (r *Repository) UpdateChallanQRPath(ctx context.Context, dcID int64, path string, now time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE delivery_challans SET qr_code_path = $1, updated_at = $2 WHERE id = $3`,
		path, now, dcID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrChallanNotFound
	}
	return nil
}

// CheckLotExists validates the cutting lot reference.
func (r *Repository) CheckLotExists(ctx context.Context, lotID int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM cutting_lots WHERE id = $1)`, lotID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrLotNotFound
	}
	return nil
}

// GetBundlesForDispatch loads the dispatch-relevant slice of the bundles.
func (r *Repository) GetBundlesForDispatch(ctx context.Context, bundleIDs []int64) ([]DispatchBundle, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bundle_number, status, quantity FROM bundles WHERE id = ANY($1)`, bundleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []DispatchBundle
	for rows.Next() {
		var b DispatchBundle
		if err := rows.Scan(&b.ID, &b.BundleNumber, &b.Status, &b.Quantity); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// Dashboard aggregates challan and unit counts.
func (r *Repository) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{ChallansByStatus: map[DCStatus]int{
		DCStatusOpen:    0,
		DCStatusPartial: 0,
		DCStatusHold:    0,
		DCStatusCleared: 0,
	}}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM delivery_challans GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status DCStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		d.ChallansByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM stitching_units WHERE is_active`,
	).Scan(&d.ActiveUnits)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) CreateChallan(ctx context.Context, dc DeliveryChallan) (int64, error) {
	query := `
		INSERT INTO delivery_challans (
			dc_number, stitching_unit_id, cutting_lot_id, dc_date,
			total_pieces_sent, status, qr_code_data, dispatch_date,
			expected_return_date, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		dc.DCNumber, dc.StitchingUnitID, dc.CuttingLotID, dc.DCDate,
		dc.TotalPiecesSent, dc.Status, dc.QRCodeData, dc.DispatchDate,
		dc.ExpectedReturnDate, dc.Notes,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateChallanNumber
	}
	return id, err
}

func (t *txRepo) SetChallanQRData(ctx context.Context, dcID int64, qrData string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE delivery_challans SET qr_code_data = $1 WHERE id = $2`, qrData, dcID)
	return err
}

func (t *txRepo) InsertItem(ctx context.Context, item DCItem) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO dc_items (dc_id, bundle_id, quantity_sent) VALUES ($1, $2, $3)`,
		item.DCID, item.BundleID, item.QuantitySent,
	)
	return err
}

func (t *txRepo) MarkBundlesDispatched(ctx context.Context, bundleIDs []int64, now time.Time) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE bundles SET status = $1, updated_at = $2 WHERE id = ANY($3) AND status = $4`,
		cutting.BundleStatusDispatched, now, bundleIDs, cutting.BundleStatusCreated,
	)
	if err != nil {
		return err
	}
	if int(cmdTag.RowsAffected()) != len(bundleIDs) {
		return ErrBundleUnavailable
	}
	return nil
}
