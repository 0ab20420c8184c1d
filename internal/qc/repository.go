package qc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchtrack/stitchtrack/internal/cutting"
	"github.com/stitchtrack/stitchtrack/internal/platform/db"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// ItemQuantities is the reconciliation slice of a challan item.
type ItemQuantities struct {
	QuantitySent     int
	QuantityReturned int
}

// Repository provides PostgreSQL backed persistence for QC operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertQCRecord(ctx context.Context, rec QCRecord) (int64, error)
	SetChallanStatus(ctx context.Context, dcID int64, status stitching.DCStatus, holdReason *string, now time.Time) error
	SetChallanReturnTotals(ctx context.Context, dcID int64, returned int, returnedAt time.Time) error
	MarkChallanBundlesReturned(ctx context.Context, dcID int64, now time.Time) error
	InsertStitchReturn(ctx context.Context, ret StitchReturn) (int64, error)
	AddItemReturn(ctx context.Context, dcID, bundleID int64, quantity int, returnType ReturnType, now time.Time) error
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

const qcRecordColumns = `id, scan_ref, dc_id, scan_type, scan_datetime, scanned_quantity,
       expected_quantity, is_match, variance, scanner_name, notes, created_at`

const returnColumns = `id, dc_id, bundle_id, return_date, quantity_returned,
       return_type, defect_description, inspector_name, notes, created_at`

func scanQCRecord(row pgx.Row) (QCRecord, error) {
	var rec QCRecord
	err := row.Scan(
		&rec.ID, &rec.ScanRef, &rec.DCID, &rec.ScanType, &rec.ScanDatetime, &rec.ScannedQuantity,
		&rec.ExpectedQuantity, &rec.IsMatch, &rec.Variance, &rec.ScannerName,
		&rec.Notes, &rec.CreatedAt,
	)
	return rec, err
}

func scanReturn(row pgx.Row) (StitchReturn, error) {
	var ret StitchReturn
	err := row.Scan(
		&ret.ID, &ret.DCID, &ret.BundleID, &ret.ReturnDate, &ret.QuantityReturned,
		&ret.ReturnType, &ret.DefectDescription, &ret.InspectorName, &ret.Notes,
		&ret.CreatedAt,
	)
	return ret, err
}

// GetChallan loads the challan a scan refers to.
func (r *Repository) GetChallan(ctx context.Context, id int64) (*stitching.DeliveryChallan, error) {
	query := `
		SELECT id, dc_number, stitching_unit_id, cutting_lot_id, dc_date,
		       total_pieces_sent, total_pieces_returned, status, qr_code_data, qr_code_path,
		       dispatch_date, expected_return_date, actual_return_date, hold_reason, notes,
		       created_at, updated_at
		FROM delivery_challans WHERE id = $1
	`
	var dc stitching.DeliveryChallan
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&dc.ID, &dc.DCNumber, &dc.StitchingUnitID, &dc.CuttingLotID, &dc.DCDate,
		&dc.TotalPiecesSent, &dc.TotalPiecesReturned, &dc.Status, &dc.QRCodeData,
		&dc.QRCodePath, &dc.DispatchDate, &dc.ExpectedReturnDate, &dc.ActualReturnDate,
		&dc.HoldReason, &dc.Notes, &dc.CreatedAt, &dc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stitching.ErrChallanNotFound
		}
		return nil, err
	}
	return &dc, nil
}

// ScanHistory returns the scan records of a challan, newest first.
func (r *Repository) ScanHistory(ctx context.Context, dcID int64) ([]QCRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM qc_records WHERE dc_id = $1 ORDER BY scan_datetime DESC`, qcRecordColumns)
	rows, err := r.pool.Query(ctx, query, dcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []QCRecord
	for rows.Next() {
		rec, err := scanQCRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListChallans returns challans enriched with unit names for the QC board.
func (r *Repository) ListChallans(ctx context.Context, status *stitching.DCStatus, unitID *int64) ([]ChallanView, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("dc.status = $%d", argPos))
		args = append(args, *status)
		argPos++
	}
	if unitID != nil {
		conditions = append(conditions, fmt.Sprintf("dc.stitching_unit_id = $%d", argPos))
		args = append(args, *unitID)
		argPos++
	}

	query := fmt.Sprintf(`
		SELECT dc.id, dc.dc_number, dc.dc_date, dc.status,
		       dc.total_pieces_sent, dc.total_pieces_returned,
		       u.id AS unit_id, u.name AS unit_name,
		       dc.expected_return_date, dc.actual_return_date, dc.hold_reason, dc.qr_code_data
		FROM delivery_challans dc
		INNER JOIN stitching_units u ON u.id = dc.stitching_unit_id
		WHERE %s
		ORDER BY dc.dc_date DESC
	`, joinAnd(conditions))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []ChallanView
	for rows.Next() {
		var v ChallanView
		err := rows.Scan(
			&v.ID, &v.DCNumber, &v.DCDate, &v.Status,
			&v.TotalPiecesSent, &v.TotalPiecesReturned,
			&v.UnitID, &v.UnitName,
			&v.ExpectedReturnDate, &v.ActualReturnDate, &v.HoldReason, &v.QRCodeData,
		)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}

// PendingChallans returns challans in hold or partial state, newest first.
func (r *Repository) PendingChallans(ctx context.Context) ([]ChallanView, error) {
	query := `
		SELECT dc.id, dc.dc_number, dc.dc_date, dc.status,
		       dc.total_pieces_sent, dc.total_pieces_returned,
		       u.id AS unit_id, u.name AS unit_name,
		       dc.expected_return_date, dc.actual_return_date, dc.hold_reason, dc.qr_code_data
		FROM delivery_challans dc
		INNER JOIN stitching_units u ON u.id = dc.stitching_unit_id
		WHERE dc.status = ANY($1)
		ORDER BY dc.dc_date DESC
	`
	rows, err := r.pool.Query(ctx, query,
		[]stitching.DCStatus{stitching.DCStatusHold, stitching.DCStatusPartial})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []ChallanView
	for rows.Next() {
		var v ChallanView
		err := rows.Scan(
			&v.ID, &v.DCNumber, &v.DCDate, &v.Status,
			&v.TotalPiecesSent, &v.TotalPiecesReturned,
			&v.UnitID, &v.UnitName,
			&v.ExpectedReturnDate, &v.ActualReturnDate, &v.HoldReason, &v.QRCodeData,
		)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// CheckBundleExists validates the bundle reference.
func (r *Repository) CheckBundleExists(ctx context.Context, bundleID int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bundles WHERE id = $1)`, bundleID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrBundleNotFound
	}
	return nil
}

// GetItemQuantities loads the sent and returned totals of one challan item.
func (r *Repository) GetItemQuantities(ctx context.Context, dcID, bundleID int64) (*ItemQuantities, error) {
	var q ItemQuantities
	err := r.pool.QueryRow(ctx,
		`SELECT quantity_sent, quantity_returned FROM dc_items WHERE dc_id = $1 AND bundle_id = $2`,
		dcID, bundleID,
	).Scan(&q.QuantitySent, &q.QuantityReturned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotOnChallan
		}
		return nil, err
	}
	return &q, nil
}

// ListReturns returns stitch return records matching the filters, newest first.
func (r *Repository) ListReturns(ctx context.Context, req ListReturnsRequest) ([]StitchReturn, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.DCID != nil {
		conditions = append(conditions, fmt.Sprintf("dc_id = $%d", argPos))
		args = append(args, *req.DCID)
		argPos++
	}
	if req.ReturnType != nil {
		conditions = append(conditions, fmt.Sprintf("return_type = $%d", argPos))
		args = append(args, *req.ReturnType)
		argPos++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM stitch_returns
		WHERE %s
		ORDER BY return_date DESC
		LIMIT $%d OFFSET $%d
	`, returnColumns, joinAnd(conditions), argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []StitchReturn
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

// Summary aggregates scan and return counters since the given day start.
func (r *Repository) Summary(ctx context.Context, todayStart time.Time) (*Summary, error) {
	s := &Summary{}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE scan_datetime >= $1),
		       COUNT(*) FILTER (WHERE is_match),
		       COUNT(*) FILTER (WHERE NOT is_match)
		FROM qc_records
	`, todayStart).Scan(&s.TodayScans, &s.Matches, &s.Mismatches)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE return_type = $1),
		       COUNT(*) FILTER (WHERE return_type = $2)
		FROM stitch_returns
	`, ReturnOK, ReturnReject).Scan(&s.OKReturns, &s.RejectReturns)
	if err != nil {
		return nil, err
	}

	if total := s.Matches + s.Mismatches; total > 0 {
		s.AccuracyRate = float64(s.Matches) / float64(total) * 100
	}
	if total := s.OKReturns + s.RejectReturns; total > 0 {
		s.RejectRate = float64(s.RejectReturns) / float64(total) * 100
	}
	return s, nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) InsertQCRecord(ctx context.Context, rec QCRecord) (int64, error) {
	query := `
		INSERT INTO qc_records (
			scan_ref, dc_id, scan_type, scan_datetime, scanned_quantity, expected_quantity,
			is_match, variance, scanner_name, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		rec.ScanRef, rec.DCID, rec.ScanType, rec.ScanDatetime, rec.ScannedQuantity, rec.ExpectedQuantity,
		rec.IsMatch, rec.Variance, rec.ScannerName, rec.Notes,
	).Scan(&id)
	return id, err
}

func (t *txRepo) SetChallanStatus(ctx context.Context, dcID int64, status stitching.DCStatus, holdReason *string, now time.Time) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE delivery_challans
		SET status = $1, hold_reason = COALESCE($2, hold_reason), updated_at = $3
		WHERE id = $4
	`, status, holdReason, now, dcID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return stitching.ErrChallanNotFound
	}
	return nil
}

func (t *txRepo) SetChallanReturnTotals(ctx context.Context, dcID int64, returned int, returnedAt time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE delivery_challans
		SET total_pieces_returned = $1, actual_return_date = $2, updated_at = $2
		WHERE id = $3
	`, returned, returnedAt, dcID)
	return err
}

func (t *txRepo) MarkChallanBundlesReturned(ctx context.Context, dcID int64, now time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bundles
		SET status = $1, updated_at = $2
		WHERE id IN (SELECT bundle_id FROM dc_items WHERE dc_id = $3)
	`, cutting.BundleStatusReturned, now, dcID)
	return err
}

func (t *txRepo) InsertStitchReturn(ctx context.Context, ret StitchReturn) (int64, error) {
	query := `
		INSERT INTO stitch_returns (
			dc_id, bundle_id, return_date, quantity_returned, return_type,
			defect_description, inspector_name, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		ret.DCID, ret.BundleID, ret.ReturnDate, ret.QuantityReturned, ret.ReturnType,
		ret.DefectDescription, ret.InspectorName, ret.Notes,
	).Scan(&id)
	return id, err
}

func (t *txRepo) AddItemReturn(ctx context.Context, dcID, bundleID int64, quantity int, returnType ReturnType, now time.Time) error {
	column := "quantity_ok"
	if returnType == ReturnReject {
		column = "quantity_rejected"
	}
	query := fmt.Sprintf(`
		UPDATE dc_items
		SET quantity_returned = quantity_returned + $1,
		    %s = %s + $1,
		    updated_at = $2
		WHERE dc_id = $3 AND bundle_id = $4
	`, column, column)

	cmdTag, err := t.tx.Exec(ctx, query, quantity, now, dcID, bundleID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotOnChallan
	}
	return nil
}
