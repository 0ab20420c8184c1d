package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchtrack/stitchtrack/internal/platform/db"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	LinkChallans(ctx context.Context, paymentID int64, dcIDs []int64) error
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

const paymentColumns = `id, payment_number, stitching_unit_id, payment_date, total_pieces,
       rate_per_piece, gross_amount, deduction_amount, net_amount, status, payment_method,
       reference_number, notes, created_by, cleared_date, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.PaymentNumber, &p.StitchingUnitID, &p.PaymentDate, &p.TotalPieces,
		&p.RatePerPiece, &p.GrossAmount, &p.DeductionAmount, &p.NetAmount, &p.Status,
		&p.PaymentMethod, &p.ReferenceNumber, &p.Notes, &p.CreatedBy, &p.ClearedDate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// GetUnit loads the payment-relevant slice of a stitching unit.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*UnitInfo, error) {
	var u UnitInfo
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, rate_per_piece FROM stitching_units WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.RatePerPiece)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ClearedChallans returns the unit's cleared challans in range together with
// their rejected piece totals. Passing dcIDs narrows the set further.
func (r *Repository) ClearedChallans(ctx context.Context, unitID int64, from, to time.Time, dcIDs []int64) ([]ClearedChallanRow, error) {
	conditions := []string{
		"dc.stitching_unit_id = $1",
		"dc.status = $2",
		"dc.actual_return_date >= $3",
		"dc.actual_return_date <= $4",
	}
	args := []interface{}{unitID, stitching.DCStatusCleared, from, to}
	if len(dcIDs) > 0 {
		conditions = append(conditions, "dc.id = ANY($5)")
		args = append(args, dcIDs)
	}

	query := fmt.Sprintf(`
		SELECT dc.id, dc.dc_number, dc.total_pieces_returned,
		       COALESCE(SUM(sr.quantity_returned) FILTER (WHERE sr.return_type = 'reject'), 0)
		FROM delivery_challans dc
		LEFT JOIN stitch_returns sr ON sr.dc_id = dc.id
		WHERE %s
		GROUP BY dc.id, dc.dc_number, dc.total_pieces_returned
		ORDER BY dc.id
	`, joinAnd(conditions))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClearedChallanRow
	for rows.Next() {
		var row ClearedChallanRow
		if err := rows.Scan(&row.DCID, &row.DCNumber, &row.TotalPiecesReturned, &row.RejectedPieces); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}

// LatestPaymentNumber returns the most recently issued payment number, or ""
// when the series is empty.
func (r *Repository) LatestPaymentNumber(ctx context.Context) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx,
		`SELECT payment_number FROM payments ORDER BY id DESC LIMIT 1`,
	).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// GetPayment retrieves a payment by ID.
func (r *Repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPayments returns payments in a date range, newest first.
func (r *Repository) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error) {
	conditions := []string{"payment_date >= $1", "payment_date <= $2"}
	args := []interface{}{req.FromDate, req.ToDate}
	argPos := 3

	if req.UnitID != nil {
		conditions = append(conditions, fmt.Sprintf("stitching_unit_id = $%d", argPos))
		args = append(args, *req.UnitID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE %s
		ORDER BY payment_date DESC
	`, paymentColumns, joinAnd(conditions))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ClearPayment stamps a payment cleared. Clearing an already cleared payment
// just restamps the date.
func (r *Repository) ClearPayment(ctx context.Context, id int64, clearedAt time.Time) (*Payment, error) {
	query := fmt.Sprintf(`
		UPDATE payments
		SET status = $1, cleared_date = $2, updated_at = $2
		WHERE id = $3
		RETURNING %s
	`, paymentColumns)

	p, err := scanPayment(r.pool.QueryRow(ctx, query,
		PaymentStatusCleared, clearedAt, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// PendingSummary aggregates pending payments per unit.
func (r *Repository) PendingSummary(ctx context.Context) ([]PendingUnitSummary, error) {
	query := `
		SELECT p.stitching_unit_id, u.name AS unit_name,
		       SUM(p.net_amount) AS total_amount, COUNT(*) AS payment_count
		FROM payments p
		INNER JOIN stitching_units u ON u.id = p.stitching_unit_id
		WHERE p.status = $1
		GROUP BY p.stitching_unit_id, u.name
		ORDER BY total_amount DESC
	`
	rows, err := r.pool.Query(ctx, query, PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []PendingUnitSummary
	for rows.Next() {
		var s PendingUnitSummary
		if err := rows.Scan(&s.StitchingUnitID, &s.UnitName, &s.TotalAmount, &s.PaymentCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// MonthSummary totals payments between the given bounds.
func (r *Repository) MonthSummary(ctx context.Context, from, to time.Time) (*MonthSummary, error) {
	var s MonthSummary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(net_amount), 0),
		       COALESCE(SUM(net_amount) FILTER (WHERE status = $3), 0),
		       COALESCE(SUM(net_amount) FILTER (WHERE status = $4), 0)
		FROM payments
		WHERE payment_date >= $1 AND payment_date <= $2
	`, from, to, PaymentStatusPending, PaymentStatusCleared).Scan(
		&s.TotalPayments, &s.TotalAmount, &s.PendingAmount, &s.ClearedAmount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UnitClearedChallans lists the unit's cleared challans in range with their
// payment linkage, newest return first.
func (r *Repository) UnitClearedChallans(ctx context.Context, unitID int64, from, to time.Time) ([]ClearedChallanInfo, error) {
	query := `
		SELECT dc.id, dc.dc_number, dc.dc_date, dc.actual_return_date,
		       dc.total_pieces_returned, pc.payment_id IS NOT NULL AS already_paid, pc.payment_id
		FROM delivery_challans dc
		LEFT JOIN payment_challans pc ON pc.dc_id = dc.id
		WHERE dc.stitching_unit_id = $1
		  AND dc.status = $2
		  AND dc.actual_return_date >= $3
		  AND dc.actual_return_date <= $4
		ORDER BY dc.actual_return_date DESC
	`
	rows, err := r.pool.Query(ctx, query, unitID, stitching.DCStatusCleared, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []ClearedChallanInfo
	for rows.Next() {
		var info ClearedChallanInfo
		err := rows.Scan(&info.ID, &info.DCNumber, &info.DCDate, &info.ActualReturnDate,
			&info.TotalPiecesReturned, &info.AlreadyPaid, &info.PaymentID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	query := `
		INSERT INTO payments (
			payment_number, stitching_unit_id, payment_date, total_pieces,
			rate_per_piece, gross_amount, deduction_amount, net_amount, status,
			payment_method, reference_number, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		p.PaymentNumber, p.StitchingUnitID, p.PaymentDate, p.TotalPieces,
		p.RatePerPiece, p.GrossAmount, p.DeductionAmount, p.NetAmount, p.Status,
		p.PaymentMethod, p.ReferenceNumber, p.Notes, p.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) LinkChallans(ctx context.Context, paymentID int64, dcIDs []int64) error {
	for _, dcID := range dcIDs {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO payment_challans (payment_id, dc_id) VALUES ($1, $2)`,
			paymentID, dcID,
		)
		if err != nil {
			return fmt.Errorf("link challan %d: %w", dcID, err)
		}
	}
	return nil
}
