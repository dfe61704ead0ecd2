package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key
// violation.
const mysqlDuplicateEntry = 1062

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store on top of the rooms, room_types,
// reservations and orders tables. All timestamps are stored in UTC.
type MySQLStore struct {
	*sqlQuerier
	db *sql.DB
}

// NewMySQLStore returns a Store bound to db. The DSN must enable
// parseTime so DATE and DATETIME columns scan into time.Time.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{sqlQuerier: &sqlQuerier{db: db}, db: db}
}

// ExecTx runs fn in a READ COMMITTED transaction. Any error from fn, or a
// panic, rolls the transaction back.
func (s *MySQLStore) ExecTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlQuerier{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sqlQuerier struct{ db dbtx }

const roomColumns = `id, room_number, room_type_id, floor, status, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	var r model.Room
	if err := row.Scan(&r.ID, &r.RoomNumber, &r.RoomTypeID, &r.Floor, &r.Status, &r.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (q *sqlQuerier) GetRoom(ctx context.Context, id uint64) (*model.Room, error) {
	return scanRoom(q.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

func (q *sqlQuerier) GetRoomForUpdate(ctx context.Context, id uint64) (*model.Room, error) {
	return scanRoom(q.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ? FOR UPDATE`, id))
}

func (q *sqlQuerier) ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	var w where
	if f.RoomTypeID != 0 {
		w.add("room_type_id = ?", f.RoomTypeID)
	}
	if f.Status != nil {
		w.add("status = ?", int8(*f.Status))
	}
	rows, err := q.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms`+w.sql()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *sqlQuerier) UpdateRoomStatus(ctx context.Context, id uint64, status model.RoomStatus) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`,
		int8(status), time.Now().UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *sqlQuerier) GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error) {
	var rt model.RoomType
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, price, max_people FROM room_types WHERE id = ?`, id,
	).Scan(&rt.ID, &rt.Name, &rt.Price, &rt.MaxPeople)
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

const reservationColumns = `id, user_id, room_id, start_date, end_date, guest_count, guest_name, guest_phone,
	guest_id_card, status, pay_status, price, notes, check_in_time, check_out_time, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r        model.Reservation
		idCard   sql.NullString
		notes    sql.NullString
		checkIn  sql.NullTime
		checkOut sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.RoomID, &r.StartDate, &r.EndDate, &r.GuestCount, &r.GuestName,
		&r.GuestPhone, &idCard, &r.Status, &r.PayStatus, &r.Price, &notes, &checkIn, &checkOut,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	r.GuestIDCard = idCard.String
	r.Notes = notes.String
	if checkIn.Valid {
		t := checkIn.Time
		r.CheckInTime = &t
	}
	if checkOut.Valid {
		t := checkOut.Time
		r.CheckOutTime = &t
	}
	return &r, nil
}

func (q *sqlQuerier) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

func (q *sqlQuerier) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

func reservationWhere(f ReservationFilter) where {
	var w where
	if f.UserID != 0 {
		w.add("user_id = ?", f.UserID)
	}
	if f.RoomID != 0 {
		w.add("room_id = ?", f.RoomID)
	}
	if f.ExcludeID != 0 {
		w.add("id <> ?", f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		w.in("status", int8Args(f.Statuses))
	}
	if f.Overlap != nil {
		// [start_date, end_date) intersects [Start, End)
		w.add("start_date < ? AND end_date > ?", f.Overlap.End, f.Overlap.Start)
	}
	if f.StartDate != nil {
		w.add("start_date = ?", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("end_date = ?", *f.EndDate)
	}
	return w
}

func (q *sqlQuerier) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	w := reservationWhere(f)
	query := `SELECT ` + reservationColumns + ` FROM reservations` + w.sql() + ` ORDER BY id` + limit(f.Limit, f.Offset)
	rows, err := q.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *sqlQuerier) CountReservations(ctx context.Context, f ReservationFilter) (int64, error) {
	w := reservationWhere(f)
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+w.sql(), w.args...).Scan(&n)
	return n, err
}

func (q *sqlQuerier) InsertReservation(ctx context.Context, r *model.Reservation) error {
	const ins = `INSERT INTO reservations (user_id, room_id, start_date, end_date, guest_count, guest_name,
		guest_phone, guest_id_card, status, pay_status, price, notes, check_in_time, check_out_time,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := q.db.ExecContext(ctx, ins, r.UserID, r.RoomID, r.StartDate, r.EndDate, r.GuestCount,
		r.GuestName, r.GuestPhone, nullString(r.GuestIDCard), int8(r.Status), int8(r.PayStatus), r.Price,
		nullString(r.Notes), r.CheckInTime, r.CheckOutTime, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return duplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

func (q *sqlQuerier) UpdateReservation(ctx context.Context, r *model.Reservation) (int64, error) {
	const upd = `UPDATE reservations SET room_id = ?, start_date = ?, end_date = ?, guest_count = ?,
		guest_name = ?, guest_phone = ?, guest_id_card = ?, status = ?, pay_status = ?, price = ?, notes = ?,
		check_in_time = ?, check_out_time = ?, updated_at = ? WHERE id = ?`
	res, err := q.db.ExecContext(ctx, upd, r.RoomID, r.StartDate, r.EndDate, r.GuestCount, r.GuestName,
		r.GuestPhone, nullString(r.GuestIDCard), int8(r.Status), int8(r.PayStatus), r.Price,
		nullString(r.Notes), r.CheckInTime, r.CheckOutTime, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const orderColumns = `o.id, o.order_no, o.user_id, o.reservation_id, o.amount, o.refund_amount, o.status,
	o.pay_method, o.pay_ref, o.pay_time, o.refund_time, o.refund_reason, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o                   model.Order
		method, ref, reason sql.NullString
		payTime, refundTime sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.ReservationID, &o.Amount, &o.RefundAmount, &o.Status,
		&method, &ref, &payTime, &refundTime, &reason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.PayMethod = method.String
	o.PayRef = ref.String
	o.RefundReason = reason.String
	if payTime.Valid {
		t := payTime.Time
		o.PayTime = &t
	}
	if refundTime.Valid {
		t := refundTime.Time
		o.RefundTime = &t
	}
	return &o, nil
}

func (q *sqlQuerier) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	return scanOrder(q.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`, id))
}

func (q *sqlQuerier) GetOrderForUpdate(ctx context.Context, id uint64) (*model.Order, error) {
	return scanOrder(q.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = ? FOR UPDATE`, id))
}

func (q *sqlQuerier) GetOrderByReservation(ctx context.Context, reservationID uint64) (*model.Order, error) {
	return scanOrder(q.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.reservation_id = ?`, reservationID))
}

// orderFrom returns the FROM clause and filter for f, joining the linked
// reservation only when the filter needs it.
func orderFrom(f OrderFilter) (string, where) {
	var w where
	from := ` FROM orders o`
	if len(f.ReservationStatuses) > 0 || len(f.ReservationPayStatuses) > 0 {
		from += ` JOIN reservations r ON r.id = o.reservation_id`
		if len(f.ReservationStatuses) > 0 {
			w.in("r.status", int8Args(f.ReservationStatuses))
		}
		if len(f.ReservationPayStatuses) > 0 {
			w.in("r.pay_status", int8Args(f.ReservationPayStatuses))
		}
	}
	if f.UserID != 0 {
		w.add("o.user_id = ?", f.UserID)
	}
	if f.ReservationID != 0 {
		w.add("o.reservation_id = ?", f.ReservationID)
	}
	if len(f.Statuses) > 0 {
		w.in("o.status", int8Args(f.Statuses))
	}
	if f.CreatedBefore != nil {
		w.add("o.created_at < ?", *f.CreatedBefore)
	}
	return from, w
}

func (q *sqlQuerier) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	from, w := orderFrom(f)
	query := `SELECT ` + orderColumns + from + w.sql() + ` ORDER BY o.id` + limit(f.Limit, f.Offset)
	rows, err := q.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (q *sqlQuerier) InsertOrder(ctx context.Context, o *model.Order) error {
	const ins = `INSERT INTO orders (order_no, user_id, reservation_id, amount, refund_amount, status,
		pay_method, pay_ref, pay_time, refund_time, refund_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := q.db.ExecContext(ctx, ins, o.OrderNo, o.UserID, o.ReservationID, o.Amount, o.RefundAmount,
		int8(o.Status), nullString(o.PayMethod), nullString(o.PayRef), o.PayTime, o.RefundTime,
		nullString(o.RefundReason), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return duplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

func (q *sqlQuerier) UpdateOrder(ctx context.Context, o *model.Order) (int64, error) {
	const upd = `UPDATE orders SET amount = ?, refund_amount = ?, status = ?, pay_method = ?, pay_ref = ?,
		pay_time = ?, refund_time = ?, refund_reason = ?, updated_at = ? WHERE id = ?`
	res, err := q.db.ExecContext(ctx, upd, o.Amount, o.RefundAmount, int8(o.Status), nullString(o.PayMethod),
		nullString(o.PayRef), o.PayTime, o.RefundTime, nullString(o.RefundReason), o.UpdatedAt, o.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *sqlQuerier) CountOrders(ctx context.Context, f OrderFilter) (int64, error) {
	from, w := orderFrom(f)
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+w.sql(), w.args...).Scan(&n)
	return n, err
}

func (q *sqlQuerier) SumOrderAmounts(ctx context.Context, f OrderFilter) (decimal.Decimal, error) {
	from, w := orderFrom(f)
	var sum decimal.NullDecimal
	if err := q.db.QueryRowContext(ctx, `SELECT SUM(o.amount)`+from+w.sql(), w.args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// where accumulates AND-ed predicates and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []any) {
	w.add(column+" IN (?"+strings.Repeat(", ?", len(values)-1)+")", values...)
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func limit(n, offset int) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + strconv.Itoa(n) + " OFFSET " + strconv.Itoa(offset)
}

func int8Args[T ~int8](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = int8(v)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}

var (
	_ Store   = (*MySQLStore)(nil)
	_ Querier = (*sqlQuerier)(nil)
)
