package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const bookingColumns = `booking_code, hold_id, holder_id, holder_contact, showtime_id,
	movie_title, hall_name, starts_at, total, payment_method, payment_status, status, created_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var startsAt sql.NullTime
	var method, payStatus, status string
	if err := row.Scan(
		&b.Code, &b.HoldID, &b.HolderID, &b.HolderContact, &b.ShowtimeID,
		&b.MovieTitle, &b.HallName, &startsAt, &b.Total, &method, &payStatus, &status, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if startsAt.Valid {
		b.StartsAt = startsAt.Time
	}
	b.PaymentMethod = model.PaymentMethod(method)
	b.PaymentStatus = model.PaymentStatus(payStatus)
	b.Status = model.BookingStatus(status)
	b.Seats = []model.BookedSeat{}
	b.Combos = []model.BookedCombo{}
	return &b, nil
}

// BookingByHold implements booking.Store.
func (s *Store) BookingByHold(ctx context.Context, holdID string) (*model.Booking, error) {
	return s.loadOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE hold_id = ?`, holdID, "booking for hold "+holdID)
}

// BookingByCode implements booking.Store.
func (s *Store) BookingByCode(ctx context.Context, code string) (*model.Booking, error) {
	return s.loadOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ?`, code, "booking "+code)
}

func (s *Store) loadOne(ctx context.Context, query, arg, what string) (*model.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, notFound(err, what)
	}
	if err := s.loadLines(ctx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// BookingsByHolder implements booking.Store.
func (s *Store) BookingsByHolder(ctx context.Context, holderID string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
	           WHERE holder_id = ? AND status <> ?
	           ORDER BY created_at DESC, booking_code DESC`
	rows, err := s.db.QueryContext(ctx, q, holderID, string(model.BookingPending))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	var list []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, list); err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(list))
	for _, b := range list {
		out = append(out, *b)
	}
	return out, nil
}

// loadLines fills the seat and combo snapshots of every booking in list.
func (s *Store) loadLines(ctx context.Context, list []*model.Booking) error {
	if len(list) == 0 {
		return nil
	}
	byCode := make(map[string]*model.Booking, len(list))
	codes := make([]string, 0, len(list))
	for _, b := range list {
		byCode[b.Code] = b
		codes = append(codes, b.Code)
	}
	ph, args := inClause(codes)

	srows, err := s.db.QueryContext(ctx,
		`SELECT booking_code, seat_number, category, price FROM booking_seats
		 WHERE booking_code IN (`+ph+`) ORDER BY booking_code, seat_number`, args...)
	if err != nil {
		return fmt.Errorf("load booking seats: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var code, cat string
		var seat model.BookedSeat
		if err := srows.Scan(&code, &seat.Number, &cat, &seat.Price); err != nil {
			return err
		}
		seat.Category = model.SeatCategory(cat)
		byCode[code].Seats = append(byCode[code].Seats, seat)
	}
	if err := srows.Err(); err != nil {
		return err
	}

	crows, err := s.db.QueryContext(ctx,
		`SELECT booking_code, combo_id, name, unit_price, quantity, line_total FROM booking_combos
		 WHERE booking_code IN (`+ph+`) ORDER BY booking_code, combo_id`, args...)
	if err != nil {
		return fmt.Errorf("load booking combos: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var code string
		var c model.BookedCombo
		if err := crows.Scan(&code, &c.ComboID, &c.Name, &c.UnitPrice, &c.Quantity, &c.LineTotal); err != nil {
			return err
		}
		byCode[code].Combos = append(byCode[code].Combos, c)
	}
	return crows.Err()
}

// sqlTx implements booking.Tx on a database transaction.
type sqlTx struct {
	tx *sql.Tx
}

// SetSeatStatus implements seatmap.Writer.  The showtime row is locked
// first so that the seat rows and the available counter change together.
func (t *sqlTx) SetSeatStatus(ctx context.Context, showtimeID string, seatNumbers []string, from, to model.SeatStatus) ([]string, error) {
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM showtimes WHERE id = ? FOR UPDATE`, showtimeID).Scan(&id)
	if err != nil {
		return nil, notFound(err, "showtime "+showtimeID)
	}
	if len(seatNumbers) == 0 {
		return nil, nil
	}

	ph, seatArgs := inClause(seatNumbers)
	args := append([]any{showtimeID, string(from)}, seatArgs...)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT seat_number FROM show_seats
		 WHERE showtime_id = ? AND status = ? AND seat_number IN (`+ph+`)
		 FOR UPDATE`, args...)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	var changed []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		changed = append(changed, n)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}

	ph, changedArgs := inClause(changed)
	args = append([]any{string(to), showtimeID, string(from)}, changedArgs...)
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE show_seats SET status = ?
		 WHERE showtime_id = ? AND status = ? AND seat_number IN (`+ph+`)`, args...); err != nil {
		return nil, fmt.Errorf("update seats: %w", err)
	}
	if err := refreshAvailable(ctx, t.tx, showtimeID); err != nil {
		return nil, err
	}
	return changed, nil
}

// InsertBooking implements booking.Tx.
func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	var startsAt any
	if !b.StartsAt.IsZero() {
		startsAt = b.StartsAt.UTC()
	}
	const q = `INSERT INTO bookings (` + bookingColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q,
		b.Code, b.HoldID, b.HolderID, b.HolderContact, b.ShowtimeID,
		b.MovieTitle, b.HallName, startsAt, b.Total,
		string(b.PaymentMethod), string(b.PaymentStatus), string(b.Status), b.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return &model.ConflictError{Reason: "booking already exists for hold " + b.HoldID}
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_code, seat_number, category, price) VALUES `
		args := make([]any, 0, len(b.Seats)*4)
		for i, s := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, b.Code, s.Number, string(s.Category), s.Price)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert booking seats: %w", err)
		}
	}
	if len(b.Combos) > 0 {
		query := `INSERT INTO booking_combos (booking_code, combo_id, name, unit_price, quantity, line_total) VALUES `
		args := make([]any, 0, len(b.Combos)*6)
		for i, c := range b.Combos {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, b.Code, c.ComboID, c.Name, c.UnitPrice, c.Quantity, c.LineTotal)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert booking combos: %w", err)
		}
	}
	return nil
}

// SetBookingStatus implements booking.Tx.
func (t *sqlTx) SetBookingStatus(ctx context.Context, code string, status model.BookingStatus) error {
	var current string
	err := t.tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE booking_code = ? FOR UPDATE`, code).Scan(&current)
	if err != nil {
		return notFound(err, "booking "+code)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE booking_code = ?`, string(status), code); err != nil {
		return fmt.Errorf("update booking %s: %w", code, err)
	}
	return nil
}

// DeleteBooking implements booking.Tx.
func (t *sqlTx) DeleteBooking(ctx context.Context, code string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM bookings WHERE booking_code = ?`, code)
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: booking %s", model.ErrNotFound, code)
	}
	for _, q := range []string{
		`DELETE FROM booking_seats WHERE booking_code = ?`,
		`DELETE FROM booking_combos WHERE booking_code = ?`,
	} {
		if _, err := t.tx.ExecContext(ctx, q, code); err != nil {
			return fmt.Errorf("delete booking %s lines: %w", code, err)
		}
	}
	return nil
}
