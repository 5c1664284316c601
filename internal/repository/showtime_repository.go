package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Showtime implements seatmap.Reader.  Seats are ordered by row label then
// seat number.
func (s *Store) Showtime(ctx context.Context, id string) (*model.Showtime, error) {
	return loadShowtime(ctx, s.db, id)
}

func loadShowtime(ctx context.Context, q querier, id string) (*model.Showtime, error) {
	const stQ = `SELECT id, movie_title, hall_name, starts_at, price, available_seats
	             FROM showtimes WHERE id = ?`
	var st model.Showtime
	var startsAt sql.NullTime
	var price sql.NullInt64
	err := q.QueryRowContext(ctx, stQ, id).Scan(
		&st.ID, &st.MovieTitle, &st.HallName, &startsAt, &price, &st.AvailableSeats,
	)
	if err != nil {
		return nil, notFound(err, "showtime "+id)
	}
	if startsAt.Valid {
		st.StartsAt = startsAt.Time
	}
	if price.Valid {
		p := price.Int64
		st.Price = &p
	}

	st.PriceByCategory = map[model.SeatCategory]int64{}
	prows, err := q.QueryContext(ctx, `SELECT category, price FROM showtime_prices WHERE showtime_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load prices of %s: %w", id, err)
	}
	defer prows.Close()
	for prows.Next() {
		var cat string
		var p int64
		if err := prows.Scan(&cat, &p); err != nil {
			return nil, err
		}
		st.PriceByCategory[model.SeatCategory(cat)] = p
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	const seatQ = `SELECT seat_number, row_label, category, price, status
	               FROM show_seats
	               WHERE showtime_id = ?
	               ORDER BY row_label, seat_number`
	srows, err := q.QueryContext(ctx, seatQ, id)
	if err != nil {
		return nil, fmt.Errorf("load seats of %s: %w", id, err)
	}
	defer srows.Close()
	st.Seats = []model.Seat{}
	for srows.Next() {
		var seat model.Seat
		var cat, status string
		var seatPrice sql.NullInt64
		if err := srows.Scan(&seat.Number, &seat.Row, &cat, &seatPrice, &status); err != nil {
			return nil, err
		}
		seat.Category = model.SeatCategory(cat)
		seat.Status = model.SeatStatus(status)
		if seatPrice.Valid {
			p := seatPrice.Int64
			seat.Price = &p
		}
		st.Seats = append(st.Seats, seat)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertShowtime writes a catalog showtime with its price table and seats.
// Existing seats keep their sale status; new seats start available.
func (s *Store) UpsertShowtime(ctx context.Context, st model.Showtime) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var startsAt any
	if !st.StartsAt.IsZero() {
		startsAt = st.StartsAt.UTC()
	}
	const upsertQ = `INSERT INTO showtimes (id, movie_title, hall_name, starts_at, price)
	                 VALUES (?, ?, ?, ?, ?)
	                 ON DUPLICATE KEY UPDATE movie_title = VALUES(movie_title), hall_name = VALUES(hall_name),
	                     starts_at = VALUES(starts_at), price = VALUES(price)`
	if _, err := tx.ExecContext(ctx, upsertQ, st.ID, st.MovieTitle, st.HallName, startsAt, nullableInt(st.Price)); err != nil {
		return fmt.Errorf("upsert showtime %s: %w", st.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM showtime_prices WHERE showtime_id = ?`, st.ID); err != nil {
		return err
	}
	cats := make([]string, 0, len(st.PriceByCategory))
	for c := range st.PriceByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO showtime_prices (showtime_id, category, price) VALUES (?, ?, ?)`,
			st.ID, c, st.PriceByCategory[model.SeatCategory(c)],
		); err != nil {
			return fmt.Errorf("insert price %s/%s: %w", st.ID, c, err)
		}
	}

	if len(st.Seats) > 0 {
		query := `INSERT INTO show_seats (showtime_id, seat_number, row_label, category, price, status) VALUES `
		args := make([]any, 0, len(st.Seats)*6)
		for i, seat := range st.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			status := seat.Status
			if status == "" {
				status = model.SeatAvailable
			}
			cat := seat.Category
			if cat == "" {
				cat = model.CategoryRegular
			}
			args = append(args, st.ID, seat.Number, seat.Row, string(cat), nullableInt(seat.Price), string(status))
		}
		query += ` ON DUPLICATE KEY UPDATE row_label = VALUES(row_label), category = VALUES(category), price = VALUES(price)`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert seats of %s: %w", st.ID, err)
		}
	}

	if err := refreshAvailable(ctx, tx, st.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// refreshAvailable recomputes the denormalised available_seats counter.
func refreshAvailable(ctx context.Context, q querier, showtimeID string) error {
	const q1 = `UPDATE showtimes
	            SET available_seats = (SELECT COUNT(*) FROM show_seats WHERE showtime_id = ? AND status = ?)
	            WHERE id = ?`
	if _, err := q.ExecContext(ctx, q1, showtimeID, string(model.SeatAvailable), showtimeID); err != nil {
		return fmt.Errorf("refresh available seats of %s: %w", showtimeID, err)
	}
	return nil
}

// UpsertCombo writes a combo catalog entry.
func (s *Store) UpsertCombo(ctx context.Context, c model.Combo) error {
	const q = `INSERT INTO combos (id, name, price, is_active) VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE name = VALUES(name), price = VALUES(price), is_active = VALUES(is_active)`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Name, c.Price, c.IsActive); err != nil {
		return fmt.Errorf("upsert combo %s: %w", c.ID, err)
	}
	return nil
}

// Combos implements booking.Store.
func (s *Store) Combos(ctx context.Context, ids []string) (map[string]model.Combo, error) {
	out := make(map[string]model.Combo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, is_active FROM combos WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load combos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.IsActive); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// ActiveCombos implements booking.Store.
func (s *Store) ActiveCombos(ctx context.Context) ([]model.Combo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, is_active FROM combos WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list combos: %w", err)
	}
	defer rows.Close()
	out := []model.Combo{}
	for rows.Next() {
		var c model.Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
