package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the booking store reads and writes.  Catalog
// tables (showtimes, show_seats, showtime_prices, combos) are owned by the
// catalog service in production; they are created here so that a fresh
// database can be seeded.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS showtimes (
		id              VARCHAR(64)  NOT NULL PRIMARY KEY,
		movie_title     VARCHAR(255) NOT NULL DEFAULT '',
		hall_name       VARCHAR(255) NOT NULL DEFAULT '',
		starts_at       DATETIME     NULL,
		price           BIGINT       NULL,
		available_seats INT          NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showtime_prices (
		showtime_id VARCHAR(64) NOT NULL,
		category    VARCHAR(32) NOT NULL,
		price       BIGINT      NOT NULL,
		PRIMARY KEY (showtime_id, category)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS show_seats (
		showtime_id VARCHAR(64) NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		row_label   VARCHAR(8)  NOT NULL DEFAULT '',
		category    VARCHAR(32) NOT NULL DEFAULT 'regular',
		price       BIGINT      NULL,
		status      VARCHAR(16) NOT NULL DEFAULT 'available',
		PRIMARY KEY (showtime_id, seat_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS combos (
		id        VARCHAR(64)  NOT NULL PRIMARY KEY,
		name      VARCHAR(255) NOT NULL,
		price     BIGINT       NOT NULL,
		is_active TINYINT(1)   NOT NULL DEFAULT 1
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		booking_code   VARCHAR(32)  NOT NULL PRIMARY KEY,
		hold_id        VARCHAR(64)  NOT NULL,
		holder_id      VARCHAR(64)  NOT NULL,
		holder_contact VARCHAR(255) NOT NULL DEFAULT '',
		showtime_id    VARCHAR(64)  NOT NULL,
		movie_title    VARCHAR(255) NOT NULL DEFAULT '',
		hall_name      VARCHAR(255) NOT NULL DEFAULT '',
		starts_at      DATETIME     NULL,
		total          BIGINT       NOT NULL,
		payment_method VARCHAR(16)  NOT NULL,
		payment_status VARCHAR(16)  NOT NULL,
		status         VARCHAR(16)  NOT NULL,
		created_at     DATETIME(3)  NOT NULL,
		UNIQUE KEY uq_bookings_hold (hold_id),
		KEY idx_bookings_holder (holder_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_code VARCHAR(32) NOT NULL,
		seat_number  VARCHAR(16) NOT NULL,
		category     VARCHAR(32) NOT NULL,
		price        BIGINT      NOT NULL,
		PRIMARY KEY (booking_code, seat_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS booking_combos (
		booking_code VARCHAR(32)  NOT NULL,
		combo_id     VARCHAR(64)  NOT NULL,
		name         VARCHAR(255) NOT NULL,
		unit_price   BIGINT       NOT NULL,
		quantity     INT          NOT NULL,
		line_total   BIGINT       NOT NULL,
		PRIMARY KEY (booking_code, combo_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.  It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
