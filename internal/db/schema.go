package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

func HasTable(ctx context.Context, q QueryRower, table string) bool {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`, table).Scan(&name)
	if err != nil {
		return false
	}
	return name.Valid && name.String != ""
}

func HasColumn(ctx context.Context, q QueryRower, table, column string) bool {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND column_name = ?
		LIMIT 1
	`, table, column).Scan(&name)
	if err != nil {
		return false
	}
	return name.Valid && name.String != ""
}

type tableDDL struct {
	name string
	ddl  string
	// columns an existing table must already have; the bootstrap never alters tables.
	required []string
}

// Creation order matters: bookings reference trips and users.
var schema = []tableDDL{
	{"users", `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL DEFAULT '',
	email VARCHAR(255) NOT NULL,
	phone VARCHAR(100) NOT NULL DEFAULT '',
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL DEFAULT 'pilgrim',
	status VARCHAR(32) NOT NULL DEFAULT 'active',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`, nil},
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	organizer_id BIGINT NOT NULL,
	title VARCHAR(255) NOT NULL,
	destination VARCHAR(255) NOT NULL DEFAULT '',
	start_date VARCHAR(10) NOT NULL DEFAULT '',
	end_date VARCHAR(10) NOT NULL DEFAULT '',
	price_per_person DECIMAL(12,2) NOT NULL DEFAULT 0,
	max_pilgrims INT NOT NULL,
	current_bookings INT NOT NULL DEFAULT 0,
	is_active TINYINT(1) NOT NULL DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	KEY idx_trips_organizer (organizer_id),
	CONSTRAINT chk_trips_capacity CHECK (max_pilgrims > 0 AND current_bookings >= 0 AND current_bookings <= max_pilgrims)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`, []string{"max_pilgrims", "current_bookings"}},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	trip_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	number_of_pilgrims INT NOT NULL,
	total_amount DECIMAL(12,2) NOT NULL,
	status VARCHAR(32) NOT NULL DEFAULT 'pending',
	contact_email VARCHAR(255) NOT NULL DEFAULT '',
	contact_phone VARCHAR(100) NOT NULL DEFAULT '',
	special_requests TEXT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	KEY idx_bookings_trip (trip_id, status),
	KEY idx_bookings_user (user_id),
	CONSTRAINT fk_bookings_trip FOREIGN KEY (trip_id) REFERENCES trips (id),
	CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users (id),
	CONSTRAINT chk_bookings_seats CHECK (number_of_pilgrims >= 1)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`, []string{"number_of_pilgrims", "status"}},
}

// EnsureSchema creates missing tables. Existing tables are left untouched but
// must carry the columns the capacity ledger depends on.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db not available")
	}
	for _, t := range schema {
		if HasTable(ctx, db, t.name) {
			for _, col := range t.required {
				if !HasColumn(ctx, db, t.name, col) {
					return fmt.Errorf("table %s exists without column %s", t.name, col)
				}
			}
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		log.Printf("[DB] created table %s", t.name)
	}
	return nil
}
