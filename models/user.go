package models

import (
	"time"
)

// User represents a Telegram user with a token balance
type User struct {
	TelegramID   int64     `db:"telegram_id"`
	Name         string    `db:"name"`
	Username     *string   `db:"username"`
	Balance      int64     `db:"balance"`
	ReferrerID   *int64    `db:"referrer_id"`
	HasGenerated bool      `db:"has_generated"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
