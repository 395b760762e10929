package models

import (
	"time"
)

// Payment records a settled Telegram Stars charge. The unique charge id makes
// settlement idempotent: a double-delivered payment event credits nothing.
type Payment struct {
	ID         int64     `db:"id"`
	ChargeID   string    `db:"charge_id"`
	TelegramID int64     `db:"telegram_id"`
	AmountPaid int64     `db:"amount_paid"`
	Tokens     int64     `db:"tokens"`
	CreatedAt  time.Time `db:"created_at"`
}
