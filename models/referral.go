package models

import (
	"time"
)

// Referral represents a directed inviter->invitee edge. An invitee can be
// referred at most once; the edge is created at the invitee's first /start
// with a referral payload and never changes afterwards.
type Referral struct {
	ID        int64     `db:"id"`
	InviterID int64     `db:"inviter_id"`
	InviteeID int64     `db:"invitee_id"`
	CreatedAt time.Time `db:"created_at"`
}
