package service

import (
	"errors"
)

var (
	// ErrInsufficientBalance is returned when a debit would exceed the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCompletionFailed covers every completion outcome that is not a
	// non-empty reply: transport errors, timeouts, malformed and empty
	// responses. Billing does not distinguish the subtypes; all of them
	// trigger a refund.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrSelfReferral is returned for an inviter == invitee edge.
	ErrSelfReferral = errors.New("self-referral is not allowed")

	// ErrDuplicateReferral is returned when the invitee already participates
	// in a referral edge.
	ErrDuplicateReferral = errors.New("user is already referred")

	// ErrUnknownInviter is returned when the referral payload names a user
	// that does not exist.
	ErrUnknownInviter = errors.New("inviter not found")

	// ErrMalformedPayload is returned when an invoice payload does not parse.
	ErrMalformedPayload = errors.New("malformed invoice payload")

	// ErrUnknownOffer is returned when a payload parses but names a
	// price/token pair outside the fixed purchase catalog.
	ErrUnknownOffer = errors.New("unknown purchase offer")

	// ErrDuplicatePayment is returned when a charge id was already settled.
	ErrDuplicatePayment = errors.New("payment already settled")
)
