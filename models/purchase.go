package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PurchaseOffer is a fixed catalog entry: a token pack priced in Telegram Stars.
type PurchaseOffer struct {
	Stars  int64
	Tokens int64
}

// PurchaseCatalog is the static set of offers shown on the top-up keyboard.
var PurchaseCatalog = []PurchaseOffer{
	{Stars: 199, Tokens: 25},
	{Stars: 759, Tokens: 100},
	{Stars: 2190, Tokens: 300},
	{Stars: 6490, Tokens: 1000},
}

// FindOffer returns the catalog entry matching the price/token pair. Payloads
// arrive from client-supplied callback data, so anything outside the fixed
// catalog is rejected.
func FindOffer(stars, tokens int64) (PurchaseOffer, bool) {
	for _, offer := range PurchaseCatalog {
		if offer.Stars == stars && offer.Tokens == tokens {
			return offer, true
		}
	}
	return PurchaseOffer{}, false
}

// InvoicePayload encodes an offer as "{amount}_{tokens}" for the invoice
// round trip through the payment provider.
func (o PurchaseOffer) InvoicePayload() string {
	return fmt.Sprintf("%d_%d", o.Stars, o.Tokens)
}

// ParseInvoicePayload splits an invoice payload on the first underscore and
// parses both halves as integers.
func ParseInvoicePayload(payload string) (stars int64, tokens int64, err error) {
	amountPart, tokensPart, found := strings.Cut(payload, "_")
	if !found {
		return 0, 0, fmt.Errorf("invoice payload %q has no separator", payload)
	}
	stars, err = strconv.ParseInt(amountPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invoice payload %q has invalid amount: %w", payload, err)
	}
	tokens, err = strconv.ParseInt(tokensPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invoice payload %q has invalid token count: %w", payload, err)
	}
	return stars, tokens, nil
}
