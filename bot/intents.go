package bot

import "strings"

// intent identifies what an inbound callback or message asks the bot to do
type intent int

const (
	intentUnknown intent = iota
	intentStartChat
	intentGirlProfile
	intentMyProfile
	intentAwkwardPause
	intentShowBalance
	intentBuyCredits
	intentShowReferral
	intentVerifySubscription
	intentPurchase
)

const purchasePrefix = "purchase:"

// resolveCallbackIntent maps raw callback data to an intent. Purchase
// callbacks carry the offer payload after the prefix; it is returned verbatim.
func resolveCallbackIntent(data string) (intent, string) {
	if payload, ok := strings.CutPrefix(data, purchasePrefix); ok {
		return intentPurchase, payload
	}

	switch data {
	case "start_chat":
		return intentStartChat, ""
	case "girl_profile":
		return intentGirlProfile, ""
	case "my_profile":
		return intentMyProfile, ""
	case "awkward_pauses":
		return intentAwkwardPause, ""
	case "show_balance":
		return intentShowBalance, ""
	case "buy_credits":
		return intentBuyCredits, ""
	case "show_referral":
		return intentShowReferral, ""
	case "check":
		return intentVerifySubscription, ""
	default:
		return intentUnknown, ""
	}
}
