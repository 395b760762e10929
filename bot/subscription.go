package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"valera/service"
)

// subscriptionChecker resolves channel membership through the Telegram API.
// Any status other than "left" counts as subscribed, matching how the
// channel treats restricted members.
type subscriptionChecker struct {
	api     *tgbotapi.BotAPI
	channel string
}

// NewSubscriptionChecker creates a checker for the given channel username
func NewSubscriptionChecker(api *tgbotapi.BotAPI, channel string) service.SubscriptionChecker {
	return &subscriptionChecker{api: api, channel: channel}
}

func (c *subscriptionChecker) IsSubscribed(ctx context.Context, telegramID int64) (bool, error) {
	// No channel configured means the check is disabled
	if c.channel == "" {
		return true, nil
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: c.channel,
			UserID:             telegramID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}

	return member.Status != "left", nil
}
