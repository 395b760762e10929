package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"valera/events"
	"valera/service"
)

// Config holds bot configuration
type Config struct {
	ChannelUsername string
	ProviderToken   string
	OperatorChatID  int64
	RefBonus        int64
}

type Bot struct {
	config            Config
	api               *tgbotapi.BotAPI
	userService       service.UserService
	generationService service.GenerationService
	paymentService    service.PaymentService
	gateService       service.GateService
	actionService     service.ActionStateService
	eventBus          *events.Bus
}

func New(config Config, api *tgbotapi.BotAPI, userService service.UserService, generationService service.GenerationService, paymentService service.PaymentService, gateService service.GateService, actionService service.ActionStateService, eventBus *events.Bus) *Bot {
	bot := &Bot{
		config:            config,
		api:               api,
		userService:       userService,
		generationService: generationService,
		paymentService:    paymentService,
		gateService:       gateService,
		actionService:     actionService,
		eventBus:          eventBus,
	}

	// Both sides of a referral hear about the bonus when it lands.
	eventBus.Subscribe(events.EventTypeReferralBonus, func(ctx context.Context, event events.Event) {
		if bonus, ok := event.(events.ReferralBonusEvent); ok {
			bot.notifyReferralBonus(bonus)
		}
	})

	return bot
}

// Run consumes the update stream until the context is cancelled. Each update
// is handled on its own goroutine so one slow completion call cannot stall
// the rest of the chat.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	log.WithField("username", b.api.Self.UserName).Info("Bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Update handler panicked")
			b.reportError(update, fmt.Errorf("panic: %v", r))
		}
	}()

	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	switch {
	case message.SuccessfulPayment != nil:
		b.handleSuccessfulPayment(ctx, message)
	case message.IsCommand() && message.Command() == "start":
		b.handleStart(ctx, message)
	default:
		b.handleGenerate(ctx, message)
	}
}

// reportError tells the user to restart and forwards the failure to the
// operator chat when one is configured.
func (b *Bot) reportError(update tgbotapi.Update, err error) {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	}

	if chatID != 0 {
		b.send(tgbotapi.NewMessage(chatID, "Произошла ошибка, используйте команду /start"))
	}

	if b.config.OperatorChatID != 0 {
		b.send(tgbotapi.NewMessage(b.config.OperatorChatID, fmt.Sprintf("Ошибка: %v", err)))
	}
}

func (b *Bot) notifyReferralBonus(bonus events.ReferralBonusEvent) {
	inviterText := fmt.Sprintf("Вы успешно пригласили друга и получаете +%d токенов", bonus.Bonus)
	inviteeText := fmt.Sprintf("Награда за реферала! Вы получаете +%d токенов", bonus.Bonus)

	b.send(tgbotapi.NewMessage(bonus.InviterID, inviterText))
	b.send(tgbotapi.NewMessage(bonus.InviteeID, inviteeText))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.WithError(err).Warn("Failed to send message")
	}
}

// typing shows the typing indicator while a completion call is in flight
func (b *Bot) typing(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		log.WithError(err).Debug("Failed to send chat action")
	}
}

// fileURL builds the direct download link for an uploaded Telegram file
func (b *Bot) fileURL(fileID string) (string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.api.Token, file.FilePath), nil
}
