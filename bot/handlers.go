package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"valera/models"
	"valera/service"
)

const restartText = "Произошла ошибка. Пожалуйста, перезапустите бота командой /start"

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	telegramID := message.From.ID

	// A fresh /start drops any pending menu selection
	if _, err := b.actionService.Consume(ctx, telegramID); err != nil {
		log.WithError(err).Warn("Failed to clear pending action on start")
	}

	referrerID := parseReferralPayload(message.CommandArguments())
	if referrerID != nil && *referrerID == telegramID {
		referrerID = nil
	}

	var username *string
	if message.From.UserName != "" {
		name := message.From.UserName
		username = &name
	}

	// The referrer column is filled by RegisterReferral once the inviter is
	// validated, so creation itself carries no referrer.
	if _, err := b.userService.GetOrCreateUser(ctx, telegramID, message.From.FirstName, username, nil); err != nil {
		log.WithError(err).Error("Failed to get or create user")
		b.send(tgbotapi.NewMessage(message.Chat.ID, restartText))
		return
	}

	if referrerID != nil {
		if err := b.registerReferral(ctx, *referrerID, telegramID, message.Chat.ID); err != nil {
			return
		}
	}

	greeting := fmt.Sprintf(
		"Ну что ж, %s! Я Валера, твой персональный тренер по соблазнению и отношениям.\n"+
			"Я помогу проанализировать переписку, анкету девушки и помочь классно продолжить беседу и понять что к чему. "+
			"Даже помогу заполнить неловкие паузы во время беседы либо подскажу как улучшить твою анкету!\n"+
			"Выбери ниже, что тебе интересно либо просто напиши в чат, что тебя волнует:",
		message.From.FirstName)

	msg := tgbotapi.NewMessage(message.Chat.ID, greeting)
	msg.ReplyMarkup = mainMenuKeyboard()
	b.send(msg)
}

func (b *Bot) registerReferral(ctx context.Context, inviterID, inviteeID, chatID int64) error {
	err := b.userService.RegisterReferral(ctx, inviterID, inviteeID)
	switch {
	case err == nil:
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"Вы стали рефералом! Вы оба получите +%d токенов после твоей первой генерации", b.config.RefBonus)))
		return nil
	case errors.Is(err, service.ErrDuplicateReferral):
		// Replayed /start link, nothing to do
		return nil
	case errors.Is(err, service.ErrSelfReferral), errors.Is(err, service.ErrUnknownInviter):
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return err
	default:
		log.WithError(err).Error("Failed to register referral")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return err
	}
}

// parseReferralPayload reads the /start deep-link argument. Both the bare
// "12345" and the "r_12345" form are accepted.
func parseReferralPayload(args string) *int64 {
	args = strings.TrimSpace(args)
	args = strings.TrimPrefix(args, "r_")
	if args == "" {
		return nil
	}
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	kind, payload := resolveCallbackIntent(callback.Data)
	telegramID := callback.From.ID
	chatID := callback.Message.Chat.ID

	// The verification button must stay reachable for unsubscribed users;
	// everything else requires channel membership first.
	if kind != intentVerifySubscription {
		subscribed, err := b.gateService.CheckSubscription(ctx, telegramID)
		if err != nil {
			log.WithError(err).Error("Failed to check subscription")
			b.answerCallback(callback.ID, "")
			b.send(tgbotapi.NewMessage(chatID, restartText))
			return
		}
		if !subscribed {
			b.answerCallback(callback.ID, "")
			b.sendSubscriptionPrompt(chatID)
			return
		}
	}

	switch kind {
	case intentStartChat:
		b.setPendingAction(ctx, callback, models.ActionConversation,
			"Ок! Пришли переписку — текстом или скринами. Я помогу понять, как она к тебе относится, и предложу лучшие ответы.")
	case intentGirlProfile:
		b.setPendingAction(ctx, callback, models.ActionGirlProfile,
			"Пришли анкету девушки: текст или фото. Я расскажу, какая она, чем увлекается и как лучше завести разговор.")
	case intentMyProfile:
		b.setPendingAction(ctx, callback, models.ActionMyProfile,
			"Давай посмотрим на твой профиль. Пришли текст или фото, и я скажу, что супер, а что можно подтянуть.")
	case intentAwkwardPause:
		b.setPendingAction(ctx, callback, models.ActionTopics,
			"Опиши, где вы сейчас (чат или свидание) и что обсуждали. Я подкину темы, чтобы заполнить паузу и поддержать вайб.")
	case intentShowBalance:
		b.answerCallback(callback.ID, "")
		b.showBalance(ctx, telegramID, chatID)
	case intentBuyCredits:
		b.answerCallback(callback.ID, "")
		msg := tgbotapi.NewMessage(chatID, "Выбери пакет для пополнения баланса:")
		msg.ReplyMarkup = purchaseKeyboard()
		b.send(msg)
	case intentShowReferral:
		b.answerCallback(callback.ID, "")
		b.showReferralLink(telegramID, chatID)
	case intentVerifySubscription:
		b.verifySubscription(ctx, callback)
	case intentPurchase:
		b.answerCallback(callback.ID, "")
		b.sendInvoice(chatID, payload)
	default:
		b.answerCallback(callback.ID, "")
	}
}

func (b *Bot) setPendingAction(ctx context.Context, callback *tgbotapi.CallbackQuery, kind models.ActionKind, prompt string) {
	b.answerCallback(callback.ID, "")
	if err := b.actionService.Set(ctx, callback.From.ID, kind); err != nil {
		log.WithError(err).Error("Failed to set pending action")
		b.send(tgbotapi.NewMessage(callback.Message.Chat.ID, restartText))
		return
	}
	b.send(tgbotapi.NewMessage(callback.Message.Chat.ID, prompt))
}

func (b *Bot) showBalance(ctx context.Context, telegramID, chatID int64) {
	balance, err := b.userService.GetBalance(ctx, telegramID)
	if err != nil {
		log.WithError(err).Error("Failed to get balance")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return
	}

	text := fmt.Sprintf(
		"💰 Твой баланс: %d токен(ов).\n"+
			"1 токен = 1 ответ Валеры.\n\n"+
			"🎁 Пригласи друга и вы оба получите +%d токенов!\n\n"+
			"🔗 Чтобы узнать свою персональную ссылку, перейди в раздел «Пригласить друга».",
		balance, b.config.RefBonus)
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) showReferralLink(telegramID, chatID int64) {
	text := fmt.Sprintf(
		"🔗 Твоя персональная реферальная ссылка:\n"+
			"https://t.me/%s?start=r_%d\n\n"+
			"Пригласи друга и вы оба получите +%d токенов!",
		b.api.Self.UserName, telegramID, b.config.RefBonus)
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) verifySubscription(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	subscribed, err := b.gateService.CheckSubscription(ctx, callback.From.ID)
	if err != nil {
		log.WithError(err).Error("Failed to verify subscription")
		b.answerCallback(callback.ID, "")
		return
	}
	if !subscribed {
		b.answerCallbackAlert(callback.ID, "Вы не подписаны на канал!")
		return
	}
	b.answerCallback(callback.ID, "")
	b.send(tgbotapi.NewMessage(callback.Message.Chat.ID, "Благодарю за подписку! Теперь можем общаться полноценно 😉"))
}

func (b *Bot) sendSubscriptionPrompt(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Перед тем как я тебе помогу, подпишись на мой канал и мы продолжим %s", b.config.ChannelUsername))
	msg.ReplyMarkup = subscriptionKeyboard(b.config.ChannelUsername)
	b.send(msg)
}

var imageURLPattern = regexp.MustCompile(`https?://\S+`)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func (b *Bot) handleGenerate(ctx context.Context, message *tgbotapi.Message) {
	telegramID := message.From.ID
	chatID := message.Chat.ID

	var username *string
	if message.From.UserName != "" {
		name := message.From.UserName
		username = &name
	}
	if _, err := b.userService.GetOrCreateUser(ctx, telegramID, message.From.FirstName, username, nil); err != nil {
		log.WithError(err).Error("Failed to ensure user")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return
	}

	decision, err := b.gateService.Check(ctx, telegramID)
	if err != nil {
		log.WithError(err).Error("Gate check failed")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return
	}
	if !decision.Admitted {
		b.sendDenial(chatID, decision)
		return
	}

	action, err := b.actionService.Consume(ctx, telegramID)
	if err != nil {
		log.WithError(err).Error("Failed to consume pending action")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return
	}

	imageURLs, err := b.collectImageURLs(message)
	if err != nil {
		log.WithError(err).Error("Failed to resolve photo")
		b.send(tgbotapi.NewMessage(chatID, restartText))
		return
	}

	text := message.Text
	if message.Caption != "" {
		text = message.Caption
	}

	if len(message.Photo) > 0 {
		b.send(tgbotapi.NewMessage(chatID, "Анализирую фото..."))
	}
	b.typing(chatID)

	request := service.BuildPrompt(action, text, imageURLs)
	reply, err := b.generationService.HandleGeneration(ctx, telegramID, action, request)
	if err != nil {
		b.sendGenerationError(chatID, err)
		return
	}

	b.send(tgbotapi.NewMessage(chatID, reply))
}

func (b *Bot) sendDenial(chatID int64, decision service.Decision) {
	switch decision.Reason {
	case service.DenialForbidden:
		b.send(tgbotapi.NewMessage(chatID, "Извините, вам запрещено пользоваться этим ботом."))
	case service.DenialNotSubscribed:
		b.sendSubscriptionPrompt(chatID)
	case service.DenialNoTokens:
		msg := tgbotapi.NewMessage(chatID, "Недостаточно токенов. Пополните баланс.")
		msg.ReplyMarkup = purchaseKeyboard()
		b.send(msg)
	case service.DenialCooldown:
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"Подождите %d сек. перед следующей генерацией.", decision.RetrySeconds())))
	}
}

func (b *Bot) sendGenerationError(chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		b.send(tgbotapi.NewMessage(chatID, "Недостаточно токенов. Пополните баланс."))
	case errors.Is(err, service.ErrCompletionFailed):
		b.send(tgbotapi.NewMessage(chatID, "Произошла ошибка при генерации ответа. Токен возвращён, попробуйте снова позже."))
	default:
		log.WithError(err).Error("Generation failed")
		b.send(tgbotapi.NewMessage(chatID, restartText))
	}
}

// collectImageURLs gathers the image references of one message: the uploaded
// photo at its highest resolution plus any direct image links in the text.
func (b *Bot) collectImageURLs(message *tgbotapi.Message) ([]string, error) {
	var urls []string

	if len(message.Photo) > 0 {
		// Telegram orders photo sizes ascending; the last is the largest
		photo := message.Photo[len(message.Photo)-1]
		url, err := b.fileURL(photo.FileID)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	if message.Text != "" {
		for _, url := range imageURLPattern.FindAllString(message.Text, -1) {
			if hasImageExtension(url) {
				urls = append(urls, url)
			}
		}
	}

	return urls, nil
}

func hasImageExtension(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.WithError(err).Debug("Failed to answer callback")
	}
}

func (b *Bot) answerCallbackAlert(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(id, text)); err != nil {
		log.WithError(err).Debug("Failed to answer callback")
	}
}
