package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"valera/models"
	"valera/service"
)

// handlePreCheckout acknowledges every pre-checkout query. Validation happens
// at settlement, where the charge id makes replays harmless.
func (b *Bot) handlePreCheckout(query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := b.api.Request(answer); err != nil {
		log.WithError(err).Error("Failed to answer pre-checkout query")
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, message *tgbotapi.Message) {
	payment := message.SuccessfulPayment
	telegramID := message.From.ID

	settled, err := b.paymentService.Settle(ctx, telegramID, payment.TelegramPaymentChargeID, payment.InvoicePayload)
	if err != nil {
		if errors.Is(err, service.ErrDuplicatePayment) {
			log.WithFields(log.Fields{
				"telegramID": telegramID,
				"chargeID":   payment.TelegramPaymentChargeID,
			}).Warn("Ignoring replayed payment")
			return
		}
		log.WithError(err).Error("Failed to settle payment")
		b.send(tgbotapi.NewMessage(message.Chat.ID, restartText))
		if b.config.OperatorChatID != 0 {
			b.send(tgbotapi.NewMessage(b.config.OperatorChatID,
				fmt.Sprintf("Ошибка зачисления платежа %s: %v", payment.TelegramPaymentChargeID, err)))
		}
		return
	}

	b.send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf(
		"Платеж на сумму %d звезд зачислен! Вы получаете %d токенов", settled.AmountPaid, settled.Tokens)))
}

// sendInvoice issues a Telegram Stars invoice for the offer encoded in the
// callback payload. The payload round-trips unchanged through the provider.
// Callback data is client-supplied, so only catalog offers get an invoice.
func (b *Bot) sendInvoice(chatID int64, payload string) {
	stars, tokens, err := models.ParseInvoicePayload(payload)
	if err != nil {
		log.WithError(err).Warn("Ignoring purchase callback with bad payload")
		return
	}
	if _, ok := models.FindOffer(stars, tokens); !ok {
		log.WithField("payload", payload).Warn("Ignoring purchase callback for non-catalog offer")
		return
	}

	invoice := tgbotapi.NewInvoice(
		chatID,
		fmt.Sprintf("Пакет на %d токенов", tokens),
		fmt.Sprintf("Пополнение баланса: Пакет на %d токенов", tokens),
		payload,
		b.config.ProviderToken,
		"",
		"XTR",
		[]tgbotapi.LabeledPrice{{Label: "XTR", Amount: int(stars)}},
	)
	invoice.SuggestedTipAmounts = []int{}

	if _, err := b.api.Request(invoice); err != nil {
		log.WithError(err).Error("Failed to send invoice")
		b.send(tgbotapi.NewMessage(chatID, restartText))
	}
}
