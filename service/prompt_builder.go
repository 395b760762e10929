package service

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"valera/models"
)

// SystemPrompt is the fixed persona instruction prepended to every request.
// The bot speaks as Valera, a dating-and-communication coach; the scenarios
// mirror the menu options.
const SystemPrompt = "Ты — Валера, тренер по соблазнению и общению с девушками. " +
	"Твоя основная задача: помочь мне соблазнить девушку, понравиться ей и наладить лёгкий, классный вайб общения.\n\n" +
	"Основные сценарии работы:\n" +
	"1. Если я присылаю переписку (текст или скрины):\n" +
	"   - Дай краткий анализ её ответов (о чём они говорят, насколько она заинтересована, есть ли намёки).\n" +
	"   - Подготовь 2–3 варианта ответов, объясни почему каждый вариант работает.\n" +
	"   - Добавь комментарии, как развивать разговор дальше.\n\n" +
	"2. Если я присылаю анкету девушки:\n" +
	"   - Проанализируй её, расскажи, какая у неё личность, интересы, стиль общения.\n" +
	"   - Подскажи, какой подход лучше использовать, чтобы вызвать интерес и сблизиться.\n\n" +
	"3. Если я присылаю свою анкету:\n" +
	"   - Дай подробный разбор (что хорошо, что плохо).\n" +
	"   - Поставь оценку по шкале от 1 до 10.\n" +
	"   - Скажи, что улучшить, чтобы анкета сильнее цепляла девушек.\n\n" +
	"4. Если я прошу темы для разговора:\n" +
	"   - Подкинь лёгкие, флиртующие и интересные темы для онлайн или оффлайн общения.\n" +
	"   - Помоги закрыть неловкие паузы, создай правильный вайб.\n\n" +
	"Правила общения:\n" +
	"- Никогда не выходи из роли Валеры.\n" +
	"- Не пиши приветствий (мы уже поздоровались).\n" +
	"- Всегда отвечай в формате обычного сообщения, без лишних формальностей.\n" +
	"- Общайся по-дружески, по-свойски, с лёгким налётом уверенности и дерзости.\n" +
	"- Если информации недостаточно — задавай уточняющий вопрос.\n" +
	"- При анализе фото тоже делай выводы.\n" +
	"- Отвечай структурировано: сначала анализ, потом варианты и комментарии."

// BuildPrompt maps (mode, user text, image references) to a completion
// request: the persona system turn plus one user turn. When images are
// present the user turn is a mixed content list with the optional text part
// first and one image part per URL in input order. Pure and deterministic.
func BuildPrompt(action models.ActionKind, text string, imageURLs []string) []*schema.Message {
	wrapped := wrapForAction(action, text)

	messages := []*schema.Message{
		schema.SystemMessage(SystemPrompt),
	}

	if len(imageURLs) == 0 {
		return append(messages, schema.UserMessage(wrapped))
	}

	var parts []schema.ChatMessagePart
	if wrapped != "" {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: wrapped,
		})
	}
	for _, url := range imageURLs {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL: url,
			},
		})
	}

	return append(messages, &schema.Message{
		Role:         schema.User,
		MultiContent: parts,
	})
}

func wrapForAction(action models.ActionKind, text string) string {
	switch action {
	case models.ActionConversation:
		return fmt.Sprintf(
			"Вот переписка:\n%s\n\n"+
				"1. Дай краткий анализ её ответов (о чём они говорят, насколько она заинтересована, есть ли намёки).\n"+
				"2. Подготовь 2–3 варианта ответов и поясни, почему каждый вариант работает.\n"+
				"3. Добавь комментарии, как развивать разговор дальше.",
			text)
	case models.ActionGirlProfile:
		return fmt.Sprintf(
			"Вот анкета девушки:\n%s\n\n"+
				"Проанализируй её: опиши личность, интересы, стиль общения и подскажи, какой подход лучше использовать,"+
				" чтобы вызвать её интерес и сблизиться.",
			text)
	case models.ActionMyProfile:
		return fmt.Sprintf(
			"Вот моя анкета:\n%s\n\n"+
				"Дай подробный разбор (что хорошо, что плохо), поставь оценку по шкале от 1 до 10"+
				" и предложи, что улучшить, чтобы анкета сильнее цепляла девушек.",
			text)
	case models.ActionTopics:
		contextPart := ""
		if text != "" {
			contextPart = text + "\n\n"
		}
		return contextPart +
			"Подкинь лёгкие, флиртующие и интересные темы для онлайн или оффлайн общения," +
			" чтобы закрыть неловкие паузы и создать правильный вайб."
	default:
		return text
	}
}
