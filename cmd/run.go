package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"valera/bot"
	"valera/completion"
	"valera/config"
	"valera/database"
	"valera/events"
	"valera/repository"
	"valera/service"
	"valera/statestore"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting valera bot...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Pick the state store: Redis when configured, in-process otherwise
	var store service.StateStore
	if cfg.RedisURL != "" {
		log.Info("Connecting to redis...")
		redisStore, err := statestore.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		log.Info("REDIS_URL not set, using in-process state store")
		store = statestore.NewMemoryStore()
	}

	// Initialize event bus and unit of work factory
	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize the completion model
	log.WithField("model", cfg.CompletionModel).Info("Initializing completion model...")
	invoker, err := completion.NewInvoker(ctx, completion.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.CompletionModel,
		Timeout: cfg.CompletionTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize completion model: %w", err)
	}

	// Initialize the Telegram client before the gate so the subscription
	// checker can be injected into it
	log.Info("Initializing Telegram bot...")
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	subscriptionChecker := bot.NewSubscriptionChecker(api, cfg.ChannelUsername)

	// Initialize services
	userService := service.NewUserService(uowFactory, cfg.StartBonus)
	generationService := service.NewGenerationService(uowFactory, invoker, service.GenerationConfig{
		GenerateCost: cfg.GenerateCost,
		RefBonus:     cfg.RefBonus,
	})
	paymentService := service.NewPaymentService(uowFactory)
	gateService := service.NewGateService(service.GateConfig{
		AllowedUserIDs: cfg.AllowedUserIDs,
		GenerateCost:   cfg.GenerateCost,
		Cooldown:       cfg.Cooldown(),
	}, uowFactory, subscriptionChecker, store)
	actionService := service.NewActionStateService(store)

	telegramBot := bot.New(bot.Config{
		ChannelUsername: cfg.ChannelUsername,
		ProviderToken:   cfg.ProviderToken,
		OperatorChatID:  cfg.OperatorChatID,
		RefBonus:        cfg.RefBonus,
	}, api, userService, generationService, paymentService, gateService, actionService, eventBus)

	log.WithField("environment", cfg.Environment).Info("Bot is running")
	runErr := telegramBot.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.WithError(runErr).Error("Bot stopped with error")
	}

	// Cleanup resources
	log.Info("Shutting down bot...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}
