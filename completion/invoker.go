package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Config holds the completion model settings
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Invoker wraps a Gemini chat model behind a single blocking call. Exactly one
// request goes out per invocation; any error, timeout or empty reply surfaces
// as an error and retries are left to the caller's billing policy.
type Invoker struct {
	model   *gemini.ChatModel
	timeout time.Duration
}

// NewInvoker creates the Gemini client and chat model
func NewInvoker(ctx context.Context, cfg Config) (*Invoker, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Invoker{
		model:   chatModel,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends the request and returns the reply text
func (i *Invoker) Complete(ctx context.Context, request []*schema.Message) (string, error) {
	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := i.model.Generate(callCtx, request)
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}

	log.WithFields(log.Fields{
		"elapsed":  time.Since(start),
		"messages": len(request),
	}).Debug("Completion call finished")

	text := strings.TrimSpace(reply.Content)
	if text == "" {
		return "", errors.New("completion returned an empty reply")
	}
	return text, nil
}
