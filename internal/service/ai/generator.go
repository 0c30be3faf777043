package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	replyTemperature float32 = 0.7
	replyMaxTokens           = 2048
	titleTemperature float32 = 0.2
	titleMaxTokens           = 16
	titleMaxWords            = 4
)

const titleSystemPrompt = "You are a short title generator. Produce a very short (2-4 word) descriptive title " +
	"for the medical conversation. Reply with the title only."

// ErrEmptyTitle is returned when the provider answers a title request with nothing usable.
var ErrEmptyTitle = errors.New("empty title from provider")

// GeneratorConfig selects models and the system instruction for a Generator.
type GeneratorConfig struct {
	ReplyModel   string
	TitleModel   string
	SystemPrompt string
}

// Generator produces assistant replies and session titles through one chat model.
// It is built once at startup and is safe for concurrent use.
type Generator struct {
	chat         model.BaseChatModel
	replyModel   string
	titleModel   string
	systemPrompt string

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewGenerator wraps chat with the reply and title prompts.
func NewGenerator(chat model.BaseChatModel, cfg GeneratorConfig) (*Generator, error) {
	if chat == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.ReplyModel == "" || cfg.TitleModel == "" {
		return nil, errors.New("reply and title models are required")
	}
	duration, err := otel.Meter("medchat/ai").Float64Histogram(
		"medchat.provider.duration",
		metric.WithDescription("Provider completion latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &Generator{
		chat:         chat,
		replyModel:   cfg.ReplyModel,
		titleModel:   cfg.TitleModel,
		systemPrompt: cfg.SystemPrompt,
		tracer:       otel.Tracer("medchat/ai"),
		duration:     duration,
	}, nil
}

// Reply answers userText under the medical system instruction. A blank modelOverride
// selects the configured reply model. Errors are returned as-is; nothing is retried.
func (g *Generator) Reply(ctx context.Context, userText, modelOverride string) (string, error) {
	modelName := strings.TrimSpace(modelOverride)
	if modelName == "" {
		modelName = g.replyModel
	}
	messages := []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(userText),
	}
	resp, err := g.generate(ctx, "reply", modelName, messages,
		model.WithTemperature(replyTemperature),
		model.WithTopP(1),
		model.WithMaxTokens(replyMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Title asks the title model for a short name for a conversation opened with firstMessage.
func (g *Generator) Title(ctx context.Context, firstMessage string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(titleSystemPrompt),
		schema.UserMessage(fmt.Sprintf(`Conversation first message: "%s"`, firstMessage)),
	}
	resp, err := g.generate(ctx, "title", g.titleModel, messages,
		model.WithTemperature(titleTemperature),
		model.WithTopP(1),
		model.WithMaxTokens(titleMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title := TruncateTitle(resp.Content)
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}

func (g *Generator) generate(ctx context.Context, purpose, modelName string, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	attrs := []attribute.KeyValue{
		attribute.String("purpose", purpose),
		attribute.String("model", modelName),
	}
	ctx, span := g.tracer.Start(ctx, "provider."+purpose, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	resp, err := g.chat.Generate(ctx, messages, append(opts, model.WithModel(modelName))...)
	g.duration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err == nil && resp == nil {
		err = errors.New("provider returned no message")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// TruncateTitle keeps the first line of raw and at most four words of it.
func TruncateTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if line, _, found := strings.Cut(title, "\n"); found {
		title = strings.TrimSpace(line)
	}
	title = strings.TrimSpace(strings.Trim(title, `"'`))
	words := strings.Fields(title)
	if len(words) > titleMaxWords {
		title = strings.Join(words[:titleMaxWords], " ")
	}
	return title
}
