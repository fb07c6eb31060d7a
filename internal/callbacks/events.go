// Package callbacks provides Eino callback handlers that bridge worker
// activity onto the event bus.
package callbacks

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	ub "github.com/cloudwego/eino/utils/callbacks"

	"github.com/okvist/foreman/internal/events"
)

const maxTracePayload = 1000

// NewEventBusHandler creates a callback handler that publishes tool and
// model activity to the bus, tagged with the run and task carried on the
// context.
func NewEventBusHandler(bus *events.Bus, source events.EventSource) callbacks.Handler {
	if source == "" {
		source = events.SourceSubagent
	}

	publish := func(ctx context.Context, payload events.EventPayload) {
		bus.Publish(events.NewEvent(source, events.RunIDFromContext(ctx), payload))
	}

	modelHandler := &ub.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			publish(ctx, events.ModelCallPayload{
				TaskID:       events.TaskIDFromContext(ctx),
				Phase:        "request",
				Model:        info.Name,
				MessageCount: len(input.Messages),
			})
			return ctx
		},
		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			payload := events.ModelCallPayload{
				TaskID: events.TaskIDFromContext(ctx),
				Phase:  "response",
				Model:  info.Name,
			}
			if output.Message != nil && output.Message.ResponseMeta != nil && output.Message.ResponseMeta.Usage != nil {
				payload.TokensInput = output.Message.ResponseMeta.Usage.PromptTokens
				payload.TokensOutput = output.Message.ResponseMeta.Usage.CompletionTokens
			}
			publish(ctx, payload)
			return ctx
		},
		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			publish(ctx, events.ModelCallPayload{
				TaskID: events.TaskIDFromContext(ctx),
				Phase:  "error",
				Model:  info.Name,
				Error:  err.Error(),
			})
			return ctx
		},
	}

	toolHandler := &ub.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *tool.CallbackInput) context.Context {
			publish(ctx, events.ToolCallPayload{
				TaskID:    events.TaskIDFromContext(ctx),
				Status:    events.ToolStatusStarted,
				Tool:      info.Name,
				Arguments: truncatePayload(input.ArgumentsInJSON, maxTracePayload),
			})
			return ctx
		},
		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *tool.CallbackOutput) context.Context {
			publish(ctx, events.ToolCallPayload{
				TaskID: events.TaskIDFromContext(ctx),
				Status: events.ToolStatusCompleted,
				Tool:   info.Name,
				Result: truncatePayload(output.Response, maxTracePayload),
			})
			return ctx
		},
		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			publish(ctx, events.ToolCallPayload{
				TaskID: events.TaskIDFromContext(ctx),
				Status: events.ToolStatusFailed,
				Tool:   info.Name,
				Error:  err.Error(),
			})
			return ctx
		},
	}

	return ub.NewHandlerHelper().
		ChatModel(modelHandler).
		Tool(toolHandler).
		Handler()
}

func truncatePayload(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
