package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// defaultMaxIterations bounds the worker's ReAct loop.
const defaultMaxIterations = 30

// LLMRunner executes tasks with an ephemeral model-backed agent. Each
// dispatch gets a fresh agent: workers share no state between tasks.
type LLMRunner struct {
	chatModel     model.ToolCallingChatModel
	tools         []tool.InvokableTool
	maxIterations int
	log           *slog.Logger
}

// NewLLMRunner creates a model-backed task runner.
func NewLLMRunner(chatModel model.ToolCallingChatModel, tools []tool.InvokableTool, maxIterations int, log *slog.Logger) *LLMRunner {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLMRunner{
		chatModel:     chatModel,
		tools:         tools,
		maxIterations: maxIterations,
		log:           log,
	}
}

func (r *LLMRunner) Run(ctx context.Context, d Dispatch) (Result, error) {
	instruction := fmt.Sprintf("%s\n\n## Task\n\n%s", InstructionFor(d.Kind), d.Description)

	cfg := &adk.ChatModelAgentConfig{
		Name:          "worker",
		Description:   "ephemeral task worker",
		Instruction:   instruction,
		Model:         r.chatModel,
		MaxIterations: r.maxIterations,
	}
	if len(r.tools) > 0 {
		baseTools := make([]tool.BaseTool, len(r.tools))
		for i, t := range r.tools {
			baseTools[i] = t
		}
		cfg.ToolsConfig.Tools = baseTools
	}

	agent, err := adk.NewChatModelAgent(ctx, cfg)
	if err != nil {
		return Result{}, &Failure{Message: fmt.Sprintf("create worker agent: %v", err)}
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: agent})

	r.log.Debug("dispatching task to worker", "kind", d.Kind, "description", d.Description)

	messages := []*schema.Message{
		{Role: schema.User, Content: d.Prompt},
	}

	output, err := consumeRunnerOutput(ctx, runner, messages)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &Failure{Message: err.Error()}
	}
	if strings.TrimSpace(output) == "" {
		return Result{}, &Failure{Message: "worker produced no output"}
	}

	return Result{Output: output, Summary: Summarize(output)}, nil
}

// consumeRunnerOutput drains the ADK event iterator and returns the
// final assistant message content.
func consumeRunnerOutput(ctx context.Context, runner *adk.Runner, messages []*schema.Message) (string, error) {
	iter := runner.Run(ctx, messages)

	var content string
	for {
		if err := ctx.Err(); err != nil {
			return content, err
		}

		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return "", event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		mv := event.Output.MessageOutput
		if mv.Role == schema.Tool {
			if mv.IsStreaming && mv.MessageStream != nil {
				mv.MessageStream.Close()
			}
			continue
		}

		if mv.IsStreaming && mv.MessageStream != nil {
			content = consumeStream(mv.MessageStream)
		} else if mv.Message != nil {
			if len(mv.Message.ToolCalls) > 0 && mv.Message.Content == "" {
				continue
			}
			if mv.Message.Content != "" {
				content = mv.Message.Content
			}
		}
	}
	return content, nil
}

func consumeStream(stream *schema.StreamReader[*schema.Message]) string {
	defer stream.Close()
	var sb strings.Builder
	for {
		msg, err := stream.Recv()
		if err != nil {
			break
		}
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

// Summarize produces a one-line digest of a worker's output: the first
// non-heading line, truncated.
func Summarize(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > 200 {
			return line[:197] + "..."
		}
		return line
	}
	return ""
}
