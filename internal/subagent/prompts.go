package subagent

import "github.com/okvist/foreman/internal/run"

// kindInstructions are the operating instructions injected per task
// kind. They tell the worker what shape of output the orchestrator
// expects back.
var kindInstructions = map[run.TaskKind]string{
	run.KindResearch: `You are a research worker. Investigate the question you are given.
Report findings as concise markdown. Cite file paths and concrete
observations, not guesses. Finish with a short "Findings" section.`,

	run.KindPlanning: `You are a planning worker. Produce an ordered work plan for the
request you are given. Format the plan as a numbered markdown list,
one step per line, each step specific and independently executable:

1. First step
2. Second step

At least two steps. Do not execute anything; output only the plan.`,

	run.KindImplementation: `You are an implementation worker. Carry out the step you are given
using the available tools. When finished, report what you changed and
how you verified it.`,

	run.KindCustom: `You are a worker. Complete the task you are given and report the
outcome as concise markdown.`,
}

// InstructionFor returns the operating instructions for a task kind.
func InstructionFor(kind run.TaskKind) string {
	if s, ok := kindInstructions[kind]; ok {
		return s
	}
	return kindInstructions[run.KindCustom]
}
