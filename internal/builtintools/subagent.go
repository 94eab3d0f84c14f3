package builtintools

import (
	"context"
	"encoding/json"

	"github.com/soulwire/soulwire/internal/subagent"
	"github.com/soulwire/soulwire/internal/toolkit"
)

// taskArgs is the argument shape for Task, reflected via toolkit.SchemaOf.
type taskArgs struct {
	Description  string `json:"description" jsonschema:"description=Short human-readable label for this delegated task."`
	SubagentName string `json:"subagent_name" jsonschema:"description=Name of the sub-agent to delegate to, as registered in the labor market."`
	Prompt       string `json:"prompt" jsonschema:"description=The instructions to hand the sub-agent."`
}

// Task delegates description/prompt to a named sub-agent, running it to
// completion in a nested step-loop with its own context file.
type Task struct {
	Orchestrator *subagent.Orchestrator
}

func (Task) Name() string { return "task" }

func (Task) Description() string {
	return "Delegate a self-contained piece of work to a named sub-agent and return its final answer."
}

func (Task) Schema() json.RawMessage {
	return toolkit.SchemaOf(taskArgs{})
}

func (t Task) Execute(ctx context.Context, inv toolkit.Invocation, args json.RawMessage) toolkit.Result {
	var a taskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return toolkit.Err(toolkit.KindParseError, err.Error())
	}
	if a.SubagentName == "" || a.Prompt == "" {
		return toolkit.Err(toolkit.KindValidateError, "subagent_name and prompt are required")
	}

	outcome := t.Orchestrator.Run(ctx, inv.ToolCallID, a.SubagentName, a.Prompt)
	if outcome.Err != nil {
		kind := toolkit.KindRuntimeError
		if outcome.Err == subagent.ErrUnknownSubagent {
			kind = toolkit.KindNotFound
		}
		return toolkit.Err(kind, outcome.Brief)
	}
	return toolkit.Ok(outcome.Output)
}

// createSubagentArgs is the argument shape for CreateSubagent.
type createSubagentArgs struct {
	Name         string `json:"name" jsonschema:"description=Name to register the new sub-agent under."`
	SystemPrompt string `json:"system_prompt" jsonschema:"description=System prompt the new sub-agent runs with."`
}

// CreateSubagent registers a dynamic sub-agent in the labor market,
// sharing the parent's toolset, so a subsequent Task call can delegate to
// it by name.
type CreateSubagent struct {
	Market *subagent.LaborMarket
}

func (CreateSubagent) Name() string { return "create_subagent" }

func (CreateSubagent) Description() string {
	return "Register a new dynamic sub-agent with its own system prompt, available to later task calls."
}

func (CreateSubagent) Schema() json.RawMessage {
	return toolkit.SchemaOf(createSubagentArgs{})
}

func (t CreateSubagent) Execute(ctx context.Context, inv toolkit.Invocation, args json.RawMessage) toolkit.Result {
	var a createSubagentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return toolkit.Err(toolkit.KindParseError, err.Error())
	}
	if a.Name == "" || a.SystemPrompt == "" {
		return toolkit.Err(toolkit.KindValidateError, "name and system_prompt are required")
	}
	t.Market.Register(subagent.Spec{Name: a.Name, SystemPrompt: a.SystemPrompt, Dynamic: true})
	return toolkit.Ok("sub-agent " + a.Name + " registered")
}
