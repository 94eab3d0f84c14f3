// Package runtime bundles the per-turn collaborators an Agent needs —
// configuration, the active LLM provider, session identity, the ambient
// template variables every system prompt renders with, the approval
// broker, the sub-agent labor market, and the detected machine
// Environment — and derives a scoped copy of that bundle for each nested
// sub-agent invocation.
package runtime

import (
	"time"

	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/config"
	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/subagent"
	"github.com/soulwire/soulwire/internal/timetravel"
)

// Session is the spec's minimal session identity: which work directory a
// conversation belongs to, where its context file lives on disk, and the
// bookkeeping a session list front-end needs.
type Session struct {
	ID          string
	WorkDir     string
	ContextFile string
	Title       string
	UpdatedAt   time.Time
}

// Runtime is the per-turn collaborator bundle: `(config, llm, session,
// builtin_args, timetravel, approval, labor_market, environment)`. Every
// sub-agent invocation gets its own derived Runtime — see Derive.
type Runtime struct {
	Config      *config.Config
	LLM         llm.Provider
	Session     Session
	BuiltinArgs BuiltinArgs
	TimeTravel  *timetravel.Control
	Approval    *approval.Broker
	LaborMarket *subagent.LaborMarket
	Environment Environment
}

// New constructs the top-level Runtime for a fresh session: it detects the
// Environment once, captures BuiltinArgs from workDir and the current
// time, and starts with an empty labor market and a fresh time-travel
// control.
func New(cfg *config.Config, provider llm.Provider, session Session, yolo bool) *Runtime {
	env := DetectEnvironment()
	return &Runtime{
		Config:      cfg,
		LLM:         provider,
		Session:     session,
		BuiltinArgs: NewBuiltinArgs(session.WorkDir, env, time.Now()),
		TimeTravel:  timetravel.New(),
		Approval:    approval.New(yolo),
		LaborMarket: subagent.NewLaborMarket(),
		Environment: env,
	}
}

// Derive builds the Runtime a nested sub-agent invocation runs with: its
// own time-travel control (a d-mail sent inside a sub-agent must not
// revert the parent's checkpoints) and, per spec §3, its own private
// labor market when dynamic is false (a fixed sub-agent's own
// dynamically-registered sub-agents must not leak back to the parent) or
// the same shared market when dynamic is true. Everything else —
// config, LLM, approval broker, environment — is shared as-is.
func (r *Runtime) Derive(nestedSession Session, dynamic bool) *Runtime {
	market := r.LaborMarket
	if !dynamic {
		market = r.LaborMarket.Fork()
	}
	return &Runtime{
		Config:      r.Config,
		LLM:         r.LLM,
		Session:     nestedSession,
		BuiltinArgs: NewBuiltinArgs(nestedSession.WorkDir, r.Environment, time.Now()),
		TimeTravel:  timetravel.New(),
		Approval:    r.Approval,
		LaborMarket: market,
		Environment: r.Environment,
	}
}
