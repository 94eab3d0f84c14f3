package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/cobra"

	"github.com/soulwire/soulwire/internal/agent"
	"github.com/soulwire/soulwire/internal/approval"
	"github.com/soulwire/soulwire/internal/auth"
	"github.com/soulwire/soulwire/internal/builtintools"
	"github.com/soulwire/soulwire/internal/compaction"
	"github.com/soulwire/soulwire/internal/config"
	"github.com/soulwire/soulwire/internal/contextstore"
	"github.com/soulwire/soulwire/internal/frontend/discord"
	"github.com/soulwire/soulwire/internal/frontend/print"
	"github.com/soulwire/soulwire/internal/frontend/rpc"
	"github.com/soulwire/soulwire/internal/frontend/shell"
	sfrontend "github.com/soulwire/soulwire/internal/frontend/slack"
	"github.com/soulwire/soulwire/internal/frontend/telegram"
	"github.com/soulwire/soulwire/internal/llm"
	"github.com/soulwire/soulwire/internal/llm/anthropic"
	"github.com/soulwire/soulwire/internal/llm/bedrock"
	"github.com/soulwire/soulwire/internal/llm/google"
	"github.com/soulwire/soulwire/internal/llm/openai"
	"github.com/soulwire/soulwire/internal/mcp"
	"github.com/soulwire/soulwire/internal/runtime"
	"github.com/soulwire/soulwire/internal/session"
	"github.com/soulwire/soulwire/internal/subagent"
	"github.com/soulwire/soulwire/internal/toolkit"
	"github.com/soulwire/soulwire/internal/wire"
)

func buildRunCmd() *cobra.Command {
	var (
		agentPath string
		workDir   string
		model     string
		yolo      bool
		printMode bool
		jsonOut   bool
		rpcAddr   string
		channel   string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run an agent conversation",
		Long: `Start a conversation against an agent-spec file. Without --print or
--channel, an interactive shell front-end reads turns from stdin; with
--print, the positional prompt argument runs exactly one turn and exits.
--rpc starts a WebSocket RPC server instead, and --channel starts a
Discord/Slack/Telegram front-end reading its credentials from config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			return runRun(cmd, runOptions{
				AgentPath: agentPath,
				WorkDir:   workDir,
				Model:     model,
				Yolo:      yolo,
				Print:     printMode,
				JSON:      jsonOut,
				RPCAddr:   rpcAddr,
				Channel:   channel,
				Input:     input,
			})
		},
	}

	cmd.Flags().StringVar(&agentPath, "agent", "", "Path to the agent-spec YAML file (required)")
	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Working directory this session is scoped to")
	cmd.Flags().StringVar(&model, "model", "", "Model name override (defaults to the configured provider's default)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Auto-approve every gated tool action")
	cmd.Flags().BoolVar(&printMode, "print", false, "Run one turn non-interactively and exit")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "With --print, emit one JSON object per Wire message")
	cmd.Flags().StringVar(&rpcAddr, "rpc", "", "Listen address for the WebSocket RPC front-end, e.g. :7890")
	cmd.Flags().StringVar(&channel, "channel", "", "Chat front-end to run instead of the shell: discord, slack, or telegram")
	cmd.MarkFlagRequired("agent")
	return cmd
}

type runOptions struct {
	AgentPath string
	WorkDir   string
	Model     string
	Yolo      bool
	Print     bool
	JSON      bool
	RPCAddr   string
	Channel   string
	Input     string
}

// runRun wires one top-level conversation: loads the daemon config and
// agent spec, picks an LLM provider, allocates a session directory,
// builds the tool registry and sub-agent orchestrator, and hands the
// resulting Agent/Wire pair to whichever front-end was requested.
func runRun(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadDaemonConfig()
	if err != nil {
		return err
	}

	spec, err := runtime.LoadAgentSpec(opts.AgentPath)
	if err != nil {
		return fmt.Errorf("run: load agent spec: %w", err)
	}

	provider, defaultModel, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	modelInfo, ok := provider.Model(model)
	if !ok {
		return fmt.Errorf("run: provider %s has no model %q", provider.Name(), model)
	}

	shareDir, err := session.ShareDir()
	if err != nil {
		return err
	}
	sess, err := session.New(shareDir, opts.WorkDir, spec.Name)
	if err != nil {
		return fmt.Errorf("run: allocate session: %w", err)
	}
	if err := session.TouchWorkDir(shareDir, sess.WorkDir, sess.ID); err != nil {
		return fmt.Errorf("run: record work directory: %w", err)
	}

	rt := runtime.New(cfg, provider, sess, opts.Yolo)

	systemPrompt, err := runtime.RenderSystemPrompt(spec, rt.BuiltinArgs, readFileAsString)
	if err != nil {
		return fmt.Errorf("run: render system prompt: %w", err)
	}

	store := contextstore.New(sess.ContextFile)
	if err := store.Restore(); err != nil {
		return fmt.Errorf("run: restore context store: %w", err)
	}

	w, err := wire.New(filepath.Join(filepath.Dir(sess.ContextFile), "wire.jsonl"))
	if err != nil {
		return fmt.Errorf("run: create wire: %w", err)
	}
	defer w.Shutdown()

	tools := toolkit.NewRegistry()
	tools.Register(builtintools.SendDMail{Control: rt.TimeTravel})

	mcpManager := mcp.NewManager(&cfg.MCP, nil)
	if err := mcpManager.Start(ctx); err != nil {
		return fmt.Errorf("run: start MCP servers: %w", err)
	}
	defer mcpManager.Stop()
	mcp.RegisterTools(tools, mcpManager)

	compactor := compaction.NewCompactor(provider, model)

	orchestrator := &subagent.Orchestrator{
		Provider:        provider,
		Model:           model,
		Tools:           tools,
		Approval:        rt.Approval,
		Compactor:       compactor,
		ContextWindow:   modelInfo.ContextWindow,
		ParentStorePath: sess.ContextFile,
		Wire:            w,
		Market:          rt.LaborMarket,
		DefaultMaxSteps: 50,
	}
	tools.Register(builtintools.Task{Orchestrator: orchestrator})
	tools.Register(builtintools.CreateSubagent{Market: rt.LaborMarket})

	for name, ref := range spec.Subagents {
		subSpec, err := runtime.LoadAgentSpec(ref.Path)
		if err != nil {
			return fmt.Errorf("run: load sub-agent spec %q: %w", name, err)
		}
		subPrompt, err := runtime.RenderSystemPrompt(subSpec, rt.BuiltinArgs, readFileAsString)
		if err != nil {
			return fmt.Errorf("run: render sub-agent system prompt %q: %w", name, err)
		}
		rt.LaborMarket.Register(subagent.Spec{
			Name:         name,
			Description:  ref.Description,
			SystemPrompt: subPrompt,
		})
	}

	a := agent.New(agent.Config{
		Provider:            provider,
		Model:               model,
		SystemPrompt:        systemPrompt,
		Tools:               tools,
		Store:               store,
		Wire:                w,
		Approval:            rt.Approval,
		TimeTravel:          rt.TimeTravel,
		Compactor:           compactor,
		CompactionThreshold: 0.8,
		ContextWindow:       modelInfo.ContextWindow,
	})

	switch {
	case opts.Channel != "":
		return runChatFrontend(ctx, cfg, a, w, rt.Approval, opts.Channel)
	case opts.RPCAddr != "":
		return runRPCFrontend(ctx, cfg, a, w, rt.Approval, opts.RPCAddr)
	case opts.Print:
		p := print.New(print.Config{Agent: a, Wire: w, Approval: rt.Approval, Out: cmd.OutOrStdout(), JSON: opts.JSON})
		return p.Run(ctx, opts.Input)
	default:
		s := shell.New(shell.Config{Agent: a, Wire: w, Approval: rt.Approval, In: cmd.InOrStdin(), Out: cmd.OutOrStdout()})
		return s.Run(ctx)
	}
}

func readFileAsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func runRPCFrontend(ctx context.Context, cfg *config.Config, a *agent.Agent, w *wire.Wire, broker *approval.Broker, addr string) error {
	var jwtSvc *auth.JWTService
	if cfg.Auth.JWTSecret != "" {
		jwtSvc = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	}
	srv := rpc.New(rpc.Config{Agent: a, Wire: w, Approval: broker, JWT: jwtSvc})

	httpSrv := &http.Server{Addr: addr, Handler: srv}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// runChatFrontend starts the requested chat platform's front-end,
// reading its credentials from the daemon config's channels section.
func runChatFrontend(ctx context.Context, cfg *config.Config, a *agent.Agent, w *wire.Wire, broker *approval.Broker, channel string) error {
	switch channel {
	case "discord":
		f, err := discord.New(discord.Config{Agent: a, Wire: w, Approval: broker, Token: cfg.Channels.Discord.BotToken})
		if err != nil {
			return fmt.Errorf("run: build discord front-end: %w", err)
		}
		return f.Run(ctx)
	case "slack":
		client := slack.New(cfg.Channels.Slack.BotToken, slack.OptionAppLevelToken(cfg.Channels.Slack.AppToken))
		socket := socketmode.New(client, socketmode.OptionDebug(false))
		f := sfrontend.New(sfrontend.Config{Agent: a, Wire: w, Approval: broker, API: client, Socket: socket})
		return f.Run(ctx)
	case "telegram":
		b, err := tgbot.New(cfg.Channels.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("run: build telegram bot: %w", err)
		}
		f := telegram.New(telegram.Config{Agent: a, Wire: w, Approval: broker, Bot: b})
		return f.Run(ctx)
	default:
		return fmt.Errorf("run: unknown --channel %q (want discord, slack, or telegram)", channel)
	}
}

// buildProvider picks the configured default LLM provider and constructs
// its adapter, returning it alongside that provider's configured default
// model name.
func buildProvider(cfg *config.Config) (llm.Provider, string, error) {
	name := cfg.LLM.DefaultProvider
	if name == "" {
		name = "anthropic"
	}
	pc := cfg.LLM.Providers[name]

	switch name {
	case "anthropic":
		apiKey := firstNonEmpty(pc.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		p, err := anthropic.New(anthropic.Config{APIKey: apiKey, BaseURL: pc.BaseURL, DefaultModel: pc.DefaultModel})
		if err != nil {
			return nil, "", fmt.Errorf("run: build anthropic provider: %w", err)
		}
		return p, pc.DefaultModel, nil
	case "openai":
		apiKey := firstNonEmpty(pc.APIKey, os.Getenv("OPENAI_API_KEY"))
		return openai.New(apiKey), pc.DefaultModel, nil
	case "google":
		apiKey := firstNonEmpty(pc.APIKey, os.Getenv("GOOGLE_API_KEY"))
		p, err := google.New(context.Background(), google.Config{APIKey: apiKey, DefaultModel: pc.DefaultModel})
		if err != nil {
			return nil, "", fmt.Errorf("run: build google provider: %w", err)
		}
		return p, pc.DefaultModel, nil
	case "bedrock":
		p, err := bedrock.New(context.Background(), bedrock.Config{DefaultModel: pc.DefaultModel})
		if err != nil {
			return nil, "", fmt.Errorf("run: build bedrock provider: %w", err)
		}
		return p, pc.DefaultModel, nil
	default:
		return nil, "", fmt.Errorf("run: unknown LLM provider %q", name)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func loadDaemonConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &config.Config{}, nil
	}
	return config.Load(configPath)
}
