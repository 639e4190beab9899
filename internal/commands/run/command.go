// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package run implements the run command.
package run

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"github.com/tombee/fieldfill/internal/cli/prompt"
	"github.com/tombee/fieldfill/internal/commands/shared"
	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/internal/metrics"
	"github.com/tombee/fieldfill/internal/secrets"
	"github.com/tombee/fieldfill/internal/tracing"
	"github.com/tombee/fieldfill/pkg/enrich"
	"github.com/tombee/fieldfill/pkg/errors"
	"github.com/tombee/fieldfill/pkg/llm"

	// Register the built-in providers.
	_ "github.com/tombee/fieldfill/pkg/llm/providers"
)

const (
	enrichTracer = "github.com/tombee/fieldfill/pkg/enrich"
	llmTracer    = "github.com/tombee/fieldfill/pkg/llm"
)

// newPrompter is replaced in tests.
var newPrompter = func() prompt.Prompter {
	return prompt.NewSurveyPrompter(!shared.IsNonInteractive())
}

type options struct {
	selections    []selection
	ids           []string
	all           bool
	overwrite     bool
	metricsAddr   string
	dryRun        bool
	noInteractive bool
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich records with a prompt or pipeline",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Run sends a prompt (or each prompt of a pipeline) for every selected
record and writes the responses into the record's fields.

Every --prompt and --pipeline flag submits one run. Runs execute one at a
time in the order given; the others wait in the queue.

Without --prompt or --pipeline, an interactive terminal offers a choice
from the library: pinned prompts first, then recently used ones.

Before submitting, the placeholders of every prompt are checked against
the fields common to all selected records.

Interactive keys (when attached to a terminal):
  p       Pause the active run (the next queued run starts)
  r       Resume the most recently paused run (it rejoins the queue)
  c       Cancel the active run
  Ctrl-C  Cancel all runs`,
		Example: `  fieldfill run --prompt translate-fr --ids 1,2,3
  fieldfill run --pipeline vocab --all --overwrite
  fieldfill run --prompt define --prompt translate-fr --all
  fieldfill run --prompt define --all --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrich(cmd, opts)
		},
	}

	cmd.Flags().Var(&selectionFlag{kind: kindPrompt, into: &opts.selections}, "prompt", "Prompt to run (repeatable)")
	cmd.Flags().Var(&selectionFlag{kind: kindPipeline, into: &opts.selections}, "pipeline", "Pipeline to run (repeatable)")
	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "Record IDs to process, comma separated")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Process every record in the store")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing field content instead of appending")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show the execution plan without running")
	cmd.Flags().BoolVar(&opts.noInteractive, "no-interactive", false, "Disable keyboard control and live progress")
	cmd.MarkFlagsMutuallyExclusive("ids", "all")

	return cmd
}

func runEnrich(cmd *cobra.Command, opts *options) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}
	logger := env.Logger

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := env.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	lib, err := env.LoadLibrary()
	if err != nil {
		return err
	}
	sels := opts.selections
	if len(sels) == 0 && !opts.noInteractive {
		recent, err := st.RecentPrompts(ctx)
		if err != nil {
			logger.Warn("failed to read prompt history", "error", err)
		}
		if sels, err = chooseSelection(ctx, newPrompter(), lib, recent); err != nil {
			return err
		}
	}
	plans, err := buildPlans(lib, sels, env.Config.Overwrite || opts.overwrite)
	if err != nil {
		return err
	}
	ids, err := resolveIDs(ctx, st, opts.ids, opts.all)
	if err != nil {
		return err
	}
	fields, err := st.CommonFields(ctx, ids)
	if err != nil {
		return shared.NewInvalidInputError("cannot read selected records", err)
	}
	if err := validatePlaceholders(plans, fields); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.dryRun {
		return writePlan(out, plans, ids)
	}

	tp, err := tracing.Setup(env.Config.Tracing)
	if err != nil {
		return shared.NewConfigError("failed to set up tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	collector := metrics.New()
	if addr := firstNonEmpty(opts.metricsAddr, env.Config.Metrics.Addr); addr != "" {
		srv, err := collector.Listen(addr, logger)
		if err != nil {
			return shared.NewConfigError("failed to start metrics endpoint", err)
		}
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Warn("metrics endpoint stopped", "error", err)
			}
		}()
	}

	gateway, err := newGateway(ctx, env, collector, tp.Tracer(llmTracer))
	if err != nil {
		return err
	}

	mode := selectMode(opts)
	d := newDisplay(out, mode, shared.GetVerbose())

	exec := &executor{
		store:   st,
		gateway: gateway,
		config:  env.Config.Run,
		manager: enrich.NewExecutionManager(
			enrich.WithManagerLogger(logger),
			enrich.WithManagerMetrics(collector),
		),
		logger:  logger,
		metrics: collector,
		tracer:  tp.Tracer(enrichTracer),
		observe: d.observer,
	}

	session := exec.Start(ctx, plans, ids)
	if mode == modeLive {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			d.setWidth(w)
		}
		restore, err := listenKeys(os.Stdin, session, d)
		if err != nil {
			logger.Warn("keyboard control unavailable", "error", err)
		} else {
			defer restore()
			d.Message(shared.RenderLabel(keyHelp))
		}
	}

	results := exec.Finish(ctx, session)
	d.Close()

	return report(cmd, results)
}

// newGateway resolves the active provider and its API key.
func newGateway(ctx context.Context, env *shared.Env, recorder llm.RequestRecorder, tracer oteltrace.Tracer) (*llm.Gateway, error) {
	name := env.Config.ActiveProvider()

	key, backend, err := secrets.Default(env.Logger).APIKey(ctx, name)
	if err != nil {
		return nil, shared.NewConfigError("missing API key", err)
	}
	if backend != "" {
		env.Logger.Debug("using API key", log.ProviderKey, name, "backend", backend, "key", log.SanitizeAPIKey(key))
	}

	provider, err := llm.New(name, env.Config.Credentials(name, key))
	if err != nil {
		var cfgErr *errors.ConfigError
		if stderrors.As(err, &cfgErr) {
			return nil, shared.NewConfigError("invalid provider settings", err)
		}
		return nil, shared.NewProviderError("failed to create provider", err)
	}

	gwOpts := []llm.GatewayOption{
		llm.WithLogger(log.WithProvider(env.Logger, name)),
		llm.WithTracer(tracer),
		llm.WithRecorder(recorder),
	}
	if n := env.Config.Provider.MaxTokens; n > 0 {
		gwOpts = append(gwOpts, llm.WithMaxTokens(n))
	}
	if n := env.Config.Provider.RequestsPerMinute; n > 0 {
		gwOpts = append(gwOpts, llm.WithRateLimit(n))
	}
	return llm.NewGateway(provider, gwOpts...), nil
}

func selectMode(opts *options) displayMode {
	switch {
	case shared.GetJSON():
		return modeSilent
	case shared.GetQuiet():
		return modeQuiet
	case !opts.noInteractive && !shared.IsNonInteractive() && shared.IsTerminal(os.Stdout):
		return modeLive
	default:
		return modeLines
	}
}

func report(cmd *cobra.Command, results []Result) error {
	cancelled := 0
	for _, r := range results {
		if r.Status == enrich.RunStatusCancelled {
			cancelled++
		}
	}

	if shared.GetJSON() {
		resp := shared.NewJSONResponse("run")
		resp.Success = cancelled == 0
		if err := shared.EmitJSON(cmd.OutOrStdout(), struct {
			shared.JSONResponse
			Runs []Result `json:"runs"`
		}{resp, results}); err != nil {
			return err
		}
	}

	if cancelled == 0 {
		return nil
	}
	return &shared.ExitError{
		Code:     shared.ExitCancelled,
		Message:  fmt.Sprintf("%d of %d runs cancelled", cancelled, len(results)),
		Reported: shared.GetJSON(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
