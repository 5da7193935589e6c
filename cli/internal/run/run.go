// Package run implements the aicommit workflow: optional self-update, reading
// the staged changes, generating candidates and driving the selection dialogue
// through to a commit. Used by the CLI and by tests.
package run

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"aicommit/cli/internal/commitmsg"
	"aicommit/cli/internal/config"
	"aicommit/cli/internal/diff"
	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/git"
	"aicommit/cli/internal/prompt"
	"aicommit/cli/internal/provider"
	"aicommit/cli/internal/selection"
	"aicommit/cli/internal/selfupdate"
	"aicommit/cli/internal/tokens"
)

// VCS is the repository the workflow reads from and commits to.
type VCS interface {
	Context(ctx context.Context, recentCount int) (git.RepositoryContext, error)
	Commit(ctx context.Context, message string) error
}

// Updater is the self-update step.
type Updater interface {
	CheckAndApply(ctx context.Context) (selfupdate.Result, error)
}

// ProviderFactory builds the generation backend. It is only called once there
// is something staged.
type ProviderFactory func(cfg provider.Config) (provider.Generator, error)

// Options configures Run. Config and VCS are required.
type Options struct {
	Config *config.Config
	// StateDir holds instructions.md; empty skips custom instructions.
	StateDir string
	VCS      VCS
	// Updater is nil when self-update is disabled for this invocation.
	Updater     Updater
	NewProvider ProviderFactory
	// HTTPClient is handed to the provider; nil gets one with Config.Timeout.
	HTTPClient *http.Client
	In         io.Reader
	Out        io.Writer
}

// Result summarizes an invocation.
type Result struct {
	// Updated is set when the installed program was replaced; nothing else
	// ran and the caller should relaunch.
	Updated       bool
	NothingStaged bool
	Outcome       selection.Outcome
}

// DefaultProviderFactory builds a langchaingo-backed provider.Client.
func DefaultProviderFactory(cfg provider.Config) (provider.Generator, error) {
	return provider.New(cfg)
}

// fitGenerator builds the generator, compacting the staged diff first when
// the prompt would crowd the model's context.
func fitGenerator(backend provider.Generator, cfg *config.Config, rc git.RepositoryContext, popts prompt.Options) *commitmsg.Generator {
	gen := commitmsg.NewGenerator(backend, cfg.Model, rc, popts)
	p := gen.Prompt()
	estimate := tokens.EstimatePrompt(p.System, p.User)
	if tokens.WarnIfOver(estimate, cfg.ContextLimit, cfg.WarnThreshold) == "" {
		return gen
	}
	compacted, st, err := diff.Compact(rc.Diff, diff.Options{Minify: true})
	if err != nil {
		log.Warn().Err(err).Msg("could not compact staged diff")
	} else if compacted != rc.Diff {
		rc.Diff = compacted
		gen = commitmsg.NewGenerator(backend, cfg.Model, rc, popts)
		p = gen.Prompt()
		before := estimate
		estimate = tokens.EstimatePrompt(p.System, p.User)
		log.Warn().
			Int("tokens_before", before).
			Int("tokens_after", estimate).
			Int("omitted_files", st.Omitted).
			Int("minified_files", st.Minified).
			Msg("compacted staged diff for the prompt")
	}
	if warn := tokens.WarnIfOver(estimate, cfg.ContextLimit, cfg.WarnThreshold); warn != "" {
		log.Warn().Int("tokens", estimate).Msg(warn)
	}
	return gen
}

// Run executes one aicommit invocation.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Config == nil || opts.VCS == nil {
		return Result{}, errors.New("run: Config and VCS are required")
	}
	cfg := opts.Config
	recent, err := config.ParseRecentCommits(cfg.RecentCommits)
	if err != nil {
		return Result{}, err
	}
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	if opts.Updater != nil {
		res, err := opts.Updater.CheckAndApply(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("self-update failed; continuing with the installed version")
		case res == selfupdate.Updated:
			return Result{Updated: true}, nil
		}
	}

	rc, err := opts.VCS.Context(ctx, recent)
	if err != nil {
		return Result{}, err
	}
	view := selection.NewPresenter(out)
	if rc.Diff == "" {
		view.NothingStaged()
		return Result{NothingStaged: true}, nil
	}
	view.StagedFiles(rc.StagedFiles)

	var popts prompt.Options
	if opts.StateDir != "" {
		custom, err := prompt.LoadCustomInstructions(opts.StateDir)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring unreadable custom instructions")
		}
		popts.CustomInstructions = custom
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	factory := opts.NewProvider
	if factory == nil {
		factory = DefaultProviderFactory
	}
	backend, err := factory(provider.Config{
		Model:         cfg.Model,
		HostedPrefix:  cfg.HostedPrefix,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		Temperature:   cfg.Temperature,
		HTTPClient:    httpClient,
	})
	if err != nil {
		return Result{}, erruser.New("Could not set up the model backend.", err)
	}

	gen := fitGenerator(backend, cfg, rc, popts)
	p := gen.Prompt()
	log.Trace().Str("system", p.System).Str("user", p.User).Msg("prompt")

	ctrl := selection.NewController(gen, opts.VCS, cfg.Candidates, view)
	outcome, err := ctrl.Run(ctx, in)
	if err != nil {
		if errors.Is(err, commitmsg.ErrEmptyBatch) {
			return Result{Outcome: outcome}, erruser.New("No commit messages could be generated. Is the model backend running?", err)
		}
		return Result{Outcome: outcome}, err
	}
	log.Debug().Stringer("state", outcome.State).Int("rounds", outcome.Rounds).Msg("selection finished")
	return Result{Outcome: outcome}, nil
}
