package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"aicommit/cli/internal/config"
	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/git"
	"aicommit/cli/internal/ollama"
	"aicommit/cli/internal/provider"
	"aicommit/cli/internal/run"
	"aicommit/cli/internal/selfupdate"
	"aicommit/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(os.Stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(os.Stderr, "Details: %v\n", u)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aicommit",
		Short: "Generate commit messages for staged changes with a local or hosted model",
		Long: "aicommit reads the staged diff, asks a model for several commit message\n" +
			"candidates, and commits the one you pick. Models whose name starts with the\n" +
			"hosted prefix (default \"gpt\") use the OpenAI API; everything else is sent\n" +
			"to a local Ollama server.",
		Version:      version.String(),
		Args:         cobra.NoArgs,
		RunE:         runRoot,
		SilenceUsage: true,
	}
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().String("model", "", "Model name (default qwen2.5-coder:1.5b; overrides config and env)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().Bool("trace", false, "Log internal steps to stderr (prompts, raw model output)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		quiet, _ := cmd.Flags().GetBool("quiet")
		trace, _ := cmd.Flags().GetBool("trace")
		setupLogging(os.Stderr, quiet, trace)
	}
	rootCmd.Flags().String("recent-commits", "", "Number of recent commit subjects to include, or \"no\" (default 5)")
	rootCmd.Flags().IntP("commits", "n", 0, "Number of candidate messages per batch (default 5)")
	rootCmd.Flags().Bool("no-update", false, "Skip the self-update check for this run")
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newDoctorCmd())
	return rootCmd
}

// setupLogging points the global zerolog logger at w. Trace wins over quiet.
func setupLogging(w io.Writer, quiet, trace bool) {
	level := zerolog.InfoLevel
	switch {
	case trace:
		level = zerolog.TraceLevel
	case quiet:
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// overridesFromFlags returns Overrides for the flags that were set explicitly.
func overridesFromFlags(cmd *cobra.Command) (*config.Overrides, error) {
	o := &config.Overrides{}
	set := false
	if f := cmd.Flags().Lookup("model"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString("model")
		o.Model = &v
		set = true
	}
	if f := cmd.Flags().Lookup("recent-commits"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString("recent-commits")
		if _, err := config.ParseRecentCommits(v); err != nil {
			return nil, err
		}
		o.RecentCommits = &v
		set = true
	}
	if f := cmd.Flags().Lookup("commits"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt("commits")
		if v < 1 {
			return nil, erruser.Input(fmt.Sprintf("--commits must be at least 1 (got %d).", v), nil)
		}
		o.Candidates = &v
		set = true
	}
	if f := cmd.Flags().Lookup("no-update"); f != nil && f.Changed {
		if v, _ := cmd.Flags().GetBool("no-update"); v {
			off := false
			o.SelfUpdate = &off
			set = true
		}
	}
	if !set {
		return nil, nil
	}
	return o, nil
}

func runRoot(cmd *cobra.Command, _ []string) error {
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}
	repoRoot, err := git.RepoRoot(cwd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot, Overrides: overrides})
	if err != nil {
		return err
	}

	opts := run.Options{
		Config:   cfg,
		StateDir: cfg.EffectiveStateDir(repoRoot),
		VCS:      git.NewRepo(repoRoot),
		In:       os.Stdin,
		Out:      os.Stdout,
	}
	var updater *selfupdate.Updater
	switch {
	case !cfg.SelfUpdate || selfupdate.Relaunched(os.Environ()):
	case version.IsDev():
		log.Debug().Msg("development build; skipping self-update")
	default:
		updater = newUpdater(cfg)
		opts.Updater = updater
	}

	res, err := run.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if res.Updated {
		code, err := updater.Relaunch(cmd.Context(), os.Args[1:])
		if err != nil {
			return erruser.New("Updated aicommit, but could not restart it. Run the command again.", err)
		}
		if code != 0 {
			return errExit(code)
		}
	}
	return nil
}

func newUpdater(cfg *config.Config) *selfupdate.Updater {
	if !version.IsDev() && !version.Consistent() {
		log.Warn().Str("version", version.Version).Str("declared", version.Declared()).
			Msg("binary was built without a matching version declaration; build releases with scripts/release.sh")
	}
	return &selfupdate.Updater{
		URL:     cfg.UpdateURL,
		Current: version.Version,
		Token:   cfg.VersionToken,
	}
}

// loadConfigAnywhere loads config with repo settings when run inside a repository.
func loadConfigAnywhere(cmd *cobra.Command) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", erruser.New("Could not determine current directory.", err)
	}
	repoRoot := ""
	if r, e := git.RepoRoot(cwd); e == nil {
		repoRoot = r
	}
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot, Overrides: overrides})
	if err != nil {
		return nil, "", err
	}
	return cfg, repoRoot, nil
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer aicommit and install it",
		Args:  cobra.NoArgs,
		RunE:  runUpdate,
	}
	cmd.Flags().Bool("check", false, "Only report whether an update is available")
	return cmd
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfigAnywhere(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	u := newUpdater(cfg)
	fmt.Fprintf(out, "Current version: %s\n", version.String())

	if check, _ := cmd.Flags().GetBool("check"); check {
		rel, newer, err := u.Check(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Could not check for updates.")
			fmt.Fprintf(os.Stderr, "Details: %v\n", err)
			return errExit(1)
		}
		fmt.Fprintf(out, "Latest version:  %s\n", rel.Version)
		switch {
		case version.IsDev():
			fmt.Fprintln(out, "Development build, not updating.")
		case newer:
			fmt.Fprintln(out, "Update available. Run 'aicommit update' to install it.")
		default:
			fmt.Fprintln(out, "aicommit is up to date.")
		}
		return nil
	}
	if version.IsDev() {
		fmt.Fprintln(out, "Development build, not updating.")
		return nil
	}

	res, err := u.CheckAndApply(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Update failed; the installed version was left unchanged.")
		fmt.Fprintf(os.Stderr, "Details: %v\n", err)
		return errExit(1)
	}
	switch res {
	case selfupdate.Updated:
		fmt.Fprintln(out, "aicommit updated.")
	default:
		fmt.Fprintln(out, "aicommit is up to date.")
	}
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify environment (Git, model backend)",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if _, err := exec.LookPath("git"); err != nil {
		fmt.Fprintln(os.Stderr, "git not found in PATH.")
		return errExit(2)
	}
	cfg, repoRoot, err := loadConfigAnywhere(cmd)
	if err != nil {
		return err
	}
	if repoRoot == "" {
		fmt.Fprintln(out, "Git OK (not inside a repository)")
	} else {
		fmt.Fprintf(out, "Git OK (%s)\n", repoRoot)
	}

	kind := provider.Resolve(cfg.Model, cfg.HostedPrefix)
	if kind == provider.HostedAPI {
		if cfg.OpenAIAPIKey == "" {
			fmt.Fprintf(os.Stderr, "Model %q uses the OpenAI API but no key is set. Export OPENAI_API_KEY.\n", cfg.Model)
			return errExit(1)
		}
		fmt.Fprintln(out, "OpenAI key OK")
		fmt.Fprintf(out, "Model: %s (hosted)\n", cfg.Model)
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	status, err := ollama.NewClient(cfg.OllamaBaseURL, nil).Check(ctx, cfg.Model)
	if err != nil {
		if errors.Is(err, ollama.ErrUnreachable) {
			fmt.Fprintf(os.Stderr, "Ollama unreachable at %s. Is the server running? For local: ollama serve.\n", cfg.OllamaBaseURL)
			fmt.Fprintf(os.Stderr, "Details: %v\n", err)
			return errExit(2)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return errExit(1)
	}
	if !status.ModelPresent {
		fmt.Fprintf(os.Stderr, "Model %q not found. Pull it with: ollama pull %s\n", cfg.Model, cfg.Model)
		return errExit(1)
	}
	if status.Version != "" {
		fmt.Fprintf(out, "Ollama OK (%s)\n", status.Version)
	} else {
		fmt.Fprintln(out, "Ollama OK")
	}
	fmt.Fprintf(out, "Model: %s (local)\n", cfg.Model)
	return nil
}
