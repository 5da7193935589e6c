package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicommit/cli/internal/commitmsg"
	"aicommit/cli/internal/config"
	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/git"
	"aicommit/cli/internal/provider"
	"aicommit/cli/internal/selection"
	"aicommit/cli/internal/selfupdate"
)

type fakeVCS struct {
	rc        git.RepositoryContext
	contexts  int
	recentArg int
	commits   []string
}

func (f *fakeVCS) Context(_ context.Context, recent int) (git.RepositoryContext, error) {
	f.contexts++
	f.recentArg = recent
	return f.rc, nil
}

func (f *fakeVCS) Commit(_ context.Context, msg string) error {
	f.commits = append(f.commits, msg)
	return nil
}

// cycleProvider returns its replies in turn.
type cycleProvider struct {
	replies []string
	err     error
	calls   int
	last    provider.Request
}

func (p *cycleProvider) Generate(_ context.Context, req provider.Request) (string, error) {
	p.last = req
	if p.err != nil {
		return "", p.err
	}
	r := p.replies[p.calls%len(p.replies)]
	p.calls++
	return r, nil
}

type fakeUpdater struct {
	res    selfupdate.Result
	err    error
	called bool
}

func (u *fakeUpdater) CheckAndApply(context.Context) (selfupdate.Result, error) {
	u.called = true
	return u.res, u.err
}

var stagedRC = git.RepositoryContext{
	Diff:                 "diff --git a/a.go b/a.go\n+package a\n",
	StagedFiles:          []string{"a.go"},
	RecentCommitSubjects: []string{"feat: init"},
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Candidates = 3
	return &cfg
}

func factoryFor(p provider.Generator, calls *int, got *provider.Config) ProviderFactory {
	return func(cfg provider.Config) (provider.Generator, error) {
		if calls != nil {
			*calls++
		}
		if got != nil {
			*got = cfg
		}
		return p, nil
	}
}

func TestRun_nothingStaged(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	calls := 0
	vcs := &fakeVCS{}
	res, err := Run(context.Background(), Options{
		Config:      testConfig(),
		VCS:         vcs,
		NewProvider: factoryFor(&cycleProvider{}, &calls, nil),
		In:          strings.NewReader(""),
		Out:         &out,
	})
	require.NoError(t, err)
	assert.True(t, res.NothingStaged)
	assert.Zero(t, calls, "no backend may be built without staged changes")
	assert.Contains(t, out.String(), "No staged changes found")
	assert.Empty(t, vcs.commits)
}

func TestRun_selectsAndCommits(t *testing.T) {
	t.Parallel()
	var out strings.Builder
	vcs := &fakeVCS{rc: stagedRC}
	backend := &cycleProvider{replies: []string{
		"```text\nfeat: add X\n```",
		"Sure!\n```\nfix: correct Y\n```\nDone.",
		"chore: bump Z",
	}}
	res, err := Run(context.Background(), Options{
		Config:      testConfig(),
		VCS:         vcs,
		NewProvider: factoryFor(backend, nil, nil),
		In:          strings.NewReader("2\ny\n"),
		Out:         &out,
	})
	require.NoError(t, err)
	assert.Equal(t, selection.Committed, res.Outcome.State)
	assert.Equal(t, []string{"fix: correct Y"}, vcs.commits)
	assert.Equal(t, 5, vcs.recentArg)
	assert.Equal(t, 3, backend.calls)
	assert.Contains(t, out.String(), "  - a.go")
	assert.Contains(t, out.String(), "1. feat: add X")
}

func TestRun_regenerateThenCancel(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{rc: stagedRC}
	backend := &cycleProvider{replies: []string{"feat: a", "fix: b", "docs: c"}}
	res, err := Run(context.Background(), Options{
		Config:      testConfig(),
		VCS:         vcs,
		NewProvider: factoryFor(backend, nil, nil),
		In:          strings.NewReader("r\nc\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Equal(t, selection.Cancelled, res.Outcome.State)
	assert.Equal(t, 2, res.Outcome.Rounds)
	assert.Equal(t, 6, backend.calls)
	assert.Empty(t, vcs.commits)
}

func TestRun_recentCommits(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"no", 0, false},
		{"12", 12, false},
		{"lots", 0, true},
		{"-2", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.RecentCommits = tt.value
			vcs := &fakeVCS{}
			upd := &fakeUpdater{}
			_, err := Run(context.Background(), Options{Config: cfg, VCS: vcs, Updater: upd, Out: &strings.Builder{}})
			if tt.wantErr {
				assert.ErrorIs(t, err, erruser.ErrUserInput)
				assert.Zero(t, vcs.contexts)
				assert.False(t, upd.called)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, vcs.recentArg)
		})
	}
}

func TestRun_updatedStopsBeforeWorkflow(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{rc: stagedRC}
	res, err := Run(context.Background(), Options{
		Config:  testConfig(),
		VCS:     vcs,
		Updater: &fakeUpdater{res: selfupdate.Updated},
		Out:     &strings.Builder{},
	})
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Zero(t, vcs.contexts)
}

func TestRun_updateFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	for _, upd := range []*fakeUpdater{
		{res: selfupdate.Failed, err: selfupdate.ErrNetwork},
		{res: selfupdate.Failed, err: selfupdate.ErrFilesystem},
		{res: selfupdate.UpToDate},
	} {
		vcs := &fakeVCS{rc: stagedRC}
		res, err := Run(context.Background(), Options{
			Config:      testConfig(),
			VCS:         vcs,
			Updater:     upd,
			NewProvider: factoryFor(&cycleProvider{replies: []string{"feat: a"}}, nil, nil),
			In:          strings.NewReader("1\ny\n"),
			Out:         &strings.Builder{},
		})
		require.NoError(t, err)
		assert.True(t, upd.called)
		assert.False(t, res.Updated)
		assert.Equal(t, []string{"feat: a"}, vcs.commits)
	}
}

func TestRun_providerConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Model = "gpt-4o-mini"
	cfg.OpenAIAPIKey = "sk-test"
	cfg.Temperature = 0.2
	var got provider.Config
	_, err := Run(context.Background(), Options{
		Config:      cfg,
		VCS:         &fakeVCS{rc: stagedRC},
		NewProvider: factoryFor(&cycleProvider{replies: []string{"feat: a"}}, nil, &got),
		In:          strings.NewReader("c\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "sk-test", got.OpenAIAPIKey)
	assert.Equal(t, "gpt", got.HostedPrefix)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.NotNil(t, got.HTTPClient)
	assert.Equal(t, cfg.Timeout, got.HTTPClient.Timeout)
}

func TestRun_providerSetupError(t *testing.T) {
	t.Parallel()
	boom := errors.New("no key")
	_, err := Run(context.Background(), Options{
		Config: testConfig(),
		VCS:    &fakeVCS{rc: stagedRC},
		NewProvider: func(provider.Config) (provider.Generator, error) {
			return nil, boom
		},
		Out: &strings.Builder{},
	})
	assert.ErrorIs(t, err, boom)
	var ue *erruser.Err
	assert.ErrorAs(t, err, &ue)
}

func TestRun_allCandidatesFail(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{rc: stagedRC}
	_, err := Run(context.Background(), Options{
		Config:      testConfig(),
		VCS:         vcs,
		NewProvider: factoryFor(&cycleProvider{err: provider.ErrGeneration}, nil, nil),
		In:          strings.NewReader("1\ny\n"),
		Out:         &strings.Builder{},
	})
	assert.ErrorIs(t, err, commitmsg.ErrEmptyBatch)
	assert.ErrorIs(t, err, provider.ErrGeneration)
	assert.Empty(t, vcs.commits)
}

func TestRun_customInstructions(t *testing.T) {
	t.Parallel()
	stateDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "instructions.md"), []byte("Mention the ticket."), 0644))
	backend := &cycleProvider{replies: []string{"feat: a"}}
	_, err := Run(context.Background(), Options{
		Config:      testConfig(),
		StateDir:    stateDir,
		VCS:         &fakeVCS{rc: stagedRC},
		NewProvider: factoryFor(backend, nil, nil),
		In:          strings.NewReader("c\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Contains(t, backend.last.User, "Mention the ticket.")
	assert.Equal(t, "qwen2.5-coder:1.5b", backend.last.Model)
}

func TestRun_requiresConfigAndVCS(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}

func TestRun_gitAndOllamaEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Parallel()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@aicommit.local"},
		{"config", "user.name", "Test"},
		{"config", "commit.gpgsign", "false"},
	} {
		gitCmd(t, dir, args...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	gitCmd(t, dir, "add", "README.md")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "qwen2.5-coder:1.5b",
			"created_at": "2024-01-01T00:00:00Z",
			"message":    map[string]string{"role": "assistant", "content": "```text\ndocs: add README\n```"},
			"done":       true,
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Candidates = 2
	cfg.OllamaBaseURL = srv.URL
	repo := &git.Repo{Root: dir}
	res, err := Run(context.Background(), Options{
		Config:     cfg,
		VCS:        repo,
		HTTPClient: srv.Client(),
		In:         strings.NewReader("2\nyes\n"),
		Out:        &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Equal(t, selection.Committed, res.Outcome.State)
	assert.Equal(t, "docs: add README", gitCmd(t, dir, "log", "-1", "--pretty=format:%s"))
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestRun_compactsOversizedDiff(t *testing.T) {
	t.Parallel()
	big := "diff --git a/go.sum b/go.sum\n--- a/go.sum\n+++ b/go.sum\n@@ -1 +1,400 @@\n" +
		strings.Repeat("+example.com/mod v1.0.0 h1:abcdefghijklmnopqrstuvwxyz=\n", 400) +
		"diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-\t\tx :=  1\n+\t\tx :=  2\n"
	cfg := testConfig()
	cfg.ContextLimit = 4096
	backend := &cycleProvider{replies: []string{"chore: bump deps"}}
	_, err := Run(context.Background(), Options{
		Config:      cfg,
		VCS:         &fakeVCS{rc: git.RepositoryContext{Diff: big, StagedFiles: []string{"go.sum", "main.go"}}},
		NewProvider: factoryFor(backend, nil, nil),
		In:          strings.NewReader("c\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.NotContains(t, backend.last.User, "example.com/mod")
	assert.Contains(t, backend.last.User, "[1 hunks omitted: generated or lock file]")
	assert.Contains(t, backend.last.User, "+x := 2")
}

// Not parallel: swaps the global logger.
func TestRun_compactionLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.WarnLevel)
	t.Cleanup(func() { log.Logger = prev })

	big := "diff --git a/go.sum b/go.sum\n--- a/go.sum\n+++ b/go.sum\n@@ -1 +1,400 @@\n" +
		strings.Repeat("+example.com/mod v1.0.0 h1:abcdefghijklmnopqrstuvwxyz=\n", 400)
	cfg := testConfig()
	cfg.ContextLimit = 4096
	_, err := Run(context.Background(), Options{
		Config:      cfg,
		VCS:         &fakeVCS{rc: git.RepositoryContext{Diff: big, StagedFiles: []string{"go.sum"}}},
		NewProvider: factoryFor(&cycleProvider{replies: []string{"chore: bump deps"}}, nil, nil),
		In:          strings.NewReader("c\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "compacted staged diff for the prompt")
}

func TestRun_smallDiffSentVerbatim(t *testing.T) {
	t.Parallel()
	backend := &cycleProvider{replies: []string{"feat: a"}}
	_, err := Run(context.Background(), Options{
		Config:      testConfig(),
		VCS:         &fakeVCS{rc: stagedRC},
		NewProvider: factoryFor(backend, nil, nil),
		In:          strings.NewReader("c\n"),
		Out:         &strings.Builder{},
	})
	require.NoError(t, err)
	assert.Contains(t, backend.last.User, stagedRC.Diff)
}
