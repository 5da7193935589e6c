// Package selfupdate keeps the installed aicommit current: it fetches the
// canonical release, compares its declared version with the running one,
// swaps the installed file with rollback on failure, and relaunches.
package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
)

// UpdatedEnv is set to "1" in the environment of a relaunched process so it
// does not check again.
const UpdatedEnv = "AICOMMIT_UPDATED"

// MinVersion is reported when the release declares no version; it never
// compares newer than a real version.
const MinVersion = "0.0.0"

const (
	_defaultTimeout  = 30 * time.Second
	_defaultMaxBytes = 128 << 20
	_defaultToken    = "version"
)

var (
	// ErrNetwork indicates the release could not be fetched.
	ErrNetwork = errors.New("update source unreachable")
	// ErrFilesystem indicates the installed file could not be replaced.
	ErrFilesystem = errors.New("update could not be written")
)

// Result is the outcome of CheckAndApply.
type Result int

const (
	UpToDate Result = iota
	Updated
	Failed
)

func (r Result) String() string {
	switch r {
	case UpToDate:
		return "up-to-date"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Release is a fetched release body with its declared version.
type Release struct {
	Version string
	Body    []byte
}

// Updater checks URL for a newer release of the file at Target.
// Zero values of the optional fields select defaults.
type Updater struct {
	URL     string
	Current string
	// Target is the installed file; empty means the running executable.
	Target string
	// Token starts the version declaration line; empty means "version".
	Token      string
	HTTPClient *http.Client
	// MaxBytes caps the release body.
	MaxBytes int64

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	fs fileSystem
}

// IsNewer reports whether remote should replace current. Versions compare
// as plain strings, so "1.10.0" sorts before "1.9.0".
func IsNewer(remote, current string) bool {
	return remote > current
}

// ExtractVersion returns the value of the first line in body of the form
// `token = "x.y.z"` (single quotes and no spaces around = also accepted).
// body may be a compiled binary; other lines are ignored. Without such a line
// it returns MinVersion.
func ExtractVersion(body []byte, token string) string {
	if token == "" {
		token = _defaultToken
	}
	decl := regexp.MustCompile(`^` + regexp.QuoteMeta(token) + `\s*=\s*["']([^"'\s]+)["']\s*$`)
	for _, line := range bytes.Split(body, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte(token)) {
			continue
		}
		if m := decl.FindSubmatch(line); m != nil {
			return string(m[1])
		}
	}
	return MinVersion
}

// TargetPath resolves the file to replace.
func (u *Updater) TargetPath() (string, error) {
	if u.Target != "" {
		return u.Target, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", errors.Join(ErrFilesystem, err))
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

// Fetch downloads the release and extracts its version.
func (u *Updater) Fetch(ctx context.Context) (*Release, error) {
	client := u.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: _defaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", errors.Join(ErrNetwork, err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch update: %w", errors.Join(ErrNetwork, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch update: %w: HTTP %d", ErrNetwork, resp.StatusCode)
	}
	limit := u.MaxBytes
	if limit <= 0 {
		limit = _defaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read update: %w", errors.Join(ErrNetwork, err))
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("read update: %w: body exceeds %d bytes", ErrNetwork, limit)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("read update: %w: empty body", ErrNetwork)
	}
	return &Release{Version: ExtractVersion(body, u.Token), Body: body}, nil
}

// Check fetches the release and reports whether it is newer than Current.
func (u *Updater) Check(ctx context.Context) (*Release, bool, error) {
	rel, err := u.Fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	return rel, IsNewer(rel.Version, u.Current), nil
}

// CheckAndApply replaces the target when the release is newer. Failed is
// always accompanied by an error wrapping ErrNetwork or ErrFilesystem; the
// target is unmodified in that case.
func (u *Updater) CheckAndApply(ctx context.Context) (Result, error) {
	rel, newer, err := u.Check(ctx)
	if err != nil {
		return Failed, err
	}
	if !newer {
		log.Debug().Str("current", u.Current).Str("remote", rel.Version).Msg("aicommit is up to date")
		return UpToDate, nil
	}
	target, err := u.TargetPath()
	if err != nil {
		return Failed, err
	}
	if err := u.swap(target, rel.Body); err != nil {
		return Failed, err
	}
	log.Info().Str("from", u.Current).Str("to", rel.Version).Str("path", target).Msg("aicommit updated")
	return Updated, nil
}

// swap installs body at target in two phases: stage target.new next to it,
// move target aside to target.bak, then move the staged file in. If the last
// step fails the backup is moved back.
func (u *Updater) swap(target string, body []byte) error {
	fs := u.fileSystem()
	info, err := fs.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, errors.Join(ErrFilesystem, err))
	}
	staged := target + ".new"
	backup := target + ".bak"

	if err := fs.WriteFile(staged, body, info.Mode().Perm()); err != nil {
		_ = fs.Remove(staged)
		return fmt.Errorf("stage update: %w", errors.Join(ErrFilesystem, err))
	}
	if err := fs.Rename(target, backup); err != nil {
		_ = fs.Remove(staged)
		return fmt.Errorf("back up %s: %w", target, errors.Join(ErrFilesystem, err))
	}
	if err := fs.Rename(staged, target); err != nil {
		if rbErr := fs.Rename(backup, target); rbErr != nil {
			return fmt.Errorf("install update: %w (rollback failed, previous version left at %s: %v)",
				errors.Join(ErrFilesystem, err), backup, rbErr)
		}
		_ = fs.Remove(staged)
		return fmt.Errorf("install update: %w", errors.Join(ErrFilesystem, err))
	}
	if err := fs.Remove(backup); err != nil {
		log.Warn().Err(err).Str("path", backup).Msg("could not remove update backup")
	}
	return nil
}

func (u *Updater) fileSystem() fileSystem {
	if u.fs != nil {
		return u.fs
	}
	return osFS{}
}
