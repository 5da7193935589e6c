package selfupdate

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryRelease mimics a compiled executable: header bytes, NULs, unrelated
// strings (some starting with the token) and the embedded declaration.
func binaryRelease(v string) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	b.Write(bytes.Repeat([]byte{0}, 64))
	b.WriteString("\nversion for aicommit\x00version mismatch: %s=%s\x00")
	b.Write([]byte{0xde, 0xad, 0xbe, 0xef, '\n', 0, 0})
	b.WriteString("\nversion = \"" + v + "\"\n")
	b.Write(bytes.Repeat([]byte{0xff, 0x00, 0x0a}, 32))
	return b.Bytes()
}

func TestExtractVersion_binaryBody(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.4.2", ExtractVersion(binaryRelease("1.4.2"), ""))
	assert.Equal(t, MinVersion, ExtractVersion(bytes.Repeat([]byte{0, 0xff, '\n'}, 100), ""))
}

func TestCheckAndApply_binaryRelease(t *testing.T) {
	t.Parallel()
	body := binaryRelease("1.0.0")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "aicommit")
	installed := binaryRelease("0.9.0")
	require.NoError(t, os.WriteFile(target, installed, 0755))

	res, err := (&Updater{URL: srv.URL, Current: "0.9.0", Target: target}).CheckAndApply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

// TestCheckAndApply_builtExecutable builds the CLI the way scripts/release.sh
// does, serves it as the release and installs it over an older build.
func TestCheckAndApply_builtExecutable(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the aicommit binary")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not in PATH")
	}
	dir := t.TempDir()
	build := func(version, out string) []byte {
		t.Helper()
		pkg := "aicommit/cli/internal/version"
		ldflags := "-X " + pkg + ".Version=" + version +
			" -X '" + pkg + ".Declaration=\nversion = \"" + version + "\"\n'"
		cmd := exec.Command(goBin, "build", "-ldflags", ldflags, "-o", out, "./cli/cmd/aicommit")
		cmd.Dir = filepath.Join("..", "..", "..")
		cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
		combined, err := cmd.CombinedOutput()
		require.NoError(t, err, "go build: %s", combined)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return data
	}

	release := build("1.0.0", filepath.Join(dir, "release"))
	require.Equal(t, "1.0.0", ExtractVersion(release, ""))

	target := filepath.Join(dir, "bin", "aicommit")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	old := build("0.9.0", target)
	require.Equal(t, "0.9.0", ExtractVersion(old, ""))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(release)
	}))
	defer srv.Close()

	res, err := (&Updater{URL: srv.URL, Current: "0.9.0", Target: target}).CheckAndApply(context.Background())
	require.NoError(t, err)
	require.Equal(t, Updated, res)

	out, err := exec.Command(target, "--version").CombinedOutput()
	require.NoError(t, err, "%s", out)
	assert.Contains(t, string(out), "1.0.0")
}
