package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/runtime"
)

// offlineFactory builds the App without provider keys or a dotenv file,
// so only the local embedder is available and answers are extractive.
func offlineFactory(ctx context.Context, opts runtime.Options) (*runtime.App, error) {
	opts.Env = func(string) string { return "" }
	opts.EnvFile = ""
	return runtime.New(ctx, opts)
}

// harness runs commands against one config directory.
type harness struct {
	t   *testing.T
	dir string
	in  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, dir: t.TempDir()}
}

// run executes one command line and returns its combined output.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root, closeFn := NewRootCommand("test", offlineFactory)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(h.in))
	root.SetArgs(append([]string{"--config-dir", h.dir, "--env-file", ""}, args...))

	err := root.ExecuteContext(context.Background())
	require.NoError(h.t, closeFn())
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const riderText = "The accident rider pays double indemnity when the insured dies " +
	"as a result of an accident within 90 days. Claims must be filed within one year."
