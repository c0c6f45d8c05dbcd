package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasky/internal/api"
	"tasky/internal/cli"
	"tasky/internal/commands"
	"tasky/internal/config"
	"tasky/internal/exitcode"
	"tasky/internal/prompt"
	"tasky/internal/service"
	"tasky/internal/session"
	"tasky/internal/testutil"
)

// testFactory creates a backend factory that returns the given FakeService.
func testFactory(svc *testutil.FakeService) cli.BackendFactory {
	return func(ctx context.Context, cfg *config.Config, store *session.Store, logger *zap.Logger) (commands.Backend, error) {
		return svc, nil
	}
}

// loggedInDir returns a config directory holding a saved session.
func loggedInDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store := session.Open(session.NewFilePersister(filepath.Join(dir, config.SessionFile)), nil)
	store.SetSession("access-1", "refresh-1", &service.User{ID: "user-1", Name: "Ada Lovelace", Email: "ada@example.com"})
	return dir
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"unknowncmd"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"--quiet"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"help", "--config", t.TempDir()}, &stdout, &stderr)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr.String() != "" {
		t.Errorf("expected no stderr, got %q", stderr.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Usage:")) {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	dir := t.TempDir()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"version", "--config", dir}, &stdout, &stderr)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr.String() != "" {
		t.Errorf("expected no stderr, got %q", stderr.String())
	}
	if stdout.String() != "tasky 0.1.0\n" {
		t.Errorf("expected 'tasky 0.1.0\\n', got %q", stdout.String())
	}
	// version never touches the session or the cache.
	if _, err := os.Stat(filepath.Join(dir, config.CacheFile)); !os.IsNotExist(err) {
		t.Errorf("expected no cache file, got err %v", err)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"help", "--unknown"}, &stdout, &stderr)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
}

func TestDispatcher_FlagNeedsArgument(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--page"}, &stdout, &stderr)

	assert.Equal(t, exitcode.UserError, code)
	assert.Equal(t, "error: flag needs an argument: -page\n", stderr.String())
}

func TestDispatcher_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--config", t.TempDir()}, &stdout, &stderr)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: not logged in (run: tasky login)\n"
	if stderr.String() != expected {
		t.Errorf("expected %q, got %q", expected, stderr.String())
	}
	assert.Empty(t, svc.ListQueries())
}

func TestDispatcher_ListFromSavedSession(t *testing.T) {
	dir := loggedInDir(t)
	svc := testutil.NewFakeService()
	svc.AddTask(service.Task{Name: "Buy milk"})
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--config", dir}, &stdout, &stderr)

	require.Equal(t, exitcode.Success, code, stderr.String())
	assert.Equal(t, "   1  [ ] Buy milk\n", stdout.String())
	assert.FileExists(t, filepath.Join(dir, config.CacheFile))
}

func TestDispatcher_CacheSurvivesBetweenRuns(t *testing.T) {
	dir := loggedInDir(t)
	svc := testutil.NewFakeService()
	svc.AddTask(service.Task{Name: "Buy milk"})
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitcode.Success, dispatcher.Run(context.Background(), []string{"sync", "--config", dir}, &stdout, &stderr))

	svc.ListTasksErr = errors.New("connection refused")
	stdout.Reset()
	stderr.Reset()
	code := dispatcher.Run(context.Background(), []string{"list", "--config", dir}, &stdout, &stderr)

	assert.Equal(t, exitcode.Success, code)
	assert.Equal(t, "   1  [ ] Buy milk\n", stdout.String())
	assert.Equal(t, "[warning] Showing cached tasks: connection refused\n", stderr.String())
}

func TestDispatcher_NoArgsRunsList(t *testing.T) {
	dir := loggedInDir(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Dir(dir))
	require.NoError(t, os.Rename(dir, filepath.Join(filepath.Dir(dir), config.AppName)))
	svc := testutil.NewFakeService()
	svc.AddTask(service.Task{Name: "Buy milk"})
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), nil, &stdout, &stderr)

	require.Equal(t, exitcode.Success, code, stderr.String())
	assert.Equal(t, "   1  [ ] Buy milk\n", stdout.String())
}

func TestDispatcher_QuietSuppressesInfo(t *testing.T) {
	dir := loggedInDir(t)
	svc := testutil.NewFakeService()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc))

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"add", "--quiet", "--config", dir, "Buy milk"}, &stdout, &stderr)

	assert.Equal(t, exitcode.Success, code)
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
	assert.Len(t, svc.Tasks(), 1)
}

func TestDispatcher_FactoryError(t *testing.T) {
	dir := loggedInDir(t)
	factory := func(ctx context.Context, cfg *config.Config, store *session.Store, logger *zap.Logger) (commands.Backend, error) {
		return nil, errors.New("api base URL is required")
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"list", "--config", dir}, &stdout, &stderr)

	assert.Equal(t, exitcode.AuthError, code)
	assert.Equal(t, "error: config error: api base URL is required\n", stderr.String())
}

// TestDispatcher_LoginPersistsSession runs login against the HTTP API and
// checks that a later run picks the session up from disk.
func TestDispatcher_LoginPersistsSession(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	srv.AddUser("Ada Lovelace", "ada@example.com", "secret!")
	srv.AddTask(service.Task{Name: "Buy milk"})

	factory := func(ctx context.Context, cfg *config.Config, store *session.Store, logger *zap.Logger) (commands.Backend, error) {
		return api.New(api.Options{BaseURL: srv.URL, Logger: logger}, store)
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	dispatcher.SetPrompter(&prompt.Scripted{Answers: []string{"ada@example.com", "secret!"}})
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"login", "--config", dir}, &stdout, &stderr)
	require.Equal(t, exitcode.Success, code, stderr.String())
	assert.Equal(t, "logged in as Ada Lovelace <ada@example.com>\n", stdout.String())
	assert.FileExists(t, filepath.Join(dir, config.SessionFile))

	stdout.Reset()
	code = dispatcher.Run(context.Background(), []string{"list", "--config", dir}, &stdout, &stderr)
	require.Equal(t, exitcode.Success, code, stderr.String())
	assert.Equal(t, "   1  [ ] Buy milk\n", stdout.String())

	stdout.Reset()
	code = dispatcher.Run(context.Background(), []string{"logout", "--config", dir}, &stdout, &stderr)
	require.Equal(t, exitcode.Success, code)
	assert.NoFileExists(t, filepath.Join(dir, config.SessionFile))
}
