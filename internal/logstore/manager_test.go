package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sourceplane/taskmon/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	settings, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return New(settings, zaptest.NewLogger(t))
}

func TestWriteExecutionLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureTaskDir("backup"))

	// -1 is the sentinel for "did not exit normally".
	for _, code := range []int{0, 2, 127, -1} {
		path := s.LogPath("backup", time.Now().Format("20060102_150405.000000"))
		require.NoError(t, s.WriteExecutionLog(path, "echo hi", code, "hi\n", ""))

		content, err := s.ReadLog(path)
		require.NoError(t, err)
		require.Contains(t, content, "Command: echo hi\n")
		require.Contains(t, content, "STDOUT:\nhi\n")

		parsed, ok := ParseReturnCode(content)
		require.True(t, ok)
		require.Equal(t, code, parsed)

		require.NoError(t, os.Remove(path))
	}
}

func TestWriteExecutionLogSectionToggles(t *testing.T) {
	s := newTestStore(t)
	s.settings.Set("logging.include_command", false)
	s.settings.Set("execution.capture_stderr", false)
	require.NoError(t, s.EnsureTaskDir("quiet"))

	path := s.LogPath("quiet", "20240301_120000.000000")
	require.NoError(t, s.WriteExecutionLog(path, "true", 0, "out", "err"))

	content, err := s.ReadLog(path)
	require.NoError(t, err)
	require.NotContains(t, content, "Command:")
	require.NotContains(t, content, "STDERR:")
	require.Contains(t, content, "Return code: 0")
	require.Contains(t, content, "STDOUT:\nout")
}

func TestWriteExecutionLogPermissions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureTaskDir("secret"))

	path := s.LogPath("secret", "20240301_120000.000000")
	require.NoError(t, s.WriteExecutionLog(path, "cat /etc/passwd", 0, "root:x:0:0\n", ""))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTruncateMiddleKeepsPrefixAndSuffix(t *testing.T) {
	long := strings.Repeat("a", 500) + "MIDDLE" + strings.Repeat("z", 500)

	out := truncateMiddle(long, 200)
	require.LessOrEqual(t, len(out), 200)
	require.Contains(t, out, TruncationMarker)
	require.True(t, strings.HasPrefix(out, "aaa"))
	require.True(t, strings.HasSuffix(out, "zzz"))
	require.NotContains(t, out, "MIDDLE")
}

func TestTruncateMiddleLeavesShortInputAlone(t *testing.T) {
	require.Equal(t, "short", truncateMiddle("short", 200))
	require.Equal(t, "unbounded", truncateMiddle("unbounded", 0))
}

func TestLatestLogAndHistory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureTaskDir("job"))

	_, found := s.LatestLog("job")
	require.False(t, found)

	old := s.LogPath("job", "20240301_100000.000000")
	recent := s.LogPath("job", "20240301_110000.000000")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(recent, []byte("new"), 0o600))
	require.NoError(t, os.Chtimes(old, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	latest, found := s.LatestLog("job")
	require.True(t, found)
	require.Equal(t, recent, latest)

	history, found := s.History("job")
	require.True(t, found)
	require.Len(t, history, 2)
	require.Equal(t, filepath.Base(recent), history[0].Name)
}

func TestHistoryMissingTask(t *testing.T) {
	s := newTestStore(t)
	_, found := s.History("never-ran")
	require.False(t, found)
}

func TestClearTaskLogs(t *testing.T) {
	s := newTestStore(t)

	found, err := s.ClearTask("ghost")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.EnsureTaskDir("job"))
	require.NoError(t, os.WriteFile(s.LogPath("job", "20240301_100000.000000"), []byte("x"), 0o600))

	found, err = s.ClearTask("job")
	require.NoError(t, err)
	require.True(t, found)

	_, stillThere := s.History("job")
	require.False(t, stillThere)
	// The directory itself survives.
	_, err = os.Stat(s.TaskDir("job"))
	require.NoError(t, err)
}

func TestClearAllLogs(t *testing.T) {
	s := newTestStore(t)

	found, err := s.ClearAll()
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.EnsureTaskDir("a"))
	require.NoError(t, s.EnsureTaskDir("b"))
	require.NoError(t, os.WriteFile(s.LogPath("a", "20240301_100000.000000"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(s.LogPath("b", "20240301_100000.000000"), []byte("x"), 0o600))

	found, err = s.ClearAll()
	require.NoError(t, err)
	require.True(t, found)

	_, foundA := s.History("a")
	_, foundB := s.History("b")
	require.False(t, foundA)
	require.False(t, foundB)
}

func TestParseReturnCodeAbsent(t *testing.T) {
	_, ok := ParseReturnCode("Command: echo\nSTDOUT:\nhello\n")
	require.False(t, ok)
}
