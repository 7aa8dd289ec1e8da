package metrics

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	got *RunInfo
}

func (l *captureLogger) Log(info *RunInfo) {
	l.got = info
}

func TestCollectorStagesAndLog(t *testing.T) {
	logger := &captureLogger{}
	c := NewCollector(logger)
	c.Info.Policy = "left_to_right"
	c.Info.PointsGenerated = 5

	c.StageDone("stack_open")
	c.StageDone("sampling")
	c.Log()

	require.NotNil(t, logger.got)
	assert.Equal(t, "left_to_right", logger.got.Policy)
	require.Len(t, logger.got.Stages, 2)
	assert.Equal(t, "stack_open", logger.got.Stages[0].Name)
	assert.Equal(t, "sampling", logger.got.Stages[1].Name)
	assert.True(t, logger.got.Duration > 0)
	assert.NotEmpty(t, logger.got.StartTime)
}

func TestRunInfoToJSON(t *testing.T) {
	info := &RunInfo{
		Policy:          "diagonal",
		PointsGenerated: 4,
		Windows:         2,
		Outputs:         []string{"combined_time_series.csv"},
	}

	s, err := info.ToJSON()
	require.NoError(t, err)

	var got RunInfo
	require.NoError(t, json.Unmarshal([]byte(s), &got))
	assert.Equal(t, "diagonal", got.Policy)
	assert.Equal(t, 2, got.Windows)
	assert.Empty(t, got.Error)
}

func TestFileLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	logger := NewFileLogger(dir)

	logger.Log(&RunInfo{Policy: "left_to_right"})
	logger.Log(&RunInfo{Policy: "diagonal"})

	data, err := ioutil.ReadFile(filepath.Join(dir, "runs.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first, second RunInfo
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "left_to_right", first.Policy)
	assert.Equal(t, "diagonal", second.Policy)
}
