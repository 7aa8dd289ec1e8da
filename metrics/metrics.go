package metrics

import (
	"bytes"
	"encoding/json"
	"time"
)

// StageInfo times one pipeline stage.
type StageInfo struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// RunInfo is the metrics record of one pipeline run.
type RunInfo struct {
	StartTime       string        `json:"start_time"`
	Duration        time.Duration `json:"duration"`
	Policy          string        `json:"policy"`
	PointsRequested int           `json:"points_requested"`
	PointsGenerated int           `json:"points_generated"`
	PointsDropped   int           `json:"points_dropped"`
	Windows         int           `json:"windows"`
	NumFeatures     int           `json:"num_features"`
	BytesRead       int64         `json:"bytes_read"`
	Stages          []StageInfo   `json:"stages,omitempty"`
	Outputs         []string      `json:"outputs,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func (info *RunInfo) ToJSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	err := enc.Encode(info)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Collector accumulates run metrics and hands them to a Logger when
// the run finishes.
type Collector struct {
	Info *RunInfo

	logger    Logger
	startTime time.Time
	stageTime time.Time
}

func NewCollector(logger Logger) *Collector {
	now := time.Now()
	return &Collector{
		Info:      &RunInfo{StartTime: now.UTC().Format(time.RFC3339)},
		logger:    logger,
		startTime: now,
		stageTime: now,
	}
}

// StageDone records the elapsed time since the previous stage mark.
func (c *Collector) StageDone(name string) {
	now := time.Now()
	c.Info.Stages = append(c.Info.Stages, StageInfo{Name: name, Duration: now.Sub(c.stageTime)})
	c.stageTime = now
}

// Log finalizes the run duration and emits the record.
func (c *Collector) Log() {
	c.Info.Duration = time.Since(c.startTime)
	if c.logger != nil {
		c.logger.Log(c.Info)
	}
}
