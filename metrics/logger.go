package metrics

import (
	"log"
	"os"
	"path"
)

type Logger interface {
	Log(info *RunInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *RunInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		log.Print(infoStr)
	} else {
		log.Printf("StdoutLogger: error: %v", err)
	}
}

// FileLogger appends one JSON record per run to a log file in LogDir.
type FileLogger struct {
	LogDir string
}

func NewFileLogger(logDir string) *FileLogger {
	return &FileLogger{LogDir: logDir}
}

func (l *FileLogger) Log(info *RunInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		log.Printf("FileLogger: info.ToJSON() error: %v", err)
		return
	}

	logFilePath := path.Join(l.LogDir, "runs.log")
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("FileLogger: log open error: %v", err)
		return
	}
	defer f.Close()

	_, err = f.WriteString(infoStr)
	if err != nil {
		log.Printf("FileLogger: write error: %v", err)
	}
}
