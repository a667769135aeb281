package export

import (
	"fmt"
	"time"

	"github.com/ruslano69/partarch/pkg/chunker"
)

// State - состояние задания
type State int

const (
	StatePending State = iota
	StateDescribing
	StateSerializing
	StateSuccess
	StateFailed
	StateWriting
	StateChunking
	StateDone
)

var stateNames = [...]string{
	StatePending:     "pending",
	StateDescribing:  "describing",
	StateSerializing: "serializing",
	StateSuccess:     "success",
	StateFailed:      "failed",
	StateWriting:     "writing",
	StateChunking:    "chunking",
	StateDone:        "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText пишет состояние строкой в JSON результата
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome - результат одного задания (партиция × таблица)
type Outcome struct {
	Partition string         `json:"partition"`
	Table     string         `json:"table"`
	State     State          `json:"state"`
	Rows      int64          `json:"rows"`
	Bytes     int64          `json:"bytes"`
	Files     []chunker.Part `json:"files,omitempty"`
	Objects   []string       `json:"objects,omitempty"` // загруженные в архив объекты
	Duration  time.Duration  `json:"duration"`
	Warnings  []string       `json:"warnings,omitempty"`
	Error     string         `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the job did not produce its output.
func (o *Outcome) Failed() bool { return o.State == StateFailed }

// HasWarnings reports whether the job failed or finished with warnings.
func (o *Outcome) HasWarnings() bool { return o.Failed() || len(o.Warnings) > 0 }

func (o *Outcome) fail(err error) {
	o.State = StateFailed
	o.Err = err
	o.Error = err.Error()
}

func (o *Outcome) warn(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Summary - итог запуска
type Summary struct {
	Session    string        `json:"session"`
	Partitions []string      `json:"partitions"`
	Tables     []string      `json:"tables"`
	Outcomes   []Outcome     `json:"outcomes"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"` // фатальная ошибка запуска
}

// HasWarnings reports whether any job failed or produced a warning.
func (s *Summary) HasWarnings() bool {
	for i := range s.Outcomes {
		if s.Outcomes[i].HasWarnings() {
			return true
		}
	}
	return false
}

// Failed returns the number of failed jobs.
func (s *Summary) Failed() int {
	n := 0
	for i := range s.Outcomes {
		if s.Outcomes[i].Failed() {
			n++
		}
	}
	return n
}

// Rows returns the number of exported rows over all jobs.
func (s *Summary) Rows() int64 {
	var n int64
	for i := range s.Outcomes {
		n += s.Outcomes[i].Rows
	}
	return n
}

// StatusLine returns the final operator line of a completed run.
func (s *Summary) StatusLine() string {
	d := s.Duration.Round(time.Millisecond)
	if s.HasWarnings() {
		return fmt.Sprintf("⚠ Export completed with warnings in %s", d)
	}
	return fmt.Sprintf("✓ Export completed in %s", d)
}
