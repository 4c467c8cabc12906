package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PauseEventKind marks a pause or a resume in a timer's event log.
type PauseEventKind string

const (
	PauseEventPause  PauseEventKind = "pause"
	PauseEventResume PauseEventKind = "resume"
)

// PauseEvent is one entry of the pause/resume log kept on a timesheet line.
type PauseEvent struct {
	Kind PauseEventKind `json:"kind"`
	At   time.Time      `json:"at"`
}

// PauseEvents is stored as a JSON array column.
type PauseEvents []PauseEvent

func (p PauseEvents) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]PauseEvent(p))
	if err != nil {
		return nil, fmt.Errorf("encode pause events: %w", err)
	}
	return b, nil
}

func (p *PauseEvents) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = PauseEvents{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan pause events: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*p = PauseEvents{}
		return nil
	}
	var events []PauseEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return fmt.Errorf("decode pause events: %w", err)
	}
	*p = events
	return nil
}

// LeftPaused reports whether the log ends with an unresolved pause.
func (p PauseEvents) LeftPaused() bool {
	return len(p) > 0 && p[len(p)-1].Kind == PauseEventPause
}

// ActiveDuration returns the worked (non-paused) time between start and end.
// The events must be in chronological order. A trailing pause with no
// matching resume contributes nothing after its pause time.
func ActiveDuration(start time.Time, end *time.Time, events []PauseEvent) time.Duration {
	if start.IsZero() || end == nil || end.IsZero() {
		return 0
	}
	if len(events) == 0 {
		if d := end.Sub(start); d > 0 {
			return d
		}
		return 0
	}

	var active time.Duration
	lastResume := start
	paused := false
	for _, ev := range events {
		switch ev.Kind {
		case PauseEventPause:
			at := ev.At
			if at.After(*end) {
				at = *end
			}
			if !paused && at.After(lastResume) {
				active += at.Sub(lastResume)
			}
			paused = true
		case PauseEventResume:
			lastResume = ev.At
			paused = false
		}
	}
	if !paused && lastResume.Before(*end) {
		active += end.Sub(lastResume)
	}
	return active
}

// ActiveHours is ActiveDuration expressed in hours, unrounded.
func ActiveHours(start time.Time, end *time.Time, events []PauseEvent) float64 {
	return ActiveDuration(start, end, events).Hours()
}

// RoundHours rounds to two decimal places, the precision hours are stored at.
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
