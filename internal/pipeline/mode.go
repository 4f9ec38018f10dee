package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMode is returned for a RUN_MODE other than train or predict
var ErrInvalidMode = errors.New("invalid run mode")

// Mode selects what a run does
type Mode string

const (
	ModeTrain   Mode = "train"
	ModePredict Mode = "predict"
)

// ParseMode validates RUN_MODE. Called before any connection is opened.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeTrain, ModePredict:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidMode, s, ModeTrain, ModePredict)
	}
}

// execTimeLayout is the EXEC_TIME format
const execTimeLayout = "2006-01-02"

// ParseExecTime returns midnight UTC of EXEC_TIME, or of today when empty
func ParseExecTime(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(execTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("EXEC_TIME %q: want YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// DateRange is the half-open window [From, To) of lead creation times processed by a run
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange returns [execTime - days, execTime)
func NewDateRange(execTime time.Time, days int) DateRange {
	return DateRange{From: execTime.AddDate(0, 0, -days), To: execTime}
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
}
