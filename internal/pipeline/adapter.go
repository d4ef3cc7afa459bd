// Package pipeline runs transform and capture jobs against external
// engines and reports their lifecycle through callbacks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shtefko55/toolsy/internal/models"
)

// Callbacks receive a job's lifecycle events. OnStart fires once before
// any progress; OnProgress fires zero or more times with percentages in
// [0, 95]; exactly one of OnComplete or OnError fires last.
type Callbacks struct {
	OnStart    func()
	OnProgress func(percent int, message string)
	OnComplete func(outputPath string)
	OnError    func(err error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) progress(percent int, message string) {
	if c.OnProgress == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > maxRunningPercent {
		percent = maxRunningPercent
	}
	c.OnProgress(percent, message)
}

func (c Callbacks) complete(outputPath string) {
	if c.OnComplete != nil {
		c.OnComplete(outputPath)
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// maxRunningPercent caps progress while a job is running. 100 is
// reserved for the completed event.
const maxRunningPercent = 95

// Adapter runs one job to its terminal event. Run blocks until the
// terminal callback has fired.
type Adapter interface {
	Run(ctx context.Context, job *models.Job, cb Callbacks)
}

// removeAbs deletes an absolute path, treating a missing file as done.
func removeAbs(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// classifyEngineError maps an ffmpeg failure onto the error taxonomy
// where the stderr detail makes the cause unambiguous.
func classifyEngineError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("job timed out: %w", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid data found") ||
		strings.Contains(msg, "could not find codec parameters") ||
		strings.Contains(msg, "moov atom not found") {
		return fmt.Errorf("%w: %v", models.ErrInvalidSource, err)
	}
	return err
}
