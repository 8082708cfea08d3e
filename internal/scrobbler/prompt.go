package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mps/internal/settings"
)

// ErrPromptTimeout indicates the threshold prompt expired with no answer.
var ErrPromptTimeout = errors.New("threshold prompt timed out")

// ErrNoPrompt indicates no threshold prompt is waiting for an answer.
var ErrNoPrompt = errors.New("no threshold prompt pending")

// PromptThreshold asks the attached interface for a new threshold and blocks
// until AnswerThreshold supplies one, the prompt times out, or ctx is
// canceled. On timeout or cancellation the stored threshold is unchanged and
// the caller receives an explicit error rather than a silently applied
// default.
func (e *Engine) PromptThreshold(ctx context.Context) (int, error) {
	e.promptMu.Lock()
	if e.prompt != nil {
		e.promptMu.Unlock()
		return 0, errors.New("threshold prompt already pending")
	}
	answer := make(chan int, 1)
	e.prompt = answer
	e.promptMu.Unlock()

	defer func() {
		e.promptMu.Lock()
		e.prompt = nil
		e.promptMu.Unlock()
	}()

	current := e.settings.Threshold()
	e.sink.Publish("Threshold", fmt.Sprintf("Choose a watch-completion threshold (current %d%%)", current))

	timeout := time.Duration(e.cfg.Scrobbler.PromptTimeout) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case value := <-answer:
		if err := e.settings.SetThreshold(value); err != nil {
			return 0, err
		}
		return value, nil
	case <-timer.C:
		return 0, ErrPromptTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// AnswerThreshold delivers the user's choice to a pending prompt.
func (e *Engine) AnswerThreshold(value int) error {
	if value < 1 || value > 100 {
		return settings.ErrInvalidThreshold
	}
	e.promptMu.Lock()
	answer := e.prompt
	e.promptMu.Unlock()
	if answer == nil {
		return ErrNoPrompt
	}
	select {
	case answer <- value:
		return nil
	default:
		return ErrNoPrompt
	}
}
