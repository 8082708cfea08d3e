package backlog

import (
	"context"
	"fmt"
	"log/slog"

	"mps/internal/logging"
)

// Disposition describes the result of one replay attempt.
type Disposition int

const (
	// DispositionDelivered removes the entry.
	DispositionDelivered Disposition = iota
	// DispositionRetry keeps the entry pending for a later pass, unless the
	// attempt budget is exhausted.
	DispositionRetry
	// DispositionFatal dead-letters the entry immediately.
	DispositionFatal
)

// SubmitFunc attempts delivery of one entry. The string return is the error
// kind recorded on the entry when delivery failed.
type SubmitFunc func(ctx context.Context, entry *Entry) (Disposition, string, error)

// ProcessAll replays every pending entry once, in insertion order. The
// attempt count is persisted before the outcome is known so a crash mid-pass
// still reflects the attempt. Entries whose attempt count reaches
// maxAttempts are dead-lettered and reported, never silently dropped.
// Persistence failures abort the pass with an error since continuing could
// violate the at-least-once guarantee.
func (s *Store) ProcessAll(ctx context.Context, submit SubmitFunc, maxAttempts int, logger *slog.Logger) (Result, error) {
	log := logging.NewComponentLogger(logger, "backlog")

	entries, err := s.List(ctx, StatusPending)
	if err != nil {
		return Result{}, fmt.Errorf("load pending entries: %w", err)
	}

	result := Result{}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		attempts, err := s.incrementAttempt(ctx, entry.ID)
		if err != nil {
			return result, fmt.Errorf("persist attempt for %s: %w", entry.ItemID, err)
		}
		entry.AttemptCount = attempts
		result.Attempted++

		disposition, errKind, submitErr := submit(ctx, entry)
		switch disposition {
		case DispositionDelivered:
			if err := s.remove(ctx, entry.ID); err != nil {
				return result, fmt.Errorf("remove delivered entry %s: %w", entry.ItemID, err)
			}
			result.Processed++
			log.Info("backlog entry delivered",
				logging.String(logging.FieldItemID, entry.ItemID),
				logging.Int("attempts", attempts),
			)
		case DispositionFatal:
			if err := s.markDead(ctx, entry.ID, errKind); err != nil {
				return result, fmt.Errorf("dead-letter entry %s: %w", entry.ItemID, err)
			}
			result.Dead++
			result.Failed = true
			log.Warn("backlog entry dead-lettered",
				logging.String(logging.FieldItemID, entry.ItemID),
				logging.Int("attempts", attempts),
				logging.Error(submitErr),
			)
		default:
			result.Failed = true
			if attempts >= maxAttempts {
				if err := s.markDead(ctx, entry.ID, errKind); err != nil {
					return result, fmt.Errorf("dead-letter entry %s: %w", entry.ItemID, err)
				}
				result.Dead++
				log.Warn("backlog entry exhausted attempts",
					logging.String(logging.FieldItemID, entry.ItemID),
					logging.Int("attempts", attempts),
					logging.Int("max_attempts", maxAttempts),
				)
				continue
			}
			if err := s.recordFailure(ctx, entry.ID, errKind); err != nil {
				return result, fmt.Errorf("record failure for %s: %w", entry.ItemID, err)
			}
			log.Debug("backlog entry still failing",
				logging.String(logging.FieldItemID, entry.ItemID),
				logging.Int("attempts", attempts),
				logging.Error(submitErr),
			)
		}
	}
	return result, nil
}
