package backup

import (
	"context"
	"os"
	"time"

	"serverbackup/internal/config"
	"serverbackup/internal/logging"
)

// retentionDay is the duration treated as one day by the age-based policy.
// It is deliberately one hour short of 24 so that a daily cron job drifting
// by a few minutes still expires yesterday's backup on schedule.
const retentionDay = 23 * time.Hour

// RetentionManager applies the configured retention policy to the slots of
// one named backup. Partial slots are always removed; complete slots are
// kept or deleted according to the count-based or age-based policy.
type RetentionManager struct {
	config *config.Config
	logger *logging.Logger
	now    func() time.Time
}

// RetentionResult summarizes one retention sweep
type RetentionResult struct {
	Deleted        []*Slot       `json:"deleted"`
	Kept           []*Slot       `json:"kept"`
	Errors         []error       `json:"-"`
	ProcessingTime time.Duration `json:"processing_time"`
	DryRun         bool          `json:"dry_run"`
}

// NewRetentionManager creates a new RetentionManager instance
func NewRetentionManager(cfg *config.Config, logger *logging.Logger) *RetentionManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionManager{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Apply runs one retention sweep. Per-slot deletion failures are collected
// in the result and never abort the sweep; the sweep itself only fails when
// the backup root cannot be enumerated.
func (rm *RetentionManager) Apply(ctx context.Context, dryRun bool) (*RetentionResult, error) {
	startTime := time.Now()
	complete := rm.logger.LogOperationStart("retention_sweep", map[string]interface{}{
		"backup_name": rm.config.Name,
		"dry_run":     dryRun,
	})

	result := &RetentionResult{DryRun: dryRun}

	slots, err := ListSlots(rm.config.BackupRoot, rm.config.Name)
	if err != nil {
		complete(err)
		return nil, err
	}

	for _, slot := range slots {
		if err := ctx.Err(); err != nil {
			complete(err)
			return result, NewRetentionError("retention sweep cancelled", err)
		}

		keep, reason := rm.evaluate(slot, slots)
		if keep {
			if err := rm.cleanStaleStaging(slot, dryRun); err != nil {
				result.Errors = append(result.Errors, err)
			}
			result.Kept = append(result.Kept, slot)
			continue
		}

		if dryRun {
			rm.logger.WithFields(map[string]interface{}{
				"slot_id": slot.ID,
				"status":  string(slot.Status),
				"reason":  reason,
			}).Info("Would delete backup slot (dry run)")
			result.Deleted = append(result.Deleted, slot)
			continue
		}

		if err := DeleteSlot(slot); err != nil {
			rm.logger.Warnf("Failed to delete slot %s: %v", slot.ID, err)
			result.Errors = append(result.Errors, err)
			continue
		}

		rm.logger.LogSlotCleanup(slot.ID, string(slot.Status), slot.CreatedAt, reason)
		result.Deleted = append(result.Deleted, slot)
	}

	result.ProcessingTime = time.Since(startTime)
	complete(nil)
	return result, nil
}

// cleanStaleStaging removes the markerless staging directory a failed run
// left next to a kept slot's artifact. Without this a single-copy slot
// would block every future allocation of its own ID.
func (rm *RetentionManager) cleanStaleStaging(slot *Slot, dryRun bool) error {
	if !slot.StaleStaging || slot.StagingPath == "" {
		return nil
	}

	if dryRun {
		rm.logger.WithFields(map[string]interface{}{
			"slot_id": slot.ID,
			"staging": slot.StagingPath,
		}).Info("Would delete stale staging directory (dry run)")
		return nil
	}

	if err := os.RemoveAll(slot.StagingPath); err != nil {
		return NewRetentionError("failed to delete stale staging directory", err).
			WithContext("slot_id", slot.ID).
			WithContext("path", slot.StagingPath)
	}

	rm.logger.LogSlotCleanup(slot.ID, string(slot.Status), slot.CreatedAt,
		"stale staging directory from an interrupted run")
	slot.StagingPath = ""
	slot.StaleStaging = false
	return nil
}

// evaluate decides whether a slot survives the sweep and, when it does not,
// why it is being deleted.
func (rm *RetentionManager) evaluate(slot *Slot, all []*Slot) (keep bool, reason string) {
	if slot.Status == SlotStatusPartial {
		return false, "partial slot from an incomplete run"
	}

	policy := rm.config.Retention

	switch {
	case policy.CountBased():
		if rm.withinNewest(slot, all, policy.MaxLocalCopies) {
			return true, ""
		}
		return false, "exceeds max local copies"

	case policy.AgeBased():
		age := rm.now().Sub(slot.CreatedAt)
		if age <= time.Duration(policy.MaxAgeDays)*retentionDay {
			return true, ""
		}
		return false, "exceeds max age"

	default:
		// No policy configured: unlimited retention for complete slots
		return true, ""
	}
}

// withinNewest reports whether the slot is among the n newest complete slots
func (rm *RetentionManager) withinNewest(slot *Slot, all []*Slot, n int) bool {
	// The slot list is ordered oldest first, so count complete slots that
	// are strictly newer than this one.
	newer := 0
	for _, other := range all {
		if other.Status != SlotStatusComplete || other.ID == slot.ID {
			continue
		}
		if other.CreatedAt.After(slot.CreatedAt) ||
			(other.CreatedAt.Equal(slot.CreatedAt) && other.ID > slot.ID) {
			newer++
		}
	}
	return newer < n
}
