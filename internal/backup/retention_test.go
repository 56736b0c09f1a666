package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverbackup/internal/config"
)

func retentionTestConfig(root string, retention config.RetentionConfig) *config.Config {
	return &config.Config{
		Name:       "myhost",
		BackupRoot: root,
		Retention:  retention,
	}
}

func slotIDs(slots []*Slot) []string {
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestRetentionKeepsNewestCopies(t *testing.T) {
	root := t.TempDir()
	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		makeArtifact(t, root, fmt.Sprintf("serverbackup-myhost-%d.tar.gz", ts))
	}

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxLocalCopies: 2}), nil)
	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"serverbackup-myhost-1000", "serverbackup-myhost-2000"},
		slotIDs(result.Deleted))
	assert.ElementsMatch(t,
		[]string{"serverbackup-myhost-3000", "serverbackup-myhost-4000"},
		slotIDs(result.Kept))

	remaining, err := ListSlots(root, "myhost")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestRetentionAlwaysDeletesPartialSlots(t *testing.T) {
	root := t.TempDir()
	// A markerless staging directory from a failed run
	staging := makeStagingSlot(t, root, "serverbackup-myhost-9000", false, time.Time{})
	require.NoError(t, os.WriteFile(filepath.Join(staging, "appdb.sql"), []byte("half a dump"), 0o644))
	// A complete backup that must survive
	makeArtifact(t, root, "serverbackup-myhost-1000.tar.gz")

	// No policy configured: complete slots are unlimited, partials still go
	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{}), nil)
	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"serverbackup-myhost-9000"}, slotIDs(result.Deleted))
	assert.NoDirExists(t, staging)

	remaining, err := ListSlots(root, "myhost")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, SlotStatusComplete, remaining[0].Status)
}

func TestRetentionAgeBasedPolicy(t *testing.T) {
	root := t.TempDir()
	now := time.Unix(2000000000, 0)

	// 7 retention days of 23 hours each
	maxAge := 7 * retentionDay
	oldTS := now.Add(-maxAge - time.Hour).Unix()
	freshTS := now.Add(-maxAge + time.Hour).Unix()

	makeArtifact(t, root, fmt.Sprintf("serverbackup-myhost-%d.tar.gz", oldTS))
	makeArtifact(t, root, fmt.Sprintf("serverbackup-myhost-%d.tar.gz", freshTS))

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxAgeDays: 7}), nil)
	manager.now = func() time.Time { return now }

	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{fmt.Sprintf("serverbackup-myhost-%d", oldTS)}, slotIDs(result.Deleted))
	assert.Equal(t, []string{fmt.Sprintf("serverbackup-myhost-%d", freshTS)}, slotIDs(result.Kept))
}

func TestRetentionZeroMaxAgeMeansUnlimited(t *testing.T) {
	root := t.TempDir()
	// Unix timestamp 1000 is decades old by any wall clock
	makeArtifact(t, root, "serverbackup-myhost-1000.tar.gz")

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxAgeDays: 0}), nil)
	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.Empty(t, result.Deleted)
	assert.Len(t, result.Kept, 1)
}

func TestRetentionDryRunDeletesNothing(t *testing.T) {
	root := t.TempDir()
	staging := makeStagingSlot(t, root, "serverbackup-myhost-9000", false, time.Time{})
	makeArtifact(t, root, "serverbackup-myhost-1000.tar.gz")
	makeArtifact(t, root, "serverbackup-myhost-2000.tar.gz")

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxLocalCopies: 1}), nil)
	result, err := manager.Apply(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.ElementsMatch(t,
		[]string{"serverbackup-myhost-9000", "serverbackup-myhost-1000"},
		slotIDs(result.Deleted))

	// Nothing actually removed
	assert.DirExists(t, staging)
	remaining, err := ListSlots(root, "myhost")
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestRetentionCountsOnlyCompleteSlots(t *testing.T) {
	root := t.TempDir()
	// Two complete slots and one newer partial: with MaxLocalCopies of 2
	// both complete slots survive; the partial never counts toward the
	// budget and is deleted.
	makeArtifact(t, root, "serverbackup-myhost-1000.tar.gz")
	makeArtifact(t, root, "serverbackup-myhost-2000.tar.gz")
	makeStagingSlot(t, root, "serverbackup-myhost-3000", false, time.Time{})

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxLocalCopies: 2}), nil)
	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"serverbackup-myhost-3000"}, slotIDs(result.Deleted))
	assert.ElementsMatch(t,
		[]string{"serverbackup-myhost-1000", "serverbackup-myhost-2000"},
		slotIDs(result.Kept))
}

func TestRetentionCleansStaleStagingOfKeptSlot(t *testing.T) {
	root := t.TempDir()
	staging := makeStagingSlot(t, root, "serverbackup-myhost", false, time.Time{})
	artifact := makeArtifact(t, root, "serverbackup-myhost.tar.gz")

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxLocalCopies: 1}), nil)
	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)

	// The slot survives the sweep, minus its leftover staging directory
	assert.Empty(t, result.Deleted)
	require.Len(t, result.Kept, 1)
	assert.Empty(t, result.Errors)
	assert.NoDirExists(t, staging)
	assert.FileExists(t, artifact)
}

func TestRetentionDryRunKeepsStaleStaging(t *testing.T) {
	root := t.TempDir()
	staging := makeStagingSlot(t, root, "serverbackup-myhost", false, time.Time{})
	makeArtifact(t, root, "serverbackup-myhost.tar.gz")

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{MaxLocalCopies: 1}), nil)
	result, err := manager.Apply(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, result.Kept, 1)
	assert.DirExists(t, staging)
}

func TestRetentionEmptyRoot(t *testing.T) {
	manager := NewRetentionManager(
		retentionTestConfig(filepath.Join(t.TempDir(), "missing"), config.RetentionConfig{MaxLocalCopies: 1}),
		nil)

	result, err := manager.Apply(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Kept)
}

func TestRetentionCancelled(t *testing.T) {
	root := t.TempDir()
	makeArtifact(t, root, "serverbackup-myhost-1000.tar.gz")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manager := NewRetentionManager(retentionTestConfig(root, config.RetentionConfig{}), nil)
	_, err := manager.Apply(ctx, false)
	require.Error(t, err)
	assert.True(t, IsRetentionError(err))
}
