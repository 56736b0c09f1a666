package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// archiveExtensions are the artifact suffixes produced by the archiver,
// one per supported compression codec.
var archiveExtensions = []string{".tar.gz", ".tar.zst", ".tar.lz4"}

// EncryptedExtension is appended to an artifact once it has been encrypted
const EncryptedExtension = ".enc"

// ListSlots enumerates every slot belonging to the named backup under the
// backup root and classifies each one exactly once. A slot is COMPLETE when
// its staging directory carries the marker or a final artifact exists for
// it; a markerless staging directory with no artifact is PARTIAL.
func ListSlots(root string, name string) ([]*Slot, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewRetentionError("failed to enumerate backup root", err).WithContext("root", root)
	}

	slots := make(map[string]*Slot)
	slotFor := func(id string) *Slot {
		if s, ok := slots[id]; ok {
			return s
		}
		s := &Slot{ID: id}
		slots[id] = s
		return s
	}

	for _, entry := range entries {
		if !belongsToBackup(entry.Name(), name) {
			continue
		}

		path := filepath.Join(root, entry.Name())

		if entry.IsDir() {
			slotFor(entry.Name()).StagingPath = path
			continue
		}

		base := entry.Name()
		encrypted := strings.HasSuffix(base, EncryptedExtension)
		if encrypted {
			base = strings.TrimSuffix(base, EncryptedExtension)
		}

		id, ok := trimArchiveExtension(base)
		if !ok {
			continue
		}

		slot := slotFor(id)
		if encrypted {
			slot.EncryptedArtifact = path
		} else {
			slot.ArtifactPath = path
		}
		if info, err := entry.Info(); err == nil {
			slot.Size += info.Size()
		}
	}

	result := make([]*Slot, 0, len(slots))
	for _, slot := range slots {
		classifySlot(slot, name)
		result = append(result, slot)
	}

	// Stable order for reporting: oldest first
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// classifySlot assigns the slot's status and creation time. The staging
// component is judged on its own: a markerless staging directory next to a
// valid artifact (a failed run reusing a single-copy slot ID) does not
// taint the artifact, but is flagged stale so the sweep can remove it.
func classifySlot(slot *Slot, name string) {
	hasArtifact := slot.ArtifactPath != "" || slot.EncryptedArtifact != ""
	hasMarker := slot.StagingPath != "" && HasMarker(slot.StagingPath)

	switch {
	case hasArtifact:
		slot.Status = SlotStatusComplete
		slot.StaleStaging = slot.StagingPath != "" && !hasMarker
	case hasMarker:
		slot.Status = SlotStatusComplete
	default:
		slot.Status = SlotStatusPartial
	}

	slot.CreatedAt = slotCreationTime(slot, name)
}

// slotCreationTime resolves a slot's creation time from, in order of
// preference, its marker, the timestamp suffix in its ID, and the
// filesystem modification time.
func slotCreationTime(slot *Slot, name string) time.Time {
	if slot.StagingPath != "" {
		if marker, err := ReadMarker(slot.StagingPath); err == nil {
			return marker.Timestamp
		}
	}

	if ts, ok := parseSlotTimestamp(slot.ID, name); ok {
		return ts
	}

	for _, path := range []string{slot.ArtifactPath, slot.EncryptedArtifact, slot.StagingPath} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			return info.ModTime()
		}
	}

	return time.Time{}
}

// belongsToBackup reports whether a directory entry under the backup root
// is part of the named backup. "serverbackup-site2" must not match a
// backup named "site".
func belongsToBackup(entryName string, name string) bool {
	base := strings.TrimSuffix(entryName, EncryptedExtension)
	if trimmed, ok := trimArchiveExtension(base); ok {
		base = trimmed
	}

	exact := SlotPrefix + name
	if base == exact {
		return true
	}
	if !strings.HasPrefix(base, exact+"-") {
		return false
	}
	// The only allowed suffix is a unix timestamp
	_, err := strconv.ParseInt(strings.TrimPrefix(base, exact+"-"), 10, 64)
	return err == nil
}

// trimArchiveExtension strips a known archive extension, reporting whether
// one was present
func trimArchiveExtension(base string) (string, bool) {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext), true
		}
	}
	return base, false
}

// parseSlotTimestamp extracts the unix timestamp suffix from a slot ID
func parseSlotTimestamp(id string, name string) (time.Time, bool) {
	suffix := strings.TrimPrefix(id, SlotPrefix+name)
	if !strings.HasPrefix(suffix, "-") {
		return time.Time{}, false
	}

	unix, err := strconv.ParseInt(strings.TrimPrefix(suffix, "-"), 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(unix, 0), true
}

// DeleteSlot removes a slot's staging directory and artifacts entirely.
// Deletion is best-effort: every component is attempted and the first
// failure is reported as a non-fatal RetentionError.
func DeleteSlot(slot *Slot) error {
	var failures []string

	if slot.StagingPath != "" {
		if err := os.RemoveAll(slot.StagingPath); err != nil {
			failures = append(failures, fmt.Sprintf("staging %s: %v", slot.StagingPath, err))
		}
	}

	for _, path := range []string{slot.ArtifactPath, slot.EncryptedArtifact} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failures = append(failures, fmt.Sprintf("artifact %s: %v", path, err))
		}
	}

	if len(failures) > 0 {
		return NewRetentionError(
			fmt.Sprintf("failed to fully delete slot: %s", strings.Join(failures, "; ")),
			nil,
		).WithContext("slot_id", slot.ID)
	}

	return nil
}
