package backup

import (
	"fmt"
	"time"
)

// SlotPrefix is the filename prefix shared by every slot directory and
// artifact under the backup root.
const SlotPrefix = "serverbackup-"

// SlotStatus classifies a backup slot. The status is computed once at
// enumeration time; components never re-derive it from the filesystem.
type SlotStatus string

const (
	// SlotStatusStaging marks a slot owned by the currently running backup
	SlotStatusStaging SlotStatus = "STAGING"
	// SlotStatusComplete marks a slot whose marker or final artifact exists
	SlotStatusComplete SlotStatus = "COMPLETE"
	// SlotStatusPartial marks a markerless slot left behind by a failed run
	SlotStatusPartial SlotStatus = "PARTIAL"
)

// Slot is one backup attempt's directory/artifact set, identified by name
// and optional timestamp. A slot may have a staging directory, a plain
// archive artifact, an encrypted artifact, or any combination of the three.
type Slot struct {
	ID                string     `json:"id"`
	StagingPath       string     `json:"staging_path,omitempty"`
	ArtifactPath      string     `json:"artifact_path,omitempty"`
	EncryptedArtifact string     `json:"encrypted_artifact,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	Status            SlotStatus `json:"status"`
	Size              int64      `json:"size"`

	// StaleStaging marks a markerless staging directory left next to a
	// valid artifact by a failed overwriting run. The slot itself is
	// complete; only the staging directory is garbage.
	StaleStaging bool `json:"stale_staging,omitempty"`
}

// RunState tracks the lifecycle state machine of a single backup run
type RunState string

const (
	RunStateAllocated RunState = "ALLOCATED"
	RunStateDumping   RunState = "DUMPING"
	RunStateCopying   RunState = "COPYING"
	RunStateMarked    RunState = "MARKED"
	RunStateArchived  RunState = "ARCHIVED"
	RunStateEncrypted RunState = "ENCRYPTED"
	RunStateUploaded  RunState = "UPLOADED"
	RunStateDone      RunState = "DONE"
	RunStateFailed    RunState = "FAILED"
)

// Marker is the metadata record whose presence is the sole completion
// signal for a slot. It is written into the staging directory only after
// every dump and directory copy has succeeded.
type Marker struct {
	Name                string    `json:"name"`
	Timestamp           time.Time `json:"timestamp"`
	IncludedDatabases   []string  `json:"included_databases"`
	IncludedDirectories []string  `json:"included_directories"`
}

// SlotID derives a slot identifier from the backup name and, when
// withTimestamp is set, the creation time as a unix timestamp suffix.
func SlotID(name string, createdAt time.Time, withTimestamp bool) string {
	if withTimestamp {
		return fmt.Sprintf("%s%s-%d", SlotPrefix, name, createdAt.Unix())
	}
	return SlotPrefix + name
}
