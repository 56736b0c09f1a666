package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"serverbackup/internal/config"
	"serverbackup/internal/logging"
)

// LifecycleManager drives a single backup run through its state machine:
// allocate a slot, dump every database, copy every directory, write the
// completion marker, archive, and optionally encrypt and upload. The first
// failure aborts the run and leaves the markerless staging directory in
// place for the retention sweep to classify as partial.
type LifecycleManager struct {
	config       *config.Config
	logger       *logging.Logger
	dumper       DatabaseDumper
	copier       DirectoryCopier
	archiver     *Archiver
	storeFactory *ObjectStoreFactory
	now          func() time.Time
}

// RunResult summarizes one backup run
type RunResult struct {
	RunID             string        `json:"run_id"`
	Slot              *Slot         `json:"slot,omitempty"`
	State             RunState      `json:"state"`
	DumpedDatabases   []string      `json:"dumped_databases,omitempty"`
	CopiedDirectories []string      `json:"copied_directories,omitempty"`
	ArtifactPath      string        `json:"artifact_path,omitempty"`
	Uploaded          bool          `json:"uploaded"`
	Duration          time.Duration `json:"duration"`
}

// NewLifecycleManager creates a manager with the default production
// components
func NewLifecycleManager(cfg *config.Config, logger *logging.Logger) *LifecycleManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return NewLifecycleManagerWithDependencies(
		cfg,
		logger,
		NewMysqldumpDumper(logger),
		NewFilesystemCopier(logger),
		NewArchiver(cfg.Compression),
		NewObjectStoreFactory(),
	)
}

// NewLifecycleManagerWithDependencies creates a manager with custom
// components, primarily for testing
func NewLifecycleManagerWithDependencies(
	cfg *config.Config,
	logger *logging.Logger,
	dumper DatabaseDumper,
	copier DirectoryCopier,
	archiver *Archiver,
	storeFactory *ObjectStoreFactory,
) *LifecycleManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &LifecycleManager{
		config:       cfg,
		logger:       logger,
		dumper:       dumper,
		copier:       copier,
		archiver:     archiver,
		storeFactory: storeFactory,
		now:          time.Now,
	}
}

// Run executes one full backup run
func (m *LifecycleManager) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		RunID: uuid.NewString(),
		State: RunStateAllocated,
	}
	log := m.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"backup_name": m.config.Name,
	})
	log.Info("Backup run started")

	if m.config.LockFile != "" {
		release, err := acquireLock(m.config.LockFile)
		if err != nil {
			result.State = RunStateFailed
			return result, err
		}
		defer release()
	}

	slot, err := m.allocateSlot()
	if err != nil {
		result.State = RunStateFailed
		return result, err
	}
	result.Slot = slot

	fail := func(err error) (*RunResult, error) {
		result.State = RunStateFailed
		result.Duration = time.Since(startTime)
		log.WithField("state", string(RunStateFailed)).Error("Backup run failed")
		return result, err
	}

	// Dump every database into the staging directory. Any failure aborts
	// the whole run rather than producing a backup with a silent hole.
	m.setState(result, RunStateDumping, log)
	dumpDir := filepath.Join(slot.StagingPath, "db")
	for _, cred := range m.config.Databases {
		if _, err := m.dumper.Dump(ctx, cred, dumpDir); err != nil {
			return fail(err)
		}
		result.DumpedDatabases = append(result.DumpedDatabases, cred.Name)
	}

	m.setState(result, RunStateCopying, log)
	copyRoot := filepath.Join(slot.StagingPath, "dirs")
	for _, dir := range m.config.Directories {
		if err := m.copier.Copy(ctx, dir, copyRoot); err != nil {
			return fail(err)
		}
		result.CopiedDirectories = append(result.CopiedDirectories, dir)
	}

	// The marker is the completion signal: it is written only once every
	// dump and copy has succeeded.
	m.setState(result, RunStateMarked, log)
	marker := &Marker{
		Name:                m.config.Name,
		Timestamp:           slot.CreatedAt,
		IncludedDatabases:   result.DumpedDatabases,
		IncludedDirectories: result.CopiedDirectories,
	}
	if err := WriteMarker(slot.StagingPath, marker); err != nil {
		return fail(err)
	}

	// The archive is written to a temporary name and renamed into place,
	// so an archive failure in overwrite mode never destroys the previous
	// run's artifact.
	m.setState(result, RunStateArchived, log)
	artifactPath := filepath.Join(m.config.BackupRoot, slot.ID+m.archiver.Extension())
	tempPath := artifactPath + ".tmp"
	if err := m.archiver.Create(ctx, slot.StagingPath, tempPath); err != nil {
		os.Remove(tempPath)
		return fail(err)
	}
	if err := os.Rename(tempPath, artifactPath); err != nil {
		os.Remove(tempPath)
		return fail(NewArchiveError("failed to move artifact into place", err).
			WithContext("path", artifactPath))
	}
	if err := m.removeStaleArtifacts(slot.ID, artifactPath); err != nil {
		return fail(err)
	}
	slot.ArtifactPath = artifactPath
	result.ArtifactPath = artifactPath

	finalArtifact := artifactPath
	if m.config.Encryption.Enabled() {
		m.setState(result, RunStateEncrypted, log)
		encryptor := NewEncryptor(m.config.Encryption.Password)
		encryptedPath, err := encryptor.EncryptFile(artifactPath)
		if err != nil {
			return fail(err)
		}
		// The encrypted artifact replaces the plaintext one
		if err := os.Remove(artifactPath); err != nil {
			return fail(NewEncryptError("failed to remove plaintext artifact", err).
				WithContext("path", artifactPath))
		}
		slot.ArtifactPath = ""
		slot.EncryptedArtifact = encryptedPath
		finalArtifact = encryptedPath
		result.ArtifactPath = encryptedPath
	}

	if info, err := os.Stat(finalArtifact); err == nil {
		slot.Size = info.Size()
	}

	if m.config.UploadEnabled() {
		m.setState(result, RunStateUploaded, log)
		if err := m.upload(ctx, finalArtifact); err != nil {
			return fail(err)
		}
		result.Uploaded = true

		if m.config.Encryption.Enabled() && !m.config.KeepEncryptedAfterUpload {
			if err := os.Remove(finalArtifact); err != nil {
				return fail(NewUploadError("failed to remove encrypted artifact after upload", err).
					WithContext("path", finalArtifact))
			}
			slot.EncryptedArtifact = ""
		}
	}

	// The staging directory is removed only after the entire chain has
	// succeeded; until then it is the recoverable source of truth.
	if err := os.RemoveAll(slot.StagingPath); err != nil {
		return fail(NewArchiveError("failed to remove staging directory", err).
			WithContext("path", slot.StagingPath))
	}
	slot.StagingPath = ""
	slot.Status = SlotStatusComplete

	m.setState(result, RunStateDone, log)
	result.Duration = time.Since(startTime)
	log.WithFields(map[string]interface{}{
		"duration": result.Duration.String(),
		"artifact": result.ArtifactPath,
	}).Info("Backup run completed")

	return result, nil
}

// allocateSlot creates the staging directory for a new run
func (m *LifecycleManager) allocateSlot() (*Slot, error) {
	createdAt := m.now()
	withTimestamp := m.config.IncludeTimestampInFilename || m.config.Retention.MaxLocalCopies > 1
	id := SlotID(m.config.Name, createdAt, withTimestamp)

	if err := os.MkdirAll(m.config.BackupRoot, 0o755); err != nil {
		return nil, NewAllocationError("failed to create backup root", err).
			WithContext("root", m.config.BackupRoot)
	}

	stagingPath := filepath.Join(m.config.BackupRoot, id)
	if err := os.Mkdir(stagingPath, 0o700); err != nil {
		if !os.IsExist(err) {
			return nil, NewAllocationError("failed to create staging directory", err).
				WithContext("path", stagingPath)
		}

		// A marker-bearing staging directory is a complete backup that
		// has not been archived yet; never destroy it. A markerless one
		// is debris from a failed run with this same slot ID and is safe
		// to reclaim, so a crashed single-copy run cannot block every
		// future allocation.
		if HasMarker(stagingPath) {
			return nil, NewAllocationError(
				fmt.Sprintf("slot %s already exists, refusing to reuse a live staging directory", id),
				err,
			).WithContext("path", stagingPath)
		}

		m.logger.Warnf("Reclaiming markerless staging directory %s left by a failed run", stagingPath)
		if err := os.RemoveAll(stagingPath); err != nil {
			return nil, NewAllocationError("failed to reclaim stale staging directory", err).
				WithContext("path", stagingPath)
		}
		if err := os.Mkdir(stagingPath, 0o700); err != nil {
			return nil, NewAllocationError("failed to create staging directory", err).
				WithContext("path", stagingPath)
		}
	}

	return &Slot{
		ID:          id,
		StagingPath: stagingPath,
		CreatedAt:   createdAt,
		Status:      SlotStatusStaging,
	}, nil
}

// removeStaleArtifacts clears leftover artifacts carrying this slot's ID so
// that an overwriting run cannot leave a stale artifact with a different
// extension behind. It runs only after the new artifact exists; keep names
// the current artifact so it is never removed.
func (m *LifecycleManager) removeStaleArtifacts(id string, keep string) error {
	for _, ext := range archiveExtensions {
		for _, path := range []string{
			filepath.Join(m.config.BackupRoot, id+ext),
			filepath.Join(m.config.BackupRoot, id+ext+EncryptedExtension),
		} {
			if path == keep {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return NewArchiveError("failed to remove stale artifact", err).WithContext("path", path)
			}
		}
	}
	return nil
}

// upload pushes the final artifact to the configured object store
func (m *LifecycleManager) upload(ctx context.Context, artifactPath string) error {
	store, err := m.storeFactory.CreateObjectStore(ctx, m.config.Storage)
	if err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(artifactPath); err == nil {
		size = info.Size()
	}

	start := time.Now()
	objectName := filepath.Base(artifactPath)
	uploadErr := store.Upload(ctx, artifactPath, objectName)
	m.logger.LogUpload(string(store.Provider()), objectName, size, time.Since(start), uploadErr)

	return uploadErr
}

// setState advances the run state machine
func (m *LifecycleManager) setState(result *RunResult, state RunState, log *logrus.Entry) {
	result.State = state
	log.WithField("state", string(state)).Debug("State transition")
}

// acquireLock creates the lock file exclusively and returns its release
// function. Scheduler non-overlap is the documented precondition; the lock
// only guards against operator mistakes.
func acquireLock(path string) (func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, NewAllocationError(
				fmt.Sprintf("lock file %s exists, another backup run may be in progress", path),
				err,
			).WithContext("path", path)
		}
		return nil, NewAllocationError("failed to create lock file", err).WithContext("path", path)
	}

	fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Close()

	return func() {
		os.Remove(path)
	}, nil
}
