package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Backer is the subset of backup.Service the scheduler needs.
type Backer interface {
	CreateAndUpload(ctx context.Context, conn *sql.DB) error
	RotateOldBackups(ctx context.Context) error
}

// BackupJob runs the daily store snapshot + upload + retention rotation.
type BackupJob struct {
	backer  Backer
	conn    *sql.DB
	log     zerolog.Logger
	running atomic.Bool
}

// NewBackupJob wires the daily backup pass.
func NewBackupJob(backer Backer, conn *sql.DB, log zerolog.Logger) *BackupJob {
	return &BackupJob{backer: backer, conn: conn, log: log.With().Str("job", "backup").Logger()}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("previous backup run still running, skipping this one")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := j.backer.CreateAndUpload(ctx, j.conn); err != nil {
		return fmt.Errorf("create and upload backup: %w", err)
	}
	if err := j.backer.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("backup rotation failed")
	}
	return nil
}
