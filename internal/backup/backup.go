// Package backup periodically snapshots the SQLite store to an
// S3-compatible bucket (Cloudflare R2), tar+gzip+checksummed, with
// retention-based rotation.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// minBackupsToKeep guards against a misconfigured retention window deleting
// every backup at once.
const minBackupsToKeep = 3

// Metadata describes one backup archive.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"sizeBytes"`
	Checksum  string    `json:"checksum"`
}

// Info is a listed backup's summary, used by rotation.
type Info struct {
	Filename  string
	Timestamp time.Time
	SizeBytes int64
}

// Bucket is the subset of R2Client the backup service needs, narrowed so
// tests can substitute a fake bucket instead of a real AWS SDK client.
type Bucket interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectSummary, error)
	Delete(ctx context.Context, key string) error
}

// Service snapshots a single SQLite database file to R2 on a schedule.
type Service struct {
	r2            Bucket
	dbPath        string
	stagingDir    string
	retentionDays int
	log           zerolog.Logger
}

// New builds a backup service over an already-open database file path.
func New(r2 Bucket, dbPath, stagingDir string, retentionDays int, log zerolog.Logger) *Service {
	return &Service{
		r2:            r2,
		dbPath:        dbPath,
		stagingDir:    stagingDir,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "backup_service").Logger(),
	}
}

// CreateAndUpload snapshots the live database via SQLite's VACUUM INTO (so
// the backup is internally consistent without stopping writers), archives
// it with a checksum manifest, and uploads the archive to R2.
func (s *Service) CreateAndUpload(ctx context.Context, conn *sql.DB) error {
	s.log.Info().Str("source", s.dbPath).Msg("starting backup")
	start := time.Now()

	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	snapshotPath := filepath.Join(s.stagingDir, "pxi.db")
	if err := s.snapshotDatabase(ctx, conn, snapshotPath); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	checksum, err := checksumFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("checksum snapshot: %w", err)
	}

	timestamp := time.Now().UTC()
	archiveName := fmt.Sprintf("pxi-backup-%s.tar.gz", timestamp.Format("2006-01-02-150405"))
	archivePath := filepath.Join(s.stagingDir, archiveName)

	metadata := Metadata{Timestamp: timestamp, Filename: "pxi.db", SizeBytes: info.Size(), Checksum: checksum}
	metadataPath := filepath.Join(s.stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := createArchive(archivePath, snapshotPath, metadataPath); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	archiveInfo, err := archiveFile.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	if err := s.r2.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	s.log.Info().Dur("duration", time.Since(start)).Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).Msg("backup completed")
	return nil
}

// snapshotDatabase uses SQLite's VACUUM INTO to produce a consistent
// point-in-time copy without interrupting the running connection pool.
func (s *Service) snapshotDatabase(ctx context.Context, conn *sql.DB, destPath string) error {
	if _, err := conn.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// ListBackups returns every backup archive in the bucket, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]Info, error) {
	objects, err := s.r2.List(ctx, "pxi-backup-")
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]Info, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, "pxi-backup-") || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(obj.Key, "pxi-backup-"), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", ts)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("failed to parse backup timestamp")
			continue
		}
		backups = append(backups, Info{Filename: obj.Key, Timestamp: timestamp, SizeBytes: obj.Size})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateOldBackups deletes backups older than the configured retention
// window, always keeping at least minBackupsToKeep regardless of age.
func (s *Service) RotateOldBackups(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("rotate backups: %w", err)
	}
	if len(backups) <= minBackupsToKeep || s.retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.r2.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("failed to delete old backup")
			continue
		}
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation completed")
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata)
}

func createArchive(archivePath string, files ...string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzWriter := gzip.NewWriter(archiveFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := addFileToArchive(tarWriter, path); err != nil {
			return fmt.Errorf("add %s to archive: %w", path, err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{Name: filepath.Base(path), Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime()}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, f)
	return err
}
