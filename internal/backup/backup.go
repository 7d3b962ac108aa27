package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
)

const (
	archivePrefix    = "qbom-backup-"
	archiveTimestamp = "2006-01-02-150405"
)

// ObjectStore is the object storage surface the backup service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// Metadata describes the contents of a backup archive.
type Metadata struct {
	Timestamp     time.Time      `json:"timestamp"`
	FormatVersion string         `json:"format_version"`
	TraceCount    int            `json:"trace_count"`
	Traces        []FileMetadata `json:"traces"`
}

// FileMetadata describes a single trace file inside a backup archive.
type FileMetadata struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Info summarizes a backup archive stored in the bucket.
type Info struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// Service archives the trace store and manages the remote copies. The
// SQLite index is not backed up; it is rebuilt from the trace files.
type Service struct {
	store          *store.Store
	objects        ObjectStore
	retentionCount int
	log            zerolog.Logger
}

// NewService creates a backup service. retentionCount is how many
// archives rotation keeps; zero keeps everything.
func NewService(st *store.Store, objects ObjectStore, retentionCount int, log zerolog.Logger) *Service {
	return &Service{
		store:          st,
		objects:        objects,
		retentionCount: retentionCount,
		log:            log.With().Str("component", "backup").Logger(),
	}
}

// CreateAndUpload archives every stored trace into a tar.gz and uploads
// it. Returns the archive name.
func (s *Service) CreateAndUpload(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	ids, err := s.store.IDs()
	if err != nil {
		return "", fmt.Errorf("list traces: %w", err)
	}

	stagingDir, err := os.MkdirTemp("", "qbom-backup-*")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := Metadata{
		Timestamp:     time.Now().UTC(),
		FormatVersion: trace.FormatVersion,
		TraceCount:    len(ids),
		Traces:        make([]FileMetadata, 0, len(ids)),
	}

	for _, id := range ids {
		path := s.store.Path(id)
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat trace %s: %w", id, err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return "", fmt.Errorf("checksum trace %s: %w", id, err)
		}
		metadata.Traces = append(metadata.Traces, FileMetadata{
			ID:        id,
			Filename:  id + ".json",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	archiveName := archivePrefix + time.Now().Format(archiveTimestamp) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.createArchive(archivePath, metadataPath, ids); err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.objects.Upload(ctx, archiveName, archiveFile); err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int("traces", len(ids)).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")

	return archiveName, nil
}

// ListBackups lists the archives in the bucket, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]Info, error) {
	objects, err := s.objects.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	now := time.Now()
	backups := make([]Info, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, archivePrefix) || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimSuffix(strings.TrimPrefix(obj.Key, archivePrefix), ".tar.gz")
		timestamp, err := time.Parse(archiveTimestamp, timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("Unparseable backup filename")
			continue
		}

		backups = append(backups, Info{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes archives beyond the retention count, oldest
// first. A retention count of zero keeps everything.
func (s *Service) RotateOldBackups(ctx context.Context) error {
	if s.retentionCount <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= s.retentionCount {
		return nil
	}

	deleted := 0
	for _, backup := range backups[s.retentionCount:] {
		if err := s.objects.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", backup.Filename).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}

// Run performs a full backup cycle: upload a fresh archive, then rotate.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.CreateAndUpload(ctx); err != nil {
		return err
	}
	return s.RotateOldBackups(ctx)
}

// Restore downloads an archive and unpacks its trace files into the
// store, verifying checksums against the archive metadata. Existing
// files with the same ID are overwritten. Returns the number of traces
// restored; the caller should reindex afterwards.
func (s *Service) Restore(ctx context.Context, archiveName string) (int, error) {
	s.log.Info().Str("archive", archiveName).Msg("Starting restore")

	body, err := s.objects.Download(ctx, archiveName)
	if err != nil {
		return 0, fmt.Errorf("download archive: %w", err)
	}
	defer body.Close()

	gzipReader, err := gzip.NewReader(body)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer gzipReader.Close()

	checksums := make(map[string]string)
	restored := 0
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, fmt.Errorf("read archive: %w", err)
		}

		if header.Name == "backup-metadata.json" {
			var metadata Metadata
			if err := json.NewDecoder(tarReader).Decode(&metadata); err != nil {
				return restored, fmt.Errorf("decode metadata: %w", err)
			}
			for _, f := range metadata.Traces {
				checksums[f.Filename] = f.Checksum
			}
			continue
		}

		name := strings.TrimPrefix(header.Name, "traces/")
		if name == header.Name || !strings.HasSuffix(name, ".json") {
			s.log.Warn().Str("entry", header.Name).Msg("Skipping unexpected archive entry")
			continue
		}
		id := strings.TrimSuffix(name, ".json")

		if err := s.restoreFile(s.store.Path(id), tarReader, checksums[name]); err != nil {
			return restored, fmt.Errorf("restore %s: %w", name, err)
		}
		restored++
	}

	s.log.Info().
		Str("archive", archiveName).
		Int("traces", restored).
		Msg("Restore completed")
	return restored, nil
}

func (s *Service) restoreFile(path string, r io.Reader, wantChecksum string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	hash := sha256.New()
	_, err = io.Copy(io.MultiWriter(file, hash), r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return err
	}

	if wantChecksum != "" {
		got := fmt.Sprintf("sha256:%x", hash.Sum(nil))
		if got != wantChecksum {
			os.Remove(path)
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, wantChecksum)
		}
	}
	return nil
}

func (s *Service) createArchive(archivePath, metadataPath string, ids []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	if err := addFileToArchive(tarWriter, metadataPath, "backup-metadata.json"); err != nil {
		return fmt.Errorf("add metadata to archive: %w", err)
	}
	for _, id := range ids {
		name := id + ".json"
		if err := addFileToArchive(tarWriter, s.store.Path(id), "traces/"+name); err != nil {
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata Metadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}
