package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/observability"
	"blackfong-core/storage/sqlite"

	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	backupPrefix = "blackfong-"
	backupSuffix = ".db"
)

// Snapshotter copies a live database file into dst
type Snapshotter func(ctx context.Context, src, dst string) error

// BackupService keeps one dated copy of the state store per UTC day
type BackupService struct {
	dbPath    string
	backupDir string
	keepDays  int
	interval  time.Duration
	snapshot  Snapshotter
	events    Recorder
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(dbPath, backupDir string, keepDays int, interval time.Duration, events Recorder, metrics *observability.Metrics, logger *zap.Logger) *BackupService {
	return &BackupService{
		dbPath:    dbPath,
		backupDir: backupDir,
		keepDays:  keepDays,
		interval:  interval,
		snapshot:  sqlite.OnlineBackup,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ArtifactPath returns the backup file for the UTC day of t
func (s *BackupService) ArtifactPath(t time.Time) (path, stamp string) {
	stamp = t.UTC().Format("20060102")
	return filepath.Join(s.backupDir, backupPrefix+stamp+backupSuffix), stamp
}

// EnsureDaily creates today's artifact if it is missing, then prunes old
// artifacts. It returns nil, nil when the live database does not exist yet.
// Prune failures are reported in the result, never as the error. A failed
// audit insert is returned together with the result.
func (s *BackupService) EnsureDaily(ctx context.Context) (*domains.BackupResult, error) {
	if _, err := os.Stat(s.dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.metrics.BackupRunsTotal.WithLabelValues("missing").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	ctx, span := observability.Tracer().Start(ctx, "backup.ensure_daily")
	defer span.End()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, stamp := s.ArtifactPath(s.now())
	artifact := &domains.BackupArtifact{Path: path, Stamp: stamp}
	span.SetAttributes(attribute.String("backup.path", path))

	var auditErr error
	_, err := os.Stat(path)
	switch {
	case err == nil:
		s.metrics.BackupRunsTotal.WithLabelValues("skipped").Inc()
	case errors.Is(err, fs.ErrNotExist):
		digest, err := s.create(ctx, path)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		artifact.Created = true
		artifact.Digest = digest
		s.metrics.BackupRunsTotal.WithLabelValues("created").Inc()
		s.logger.Info("backup created", zap.String("path", path), zap.String("blake3", digest))
		auditErr = audit(ctx, s.events, EventInput{
			Severity:  domains.SeverityInfo,
			Source:    domains.SourceSystem,
			EventType: "backup.created",
			Message:   "backup created: " + filepath.Base(path),
		})
	default:
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	result := &domains.BackupResult{Artifact: artifact, Pruned: []string{}}
	s.rotate(result)
	return result, auditErr
}

func (s *BackupService) create(ctx context.Context, path string) (string, error) {
	tmp := path + ".tmp"
	os.Remove(tmp)

	if err := s.snapshot(ctx, s.dbPath, tmp); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	digest, err := fileDigest(tmp)
	if err != nil {
		os.Remove(tmp)
		return "", err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}
	return digest, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash backup: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// rotate keeps the newest max(1, keepDays) artifacts by name
func (s *BackupService) rotate(result *domains.BackupResult) {
	matches, err := filepath.Glob(filepath.Join(s.backupDir, backupPrefix+"*"+backupSuffix))
	if err != nil {
		result.PruneErrors = append(result.PruneErrors, err)
		return
	}

	keep := s.keepDays
	if keep < 1 {
		keep = 1
	}

	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	if len(matches) <= keep {
		return
	}

	for _, old := range matches[keep:] {
		if err := os.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.PruneErrors = append(result.PruneErrors, fmt.Errorf("failed to delete %s: %w", old, err))
			s.metrics.BackupPruneErrorsTotal.Inc()
			s.logger.Warn("backup prune failed", zap.String("path", old), zap.Error(err))
			continue
		}
		result.Pruned = append(result.Pruned, old)
	}
}

// Run calls EnsureDaily at start and then every interval until ctx is done.
// Failures are logged and counted.
func (s *BackupService) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	result, err := s.EnsureDaily(ctx)
	if err != nil {
		s.metrics.BackupRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("daily backup failed", zap.Error(err))
		return
	}
	if result != nil && len(result.Pruned) > 0 {
		s.logger.Info("old backups pruned", zap.Strings("paths", result.Pruned))
	}
}
