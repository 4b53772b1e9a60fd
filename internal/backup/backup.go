// Package backup serializes the full demanda table to timestamped JSON
// snapshot files, on a schedule, on shutdown and on designated events, and
// prunes old automatic snapshots beyond a retention cap.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"demandas/internal/domain"
	"demandas/internal/repo"
)

// Trigger kinds. Only KindAuto snapshots are subject to retention pruning.
const (
	KindAuto         = "auto"
	KindManual       = "manual"
	KindShutdown     = "shutdown"
	KindStatusChange = "status_change"
	KindDelete       = "delete"
	KindBatchImport  = "batch_import"
)

const (
	envelopeVersion      = "1.0"
	filenameTimeLayout   = "2006-01-02T15-04-05"
	defaultInterval      = 6 * time.Hour
	defaultSweepInterval = 24 * time.Hour
	defaultRetention     = 10
)

type Engine struct {
	Repo          repo.Repo
	Dir           string
	Interval      time.Duration
	SweepInterval time.Duration
	Retention     int
	Log           *zap.Logger
	Now           func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (b *Engine) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Engine) logger() *zap.Logger {
	if b.Log != nil {
		return b.Log
	}
	return zap.NewNop()
}

func (b *Engine) interval() time.Duration {
	if b.Interval > 0 {
		return b.Interval
	}
	return defaultInterval
}

func (b *Engine) sweepInterval() time.Duration {
	if b.SweepInterval > 0 {
		return b.SweepInterval
	}
	return defaultSweepInterval
}

func (b *Engine) retention() int {
	if b.Retention > 0 {
		return b.Retention
	}
	return defaultRetention
}

// Snapshot exports every demanda, normalized, into a new snapshot file and
// returns the file name.
func (b *Engine) Snapshot(ctx context.Context, kind string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	demandas, err := b.Repo.ListAllDemandas(ctx)
	if err != nil {
		return "", fmt.Errorf("read demandas: %w", err)
	}
	ts := b.now().UTC()
	env := domain.BackupEnvelope{
		Version:   envelopeVersion,
		Timestamp: ts.Format(time.RFC3339),
		Kind:      kind,
		Count:     len(demandas),
		Demandas:  demandas,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", err
	}
	name := b.uniqueName(kind, ts)
	if err := os.WriteFile(filepath.Join(b.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	b.logger().Info("backup snapshot written",
		zap.String("kind", kind), zap.String("file", name), zap.Int("count", len(demandas)))
	return name, nil
}

// uniqueName disambiguates snapshots taken within the same second.
func (b *Engine) uniqueName(kind string, ts time.Time) string {
	base := fmt.Sprintf("backup_%s_%s", kind, ts.Format(filenameTimeLayout))
	name := base + ".json"
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(b.Dir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s-%d.json", base, n)
	}
}

// SnapshotBestEffort is Snapshot for side-effect paths; failures are logged
// and never surfaced.
func (b *Engine) SnapshotBestEffort(ctx context.Context, kind string) {
	if _, err := b.Snapshot(ctx, kind); err != nil {
		b.logger().Error("backup snapshot failed", zap.String("kind", kind), zap.Error(err))
	}
}

// Prune deletes the oldest automatic snapshots beyond the retention cap and
// returns how many files were removed. Manual and event-triggered snapshots
// are exempt.
func (b *Engine) Prune(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var auto []string
	prefix := "backup_" + KindAuto + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			auto = append(auto, name)
		}
	}
	keep := b.retention()
	if len(auto) <= keep {
		return 0, nil
	}
	// The timestamp encoding sorts lexicographically, oldest first.
	sort.Strings(auto)
	deleted := 0
	for _, name := range auto[:len(auto)-keep] {
		if err := os.Remove(filepath.Join(b.Dir, name)); err != nil {
			b.logger().Error("backup prune failed", zap.String("file", name), zap.Error(err))
			continue
		}
		deleted++
	}
	b.logger().Info("backup retention sweep", zap.Int("deleted", deleted), zap.Int("kept", keep))
	return deleted, nil
}

// Info describes one snapshot file.
type Info struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// List returns the snapshot files in the backup directory, newest first.
func (b *Engine) List() ([]Info, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}
	res := []Info{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "backup_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		res = append(res, Info{
			Name:      name,
			Kind:      kindFromName(name),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name > res[j].Name })
	return res, nil
}

// kindFromName extracts the trigger kind from backup_<kind>_<timestamp>.json.
// Kinds may contain underscores; the timestamp never does.
func kindFromName(name string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "backup_"), ".json")
	idx := strings.LastIndex(trimmed, "_")
	if idx <= 0 {
		return ""
	}
	return trimmed[:idx]
}

// ReadSnapshot loads a snapshot envelope from the backup directory by name.
func (b *Engine) ReadSnapshot(name string) (domain.BackupEnvelope, error) {
	var env domain.BackupEnvelope
	if filepath.Base(name) != name {
		return env, fmt.Errorf("invalid snapshot name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(b.Dir, name))
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return env, nil
}

// Start launches the scheduled snapshot and retention sweep timers. They run
// until Stop is called.
func (b *Engine) Start() {
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.run()
}

func (b *Engine) run() {
	defer close(b.done)
	snapshots := time.NewTicker(b.interval())
	defer snapshots.Stop()
	sweeps := time.NewTicker(b.sweepInterval())
	defer sweeps.Stop()
	for {
		select {
		case <-snapshots.C:
			b.SnapshotBestEffort(context.Background(), KindAuto)
		case <-sweeps.C:
			if _, err := b.Prune(context.Background()); err != nil {
				b.logger().Error("backup retention sweep failed", zap.Error(err))
			}
		case <-b.stop:
			return
		}
	}
}

// Stop cancels the timers and writes one final shutdown snapshot, waiting at
// most until ctx expires.
func (b *Engine) Stop(ctx context.Context) {
	if b.stop != nil {
		close(b.stop)
		select {
		case <-b.done:
		case <-ctx.Done():
			return
		}
		b.stop = nil
	}
	finished := make(chan struct{})
	go func() {
		b.SnapshotBestEffort(ctx, KindShutdown)
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		b.logger().Warn("shutdown backup did not finish in time")
	}
}
