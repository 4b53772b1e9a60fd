package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandas/internal/db"
	"demandas/internal/domain"
	"demandas/internal/migrate"
	"demandas/internal/normalize"
	"demandas/internal/repo"
)

func newTestEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	b := &Engine{
		Repo: repo.Repo{DB: conn},
		Dir:  filepath.Join(workspace, "backups"),
		Now:  func() time.Time { return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC) },
	}
	return b, conn
}

func seedDemanda(t *testing.T, conn *sql.DB, r repo.Repo, tag, nome string) int64 {
	t.Helper()
	tx, err := conn.Begin()
	require.NoError(t, err)
	d := domain.Demanda{
		Tag:           tag,
		NomeDemanda:   nome,
		Categoria:     "geral",
		Status:        domain.StatusPendente,
		FuncionarioID: 1,
		DataCriacao:   "2026-03-15T10:00:00Z",
		DataLimite:    "2026-04-01",
	}
	normalize.Apply(&d)
	id, err := r.InsertDemanda(context.Background(), tx, d)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func TestSnapshotWritesEnvelope(t *testing.T) {
	b, conn := newTestEngine(t)
	seedDemanda(t, conn, b.Repo, "DEM-1", "primeira demanda")
	seedDemanda(t, conn, b.Repo, "DEM-2", "segunda demanda")

	name, err := b.Snapshot(context.Background(), KindManual)
	require.NoError(t, err)
	assert.Equal(t, "backup_manual_2026-03-15T10-30-00.json", name)

	data, err := os.ReadFile(filepath.Join(b.Dir, name))
	require.NoError(t, err)
	var env domain.BackupEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "1.0", env.Version)
	assert.Equal(t, KindManual, env.Kind)
	assert.Equal(t, 2, env.Count)
	require.Len(t, env.Demandas, 2)
	assert.Equal(t, "DEM-1", env.Demandas[0].Tag)
	assert.NotNil(t, env.Demandas[0].Atribuidos)
}

func TestSnapshotSameSecondGetsSuffix(t *testing.T) {
	b, _ := newTestEngine(t)
	first, err := b.Snapshot(context.Background(), KindAuto)
	require.NoError(t, err)
	second, err := b.Snapshot(context.Background(), KindAuto)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "backup_auto_2026-03-15T10-30-00-1.json", second)
}

func TestPruneKeepsNewestAutoOnly(t *testing.T) {
	b, _ := newTestEngine(t)
	b.Retention = 10
	require.NoError(t, os.MkdirAll(b.Dir, 0o755))
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("backup_auto_2026-03-%02dT00-00-00.json", i+1)
		require.NoError(t, os.WriteFile(filepath.Join(b.Dir, name), []byte("{}"), 0o644))
	}
	manual := "backup_manual_2026-03-01T00-00-00.json"
	statusChange := "backup_status_change_2026-03-01T00-00-00.json"
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir, manual), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir, statusChange), []byte("{}"), 0o644))

	deleted, err := b.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("backup_auto_2026-03-%02dT00-00-00.json", i+1)
		assert.NoFileExists(t, filepath.Join(b.Dir, name))
	}
	for i := 5; i < 15; i++ {
		name := fmt.Sprintf("backup_auto_2026-03-%02dT00-00-00.json", i+1)
		assert.FileExists(t, filepath.Join(b.Dir, name))
	}
	assert.FileExists(t, filepath.Join(b.Dir, manual))
	assert.FileExists(t, filepath.Join(b.Dir, statusChange))
}

func TestPruneUnderRetentionIsNoop(t *testing.T) {
	b, _ := newTestEngine(t)
	require.NoError(t, os.MkdirAll(b.Dir, 0o755))
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("backup_auto_2026-03-%02dT00-00-00.json", i+1)
		require.NoError(t, os.WriteFile(filepath.Join(b.Dir, name), []byte("{}"), 0o644))
	}
	deleted, err := b.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestKindFromName(t *testing.T) {
	assert.Equal(t, "auto", kindFromName("backup_auto_2026-03-15T10-30-00.json"))
	assert.Equal(t, "status_change", kindFromName("backup_status_change_2026-03-15T10-30-00.json"))
	assert.Equal(t, "batch_import", kindFromName("backup_batch_import_2026-03-15T10-30-00.json"))
	assert.Equal(t, "", kindFromName("backup_.json"))
}

func TestListNewestFirst(t *testing.T) {
	b, _ := newTestEngine(t)
	require.NoError(t, os.MkdirAll(b.Dir, 0o755))
	names := []string{
		"backup_auto_2026-03-01T00-00-00.json",
		"backup_manual_2026-03-02T00-00-00.json",
		"backup_auto_2026-03-03T00-00-00.json",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(b.Dir, n), []byte("{}"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir, "notes.txt"), []byte("x"), 0o644))

	infos, err := b.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "backup_auto_2026-03-03T00-00-00.json", infos[0].Name)
	assert.Equal(t, "manual", infos[1].Kind)
}

func TestReadSnapshotRejectsPathTraversal(t *testing.T) {
	b, _ := newTestEngine(t)
	_, err := b.ReadSnapshot("../escape.json")
	assert.Error(t, err)
}

func TestReadSnapshotRoundTrip(t *testing.T) {
	b, conn := newTestEngine(t)
	seedDemanda(t, conn, b.Repo, "DEM-9", "demanda salva")
	name, err := b.Snapshot(context.Background(), KindShutdown)
	require.NoError(t, err)

	env, err := b.ReadSnapshot(name)
	require.NoError(t, err)
	assert.Equal(t, KindShutdown, env.Kind)
	require.Len(t, env.Demandas, 1)
	assert.Equal(t, "DEM-9", env.Demandas[0].Tag)
}
