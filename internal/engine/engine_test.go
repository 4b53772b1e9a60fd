package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"demandas/internal/backup"
	"demandas/internal/db"
	"demandas/internal/domain"
	"demandas/internal/engine"
	"demandas/internal/migrate"
	"demandas/internal/repo"
)

type recordingSink struct {
	pushes []int64
}

func (s *recordingSink) Push(usuarioID int64, payload any) {
	s.pushes = append(s.pushes, usuarioID)
}

type testEnv struct {
	Engine    engine.Engine
	Sink      *recordingSink
	BackupDir string
	Ctx       context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	backupDir := filepath.Join(workspace, "backups")
	backups := &backup.Engine{
		Repo: repo.Repo{DB: conn},
		Dir:  backupDir,
		Log:  zap.NewNop(),
	}
	sink := &recordingSink{}
	eng := engine.New(conn, backups, sink, zap.NewNop())
	eng.Now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Sink: sink, BackupDir: backupDir, Ctx: context.Background()}
}

func createDemanda(t *testing.T, env testEnv, opts engine.CreateOptions) domain.Demanda {
	t.Helper()
	if opts.NomeDemanda == "" {
		opts.NomeDemanda = "Revisar relatório mensal"
	}
	if opts.Categoria == "" {
		opts.Categoria = "administrativo"
	}
	if opts.DataLimite == "" {
		opts.DataLimite = "2026-03-01"
	}
	if opts.FuncionarioID == 0 {
		opts.FuncionarioID = 7
	}
	if opts.ActorID == "" {
		opts.ActorID = "tester"
	}
	d, err := env.Engine.CreateDemanda(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create demanda: %v", err)
	}
	return d
}

func backupFiles(t *testing.T, dir, kind string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "backup_"+kind+"_*.json"))
	if err != nil {
		t.Fatalf("glob backups: %v", err)
	}
	return matches
}

var tagPattern = regexp.MustCompile(`^DEM-\d+$`)

func TestCreateDemandaDefaults(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})
	if !tagPattern.MatchString(d.Tag) {
		t.Fatalf("tag %q does not match DEM-<digits>", d.Tag)
	}
	if d.Status != domain.StatusPendente {
		t.Fatalf("status = %q, want pendente", d.Status)
	}
	if d.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if d.Atribuidos == nil || d.Comentarios == nil || d.DiasSemana == nil {
		t.Fatalf("list fields must be non-nil")
	}

	second := createDemanda(t, env, engine.CreateOptions{NomeDemanda: "Outra demanda"})
	if second.Tag == d.Tag {
		t.Fatalf("generated tags must be distinct, both %q", d.Tag)
	}
}

func TestCreateDemandaWithoutOwner(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDemanda(env.Ctx, engine.CreateOptions{
		NomeDemanda: "Fix pump", Categoria: "manutencao", DataLimite: "2025-01-01", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create without owner: %v", err)
	}
	if !tagPattern.MatchString(d.Tag) {
		t.Fatalf("tag %q does not match DEM-<digits>", d.Tag)
	}
	if d.Status != domain.StatusPendente {
		t.Fatalf("status = %q, want pendente", d.Status)
	}
	if d.FuncionarioID != 0 {
		t.Fatalf("funcionarioId = %d, want unset", d.FuncionarioID)
	}

	// Approval still snapshots, but there is no owner to notify.
	status := domain.StatusAprovada
	if _, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Status: &status, ActorID: "gestor"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	notas, err := env.Engine.Repo.ListNotificacoes(env.Ctx, repo.NotificacaoFilters{})
	if err != nil || len(notas) != 0 {
		t.Fatalf("want no notifications, got %d (%v)", len(notas), err)
	}
	if len(env.Sink.pushes) != 0 {
		t.Fatalf("want no live pushes, got %v", env.Sink.pushes)
	}
	if files := backupFiles(t, env.BackupDir, "status_change"); len(files) != 1 {
		t.Fatalf("want 1 status_change snapshot, got %d", len(files))
	}
}

func TestCreateDemandaValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateDemanda(env.Ctx, engine.CreateOptions{
		NomeDemanda: "ab", Categoria: "x", DataLimite: "2026-03-01", FuncionarioID: 1, ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("short name: want ValidationError, got %v", err)
	}
	_, err = env.Engine.CreateDemanda(env.Ctx, engine.CreateOptions{
		NomeDemanda: "Nome válido", DataLimite: "2026-03-01", FuncionarioID: 1, ActorID: "tester",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("missing categoria: want ValidationError, got %v", err)
	}
}

func TestCreateDemandaDuplicateTag(t *testing.T) {
	env := newTestEnv(t)
	createDemanda(t, env, engine.CreateOptions{Tag: "DEM-42"})
	_, err := env.Engine.CreateDemanda(env.Ctx, engine.CreateOptions{
		Tag: "DEM-42", NomeDemanda: "Repetida", Categoria: "x", DataLimite: "2026-03-01", FuncionarioID: 1, ActorID: "tester",
	})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConflictError, got %v", err)
	}
}

func TestListFieldsSurviveRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{
		Atribuidos: []domain.Atribuido{{ID: 9, Nome: "Bia", Email: "bia@example.com"}},
		IsRotina:   true,
		DiasSemana: []int{1, 3, 5},
	})
	got, err := env.Engine.GetDemanda(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get demanda: %v", err)
	}
	if len(got.Atribuidos) != 1 || got.Atribuidos[0].Nome != "Bia" {
		t.Fatalf("atribuidos round trip: %+v", got.Atribuidos)
	}
	if !got.IsRotina || len(got.DiasSemana) != 3 {
		t.Fatalf("rotina round trip: rotina=%v dias=%v", got.IsRotina, got.DiasSemana)
	}
	if got.Comentarios == nil || got.AnexosResolucao == nil {
		t.Fatalf("list fields must be non-nil after read")
	}
}

func TestApprovalSideEffects(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{FuncionarioID: 7})

	status := domain.StatusAprovada
	_, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{
		ID: d.ID, Status: &status, ActorID: "gestor",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	notas, err := env.Engine.Repo.ListNotificacoes(env.Ctx, repo.NotificacaoFilters{UsuarioID: 7})
	if err != nil {
		t.Fatalf("list notificacoes: %v", err)
	}
	if len(notas) != 1 {
		t.Fatalf("want 1 notification for owner, got %d", len(notas))
	}
	if notas[0].Tipo != "demanda_aprovada" || notas[0].DemandaTag != d.Tag {
		t.Fatalf("unexpected notification: %+v", notas[0])
	}
	if len(env.Sink.pushes) != 1 || env.Sink.pushes[0] != 7 {
		t.Fatalf("want 1 live push to user 7, got %v", env.Sink.pushes)
	}
	if files := backupFiles(t, env.BackupDir, "status_change"); len(files) != 1 {
		t.Fatalf("want 1 status_change snapshot, got %d", len(files))
	}
}

func TestRejectionNotificationIsPriority(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{FuncionarioID: 5})
	status := domain.StatusReprovada
	if _, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Status: &status, ActorID: "gestor"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	notas, err := env.Engine.Repo.ListNotificacoes(env.Ctx, repo.NotificacaoFilters{UsuarioID: 5})
	if err != nil || len(notas) != 1 {
		t.Fatalf("list notificacoes: %v (%d)", err, len(notas))
	}
	if !notas[0].Prioritaria {
		t.Fatalf("rejection notification must be priority")
	}
}

func TestInvalidStatusTransition(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})

	status := domain.StatusFinalizadoPendente
	_, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Status: &status, ActorID: "tester"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("pendente -> finalizado must fail, got %v", err)
	}

	// Force bypasses the table and stamps a completion date.
	got, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Status: &status, ActorID: "tester", Force: true})
	if err != nil {
		t.Fatalf("forced transition: %v", err)
	}
	if got.Status != domain.StatusFinalizadoPendente || got.DataConclusao == nil {
		t.Fatalf("forced finalizado: status=%q conclusao=%v", got.Status, got.DataConclusao)
	}

	unknown := "arquivada"
	if _, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Status: &unknown, ActorID: "tester", Force: true}); err == nil {
		t.Fatalf("unknown status must fail even with force")
	}
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{Descricao: "original"})
	novaDescricao := "atualizada"
	got, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Descricao: &novaDescricao, ActorID: "editor"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Descricao != "atualizada" {
		t.Fatalf("descricao = %q", got.Descricao)
	}
	if got.NomeDemanda != d.NomeDemanda || got.Status != d.Status {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if got.AtualizadoPor != "editor" {
		t.Fatalf("atualizadoPor = %q", got.AtualizadoPor)
	}
}

func TestReassignDedupesAndForcesStatus(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})

	novo := domain.Atribuido{ID: 11, Nome: "Carla"}
	got, err := env.Engine.Reassign(env.Ctx, d.ID, novo, "gestor", "test")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if len(got.Atribuidos) != 1 || got.Atribuidos[0].ID != 11 {
		t.Fatalf("atribuidos after reassign: %+v", got.Atribuidos)
	}
	if got.Status != domain.StatusAtribuidaPendente {
		t.Fatalf("status = %q", got.Status)
	}
	if !strings.Contains(got.ComentarioGestor, "Demanda reatribuída para Carla") {
		t.Fatalf("manager note missing: %q", got.ComentarioGestor)
	}

	// Same assignee again: no duplicate entry, no second notification, but
	// the status and note are still rewritten.
	again, err := env.Engine.Reassign(env.Ctx, d.ID, novo, "gestor", "test")
	if err != nil {
		t.Fatalf("second reassign: %v", err)
	}
	if len(again.Atribuidos) != 1 {
		t.Fatalf("duplicate assignee: %+v", again.Atribuidos)
	}
	notas, err := env.Engine.Repo.ListNotificacoes(env.Ctx, repo.NotificacaoFilters{UsuarioID: 11})
	if err != nil || len(notas) != 1 {
		t.Fatalf("want exactly 1 assignment notification, got %d (%v)", len(notas), err)
	}
	if c := strings.Count(again.ComentarioGestor, "reatribuída"); c != 2 {
		t.Fatalf("want 2 dated notes, got %d: %q", c, again.ComentarioGestor)
	}

	regs, err := env.Engine.Repo.ListAuditoria(env.Ctx, repo.AuditoriaFilters{Acao: "REASSIGN", RegistroID: d.ID})
	if err != nil {
		t.Fatalf("list auditoria: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("want one REASSIGN record per call, got %d", len(regs))
	}
	// Oldest record holds the first reassignment: the note appears only in
	// the after snapshot.
	first := regs[len(regs)-1]
	if strings.Contains(first.DadosAntes, "reatribuída") {
		t.Fatalf("before snapshot already carries the note: %s", first.DadosAntes)
	}
	if !strings.Contains(first.DadosDepois, "Carla") || !strings.Contains(first.DadosDepois, domain.StatusAtribuidaPendente) {
		t.Fatalf("after snapshot missing reassignment: %s", first.DadosDepois)
	}
}

func TestExtendDeadline(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{DataLimite: "2026-03-01"})
	got, err := env.Engine.ExtendDeadline(env.Ctx, d.ID, "2026-04-15", "gestor", "test")
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if got.DataLimite != "2026-04-15" {
		t.Fatalf("dataLimite = %q", got.DataLimite)
	}
	if !strings.Contains(got.ComentarioGestor, "Prazo prorrogado de 2026-03-01 para 2026-04-15") {
		t.Fatalf("note missing: %q", got.ComentarioGestor)
	}
	if _, err := env.Engine.ExtendDeadline(env.Ctx, d.ID, "  ", "gestor", "test"); err == nil {
		t.Fatalf("blank deadline must fail")
	}

	regs, err := env.Engine.Repo.ListAuditoria(env.Ctx, repo.AuditoriaFilters{Acao: "EXTEND_DEADLINE", RegistroID: d.ID})
	if err != nil {
		t.Fatalf("list auditoria: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("want 1 EXTEND_DEADLINE record, got %d", len(regs))
	}
	if !strings.Contains(regs[0].DadosAntes, `"dataLimite":"2026-03-01"`) {
		t.Fatalf("before snapshot missing old deadline: %s", regs[0].DadosAntes)
	}
	if !strings.Contains(regs[0].DadosDepois, `"dataLimite":"2026-04-15"`) {
		t.Fatalf("after snapshot missing new deadline: %s", regs[0].DadosDepois)
	}
}

func TestDeleteDemanda(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})
	if err := env.Engine.DeleteDemanda(env.Ctx, d.ID, "admin", "test"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetDemanda(env.Ctx, d.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	if err := env.Engine.DeleteDemanda(env.Ctx, d.ID, "admin", "test"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("double delete: want ErrNotFound, got %v", err)
	}
	if files := backupFiles(t, env.BackupDir, "delete"); len(files) != 1 {
		t.Fatalf("want 1 delete snapshot, got %d", len(files))
	}
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})
	prioridade := "alta"
	if _, err := env.Engine.UpdateDemanda(env.Ctx, engine.UpdateOptions{ID: d.ID, Prioridade: &prioridade, ActorID: "editor"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := env.Engine.DeleteDemanda(env.Ctx, d.ID, "admin", "test"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	regs, err := env.Engine.Repo.ListAuditoria(env.Ctx, repo.AuditoriaFilters{Tabela: "demandas", RegistroID: d.ID})
	if err != nil {
		t.Fatalf("list auditoria: %v", err)
	}
	if len(regs) != 3 {
		t.Fatalf("want 3 audit records, got %d", len(regs))
	}
	// Newest first.
	if regs[0].Acao != "DELETE" || regs[1].Acao != "UPDATE" || regs[2].Acao != "CREATE" {
		t.Fatalf("actions = %s, %s, %s", regs[0].Acao, regs[1].Acao, regs[2].Acao)
	}
	if regs[2].DadosAntes != "{}" {
		t.Fatalf("create must have empty before snapshot, got %q", regs[2].DadosAntes)
	}
	if !strings.Contains(regs[1].DadosDepois, `"prioridade":"alta"`) {
		t.Fatalf("update after snapshot missing change: %s", regs[1].DadosDepois)
	}
	if !strings.Contains(regs[0].DadosAntes, d.Tag) {
		t.Fatalf("delete before snapshot missing record: %s", regs[0].DadosAntes)
	}
	if regs[0].DadosDepois != "{}" {
		t.Fatalf("delete must have empty after snapshot, got %q", regs[0].DadosDepois)
	}
}

func TestSearchDemandas(t *testing.T) {
	env := newTestEnv(t)
	createDemanda(t, env, engine.CreateOptions{NomeDemanda: "Trocar lâmpada da recepção"})
	createDemanda(t, env, engine.CreateOptions{NomeDemanda: "Pintar fachada"})

	if _, err := env.Engine.SearchDemandas(env.Ctx, "a", 10); err == nil {
		t.Fatalf("single char query must fail")
	}
	hits, err := env.Engine.SearchDemandas(env.Ctx, "FACHADA", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].NomeDemanda != "Pintar fachada" {
		t.Fatalf("search hits: %+v", hits)
	}
}

func TestListDemandasFilters(t *testing.T) {
	env := newTestEnv(t)
	createDemanda(t, env, engine.CreateOptions{FuncionarioID: 1, Prioridade: "alta"})
	createDemanda(t, env, engine.CreateOptions{NomeDemanda: "Outra tarefa", FuncionarioID: 2})

	byOwner, err := env.Engine.ListDemandas(env.Ctx, repo.DemandaFilters{FuncionarioID: 2})
	if err != nil || len(byOwner) != 1 {
		t.Fatalf("owner filter: %v (%d)", err, len(byOwner))
	}
	byMonth, err := env.Engine.ListDemandas(env.Ctx, repo.DemandaFilters{Mes: 2, Ano: 2026})
	if err != nil || len(byMonth) != 2 {
		t.Fatalf("month filter: %v (%d)", err, len(byMonth))
	}
	empty, err := env.Engine.ListDemandas(env.Ctx, repo.DemandaFilters{Mes: 12, Ano: 2026})
	if err != nil || len(empty) != 0 {
		t.Fatalf("off-month filter: %v (%d)", err, len(empty))
	}
}

func TestBatchImport(t *testing.T) {
	env := newTestEnv(t)
	payloads := make([]map[string]any, 0, 10)
	for i := 0; i < 9; i++ {
		payloads = append(payloads, map[string]any{
			"nomeDemanda":   "Demanda importada " + string(rune('A'+i)),
			"categoria":     "importacao",
			"dataLimite":    "2026-05-01",
			"funcionarioId": float64(3),
		})
	}
	payloads = append(payloads, map[string]any{
		"nomeDemanda": "x", // too short
		"categoria":   "importacao",
		"dataLimite":  "2026-05-01",
	})

	res, err := env.Engine.BatchImport(env.Ctx, payloads, "importer", "test")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.SuccessCount != 9 || res.ErrorCount != 1 {
		t.Fatalf("counts = %d/%d", res.SuccessCount, res.ErrorCount)
	}
	if len(res.Errors) != 1 || res.Errors[0].Index != 9 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if len(res.Imported) != 9 {
		t.Fatalf("imported = %d", len(res.Imported))
	}
	seen := map[string]bool{}
	for _, item := range res.Imported {
		if !tagPattern.MatchString(item.Tag) || seen[item.Tag] {
			t.Fatalf("bad or duplicate tag %q", item.Tag)
		}
		seen[item.Tag] = true
	}

	all, err := env.Engine.ListDemandas(env.Ctx, repo.DemandaFilters{})
	if err != nil || len(all) != 9 {
		t.Fatalf("stored rows: %v (%d)", err, len(all))
	}
	regs, err := env.Engine.Repo.ListAuditoria(env.Ctx, repo.AuditoriaFilters{Acao: "BATCH_IMPORT"})
	if err != nil || len(regs) != 1 {
		t.Fatalf("batch import audit: %v (%d)", err, len(regs))
	}
	if files := backupFiles(t, env.BackupDir, "batch_import"); len(files) != 1 {
		t.Fatalf("want 1 batch_import snapshot, got %d", len(files))
	}
}

func TestBatchImportErrorCap(t *testing.T) {
	env := newTestEnv(t)
	payloads := make([]map[string]any, 0, 30)
	for i := 0; i < 30; i++ {
		payloads = append(payloads, map[string]any{"nomeDemanda": "x"})
	}
	res, err := env.Engine.BatchImport(env.Ctx, payloads, "importer", "test")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.ErrorCount != 30 {
		t.Fatalf("errorCount = %d", res.ErrorCount)
	}
	if len(res.Errors) != 20 {
		t.Fatalf("errors list must cap at 20, got %d", len(res.Errors))
	}
}

func TestRestoreUpsertsById(t *testing.T) {
	env := newTestEnv(t)
	d := createDemanda(t, env, engine.CreateOptions{})

	records := []map[string]any{
		{
			"id": float64(d.ID), "tag": d.Tag, "nomeDemanda": "Nome restaurado",
			"categoria": "restauro", "status": "aprovada",
			"dataLimite": "2026-06-01", "funcionarioId": float64(7),
		},
		{
			"id": float64(999), "tag": "DEM-999", "nomeDemanda": "Registro novo",
			"categoria": "restauro", "status": "pendente",
			"dataLimite": "2026-06-01", "funcionarioId": float64(8),
		},
		{"nomeDemanda": "sem id nem tag"},
	}
	res, err := env.Engine.Restore(env.Ctx, records, "restorer", "test")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.SuccessCount != 2 || res.ErrorCount != 1 {
		t.Fatalf("counts = %d/%d", res.SuccessCount, res.ErrorCount)
	}

	got, err := env.Engine.GetDemanda(env.Ctx, d.ID)
	if err != nil || got.NomeDemanda != "Nome restaurado" || got.Status != "aprovada" {
		t.Fatalf("overwrite failed: %v %+v", err, got)
	}
	if _, err := env.Engine.GetDemanda(env.Ctx, 999); err != nil {
		t.Fatalf("restored new record: %v", err)
	}
	regs, err := env.Engine.Repo.ListAuditoria(env.Ctx, repo.AuditoriaFilters{Acao: "RESTORE"})
	if err != nil || len(regs) != 1 {
		t.Fatalf("restore audit: %v (%d)", err, len(regs))
	}
}
