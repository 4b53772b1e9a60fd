package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"demandas/internal/audit"
	"demandas/internal/backup"
	"demandas/internal/domain"
	"demandas/internal/normalize"
	"demandas/internal/notify"
	"demandas/internal/repo"
)

const (
	searchMinLength  = 2
	searchMaxResults = 50
)

// Engine owns the demanda lifecycle: validation, normalization, status
// transitions and the audit/notification/backup side effects around them.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Audit   audit.Recorder
	Notify  notify.Dispatcher
	Backups *backup.Engine
	Log     *zap.Logger
	Now     func() time.Time
}

func New(db *sql.DB, backups *backup.Engine, sink notify.Sink, log *zap.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		Audit:   audit.Recorder{DB: db, Log: log},
		Notify:  notify.Dispatcher{Repo: r, Sink: sink, Log: log},
		Backups: backups,
		Log:     log,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// transitions is the closed status machine. Writing the same status again is
// always allowed (no-op transition); anything else must be listed here.
var transitions = map[string][]string{
	domain.StatusPendente:           {domain.StatusAprovada, domain.StatusReprovada, domain.StatusAtribuidaPendente},
	domain.StatusAtribuidaPendente:  {domain.StatusPendente, domain.StatusAprovada, domain.StatusReprovada, domain.StatusFinalizadoPendente},
	domain.StatusAprovada:           {domain.StatusAtribuidaPendente, domain.StatusFinalizadoPendente, domain.StatusReprovada},
	domain.StatusFinalizadoPendente: {domain.StatusAprovada, domain.StatusReprovada},
	domain.StatusReprovada:          {domain.StatusPendente, domain.StatusAtribuidaPendente},
}

func ensureStatusTransition(oldStatus, newStatus string, force bool) error {
	if !domain.KnownStatus(newStatus) {
		return validationf("status desconhecido: %s", newStatus)
	}
	if force || oldStatus == newStatus {
		return nil
	}
	// Rows that predate the closed status set may carry anything; allow them
	// back onto the known map.
	if !domain.KnownStatus(oldStatus) {
		return nil
	}
	for _, allowed := range transitions[oldStatus] {
		if allowed == newStatus {
			return nil
		}
	}
	return validationf("transição de status inválida: %s -> %s", oldStatus, newStatus)
}

func validateDemanda(d domain.Demanda) error {
	if len(strings.TrimSpace(d.NomeDemanda)) < 3 {
		return validationf("nomeDemanda deve ter pelo menos 3 caracteres")
	}
	if strings.TrimSpace(d.Categoria) == "" {
		return validationf("categoria é obrigatória")
	}
	if strings.TrimSpace(d.DataLimite) == "" {
		return validationf("dataLimite é obrigatória")
	}
	return nil
}

// generateTag produces a unique DEM-<digits> tag. When tx is non-nil the
// lookup runs inside it, so rows pending in the same batch count as taken.
// seen tracks tags assigned earlier in the batch before they hit the db.
func (e Engine) generateTag(ctx context.Context, tx *sql.Tx, seen map[string]bool) (string, error) {
	base := e.now().UnixMilli()
	for i := int64(0); ; i++ {
		tag := fmt.Sprintf("DEM-%d", base+i)
		if seen[tag] {
			continue
		}
		var exists bool
		var err error
		if tx != nil {
			exists, err = e.Repo.TagExistsTx(ctx, tx, tag)
		} else {
			exists, err = e.Repo.TagExists(ctx, tag)
		}
		if err != nil {
			return "", err
		}
		if !exists {
			return tag, nil
		}
	}
}

// CreateOptions are parameters for submitting a demanda.
type CreateOptions struct {
	Tag           string
	NomeDemanda   string
	Descricao     string
	Categoria     string
	Prioridade    string
	Complexidade  string
	Localizacao   string
	DataLimite    string
	FuncionarioID int64
	Atribuidos    []domain.Atribuido
	AnexosCriacao []domain.Anexo
	IsRotina      bool
	DiasSemana    []int
	ActorID       string
	Origin        string
}

func (e Engine) CreateDemanda(ctx context.Context, opts CreateOptions) (domain.Demanda, error) {
	now := e.now().UTC().Format(time.RFC3339)
	d := domain.Demanda{
		Tag:             opts.Tag,
		NomeDemanda:     strings.TrimSpace(opts.NomeDemanda),
		Descricao:       opts.Descricao,
		Categoria:       opts.Categoria,
		Prioridade:      opts.Prioridade,
		Complexidade:    opts.Complexidade,
		Localizacao:     opts.Localizacao,
		Status:          domain.StatusPendente,
		FuncionarioID:   opts.FuncionarioID,
		CriadoPor:       opts.ActorID,
		AtualizadoPor:   opts.ActorID,
		Atribuidos:      opts.Atribuidos,
		AnexosCriacao:   opts.AnexosCriacao,
		IsRotina:        opts.IsRotina,
		DiasSemana:      opts.DiasSemana,
		DataCriacao:     now,
		DataLimite:      opts.DataLimite,
		DataAtualizacao: now,
	}
	normalize.Apply(&d)
	if err := validateDemanda(d); err != nil {
		return domain.Demanda{}, err
	}
	if d.Tag == "" {
		tag, err := e.generateTag(ctx, nil, nil)
		if err != nil {
			return domain.Demanda{}, err
		}
		d.Tag = tag
	} else {
		exists, err := e.Repo.TagExists(ctx, d.Tag)
		if err != nil {
			return domain.Demanda{}, err
		}
		if exists {
			return domain.Demanda{}, ConflictError{Msg: fmt.Sprintf("tag %s já existe", d.Tag)}
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertDemanda(ctx, tx, d)
	if err != nil {
		return domain.Demanda{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demanda{}, err
	}
	d.ID = id

	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionCreate, Table: "demandas", RecordID: d.ID,
		After: d, UsuarioID: opts.ActorID, Origin: opts.Origin,
	})
	for _, a := range d.Atribuidos {
		if a.ID == 0 || a.ID == d.FuncionarioID {
			continue
		}
		e.Notify.NotifyBestEffort(ctx, a.ID, notify.TipoNovaTarefa, "Nova tarefa atribuída",
			fmt.Sprintf("Você foi atribuído à demanda %s: %s", d.Tag, d.NomeDemanda), d.Tag, false)
	}
	return d, nil
}

func (e Engine) GetDemanda(ctx context.Context, id int64) (domain.Demanda, error) {
	return e.Repo.GetDemanda(ctx, id)
}

func (e Engine) GetDemandaByTag(ctx context.Context, tag string) (domain.Demanda, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return domain.Demanda{}, validationf("tag é obrigatória")
	}
	return e.Repo.GetDemandaByTag(ctx, tag)
}

func (e Engine) ListDemandas(ctx context.Context, f repo.DemandaFilters) ([]domain.Demanda, error) {
	return e.Repo.ListDemandas(ctx, f)
}

func (e Engine) SearchDemandas(ctx context.Context, q string, limit int) ([]domain.Demanda, error) {
	q = strings.TrimSpace(q)
	if len(q) < searchMinLength {
		return nil, validationf("busca requer pelo menos %d caracteres", searchMinLength)
	}
	if limit <= 0 || limit > searchMaxResults {
		limit = searchMaxResults
	}
	return e.Repo.SearchDemandas(ctx, q, limit)
}

// UpdateOptions is a partial payload merged onto the stored demanda. Nil
// fields are left untouched.
type UpdateOptions struct {
	ID               int64
	NomeDemanda      *string
	Descricao        *string
	Categoria        *string
	Prioridade       *string
	Complexidade     *string
	Localizacao      *string
	Status           *string
	FuncionarioID    *int64
	DataLimite       *string
	DataConclusao    *string
	ComentarioGestor *string
	ComentarioRecusa *string
	Atribuidos       *[]domain.Atribuido
	Comentarios      *[]domain.Comentario
	AnexosCriacao    *[]domain.Anexo
	AnexosResolucao  *[]domain.Anexo
	IsRotina         *bool
	DiasSemana       *[]int
	ActorID          string
	Origin           string
	Force            bool
}

func (e Engine) UpdateDemanda(ctx context.Context, opts UpdateOptions) (domain.Demanda, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()
	// Read inside the write transaction so the before snapshot is exactly the
	// row being replaced.
	before, err := e.Repo.GetDemandaTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Demanda{}, err
	}
	d := before
	if opts.NomeDemanda != nil {
		d.NomeDemanda = strings.TrimSpace(*opts.NomeDemanda)
	}
	if opts.Descricao != nil {
		d.Descricao = *opts.Descricao
	}
	if opts.Categoria != nil {
		d.Categoria = *opts.Categoria
	}
	if opts.Prioridade != nil {
		d.Prioridade = *opts.Prioridade
	}
	if opts.Complexidade != nil {
		d.Complexidade = *opts.Complexidade
	}
	if opts.Localizacao != nil {
		d.Localizacao = *opts.Localizacao
	}
	if opts.FuncionarioID != nil {
		d.FuncionarioID = *opts.FuncionarioID
	}
	if opts.DataLimite != nil {
		d.DataLimite = *opts.DataLimite
	}
	if opts.DataConclusao != nil {
		if *opts.DataConclusao == "" {
			d.DataConclusao = nil
		} else {
			d.DataConclusao = opts.DataConclusao
		}
	}
	if opts.ComentarioGestor != nil {
		d.ComentarioGestor = *opts.ComentarioGestor
	}
	if opts.ComentarioRecusa != nil {
		d.ComentarioRecusa = *opts.ComentarioRecusa
	}
	if opts.Atribuidos != nil {
		d.Atribuidos = *opts.Atribuidos
	}
	if opts.Comentarios != nil {
		d.Comentarios = *opts.Comentarios
	}
	if opts.AnexosCriacao != nil {
		d.AnexosCriacao = *opts.AnexosCriacao
	}
	if opts.AnexosResolucao != nil {
		d.AnexosResolucao = *opts.AnexosResolucao
	}
	if opts.IsRotina != nil {
		d.IsRotina = *opts.IsRotina
	}
	if opts.DiasSemana != nil {
		d.DiasSemana = *opts.DiasSemana
	}
	if opts.Status != nil && *opts.Status != "" {
		if err := ensureStatusTransition(before.Status, *opts.Status, opts.Force); err != nil {
			return domain.Demanda{}, err
		}
		d.Status = *opts.Status
		if d.Status == domain.StatusFinalizadoPendente && d.DataConclusao == nil {
			conclusao := e.now().UTC().Format(time.RFC3339)
			d.DataConclusao = &conclusao
		}
	}
	normalize.Apply(&d)
	if err := validateDemanda(d); err != nil {
		return domain.Demanda{}, err
	}
	d.AtualizadoPor = opts.ActorID
	d.DataAtualizacao = e.now().UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateDemanda(ctx, tx, d); err != nil {
		return domain.Demanda{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demanda{}, err
	}
	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionUpdate, Table: "demandas", RecordID: d.ID,
		Before: before, After: d, UsuarioID: opts.ActorID, Origin: opts.Origin,
	})
	e.statusSideEffects(ctx, before.Status, d)
	return d, nil
}

func (e Engine) snapshot(ctx context.Context, kind string) {
	if e.Backups != nil {
		e.Backups.SnapshotBestEffort(ctx, kind)
	}
}

// statusSideEffects dispatches the notification and backup side effects owed
// when a demanda arrives at a new status. Runs after the primary commit.
func (e Engine) statusSideEffects(ctx context.Context, oldStatus string, d domain.Demanda) {
	if d.Status == oldStatus {
		return
	}
	// A demanda may have no owner; there is nobody to notify then, but the
	// snapshot is still owed.
	if d.FuncionarioID == 0 {
		switch d.Status {
		case domain.StatusAprovada, domain.StatusReprovada:
			e.snapshot(ctx, backup.KindStatusChange)
		}
		return
	}
	switch d.Status {
	case domain.StatusAprovada:
		e.Notify.NotifyBestEffort(ctx, d.FuncionarioID, notify.TipoDemandaAprovada, "Demanda Aprovada",
			fmt.Sprintf("Sua demanda %s foi aprovada", d.Tag), d.Tag, false)
		e.snapshot(ctx, backup.KindStatusChange)
	case domain.StatusReprovada:
		e.Notify.NotifyBestEffort(ctx, d.FuncionarioID, notify.TipoDemandaReprovada, "Demanda Reprovada",
			fmt.Sprintf("Sua demanda %s foi reprovada", d.Tag), d.Tag, true)
		e.snapshot(ctx, backup.KindStatusChange)
	}
}

func (e Engine) DeleteDemanda(ctx context.Context, id int64, actorID, origin string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	before, err := e.Repo.GetDemandaTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteDemanda(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionDelete, Table: "demandas", RecordID: id,
		Before: before, UsuarioID: actorID, Origin: origin,
	})
	e.snapshot(ctx, backup.KindDelete)
	return nil
}

// Reassign appends novo to the assignee list (no duplicate by id), forces the
// status to atribuida_pendente_aceitacao and leaves a dated note on the
// manager comment field.
func (e Engine) Reassign(ctx context.Context, id int64, novo domain.Atribuido, actorID, origin string) (domain.Demanda, error) {
	if novo.ID == 0 {
		return domain.Demanda{}, validationf("atribuido.id é obrigatório")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()
	before, err := e.Repo.GetDemandaTx(ctx, tx, id)
	if err != nil {
		return domain.Demanda{}, err
	}
	d := before
	already := false
	for _, a := range d.Atribuidos {
		if a.ID == novo.ID {
			already = true
			break
		}
	}
	if !already {
		d.Atribuidos = append(append([]domain.Atribuido{}, d.Atribuidos...), novo)
	}
	now := e.now()
	d.Status = domain.StatusAtribuidaPendente
	nome := novo.Nome
	if nome == "" {
		nome = fmt.Sprintf("usuário %d", novo.ID)
	}
	d.ComentarioGestor = appendNote(d.ComentarioGestor, now, fmt.Sprintf("Demanda reatribuída para %s", nome))
	d.AtualizadoPor = actorID
	d.DataAtualizacao = now.UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateDemanda(ctx, tx, d); err != nil {
		return domain.Demanda{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demanda{}, err
	}
	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionReassign, Table: "demandas", RecordID: d.ID,
		Before: before, After: d, UsuarioID: actorID, Origin: origin,
	})
	if !already {
		e.Notify.NotifyBestEffort(ctx, novo.ID, notify.TipoNovaTarefa, "Nova tarefa atribuída",
			fmt.Sprintf("Você foi atribuído à demanda %s: %s", d.Tag, d.NomeDemanda), d.Tag, false)
	}
	return d, nil
}

// ExtendDeadline rewrites the deadline and leaves a dated note on the manager
// comment field.
func (e Engine) ExtendDeadline(ctx context.Context, id int64, novaData, actorID, origin string) (domain.Demanda, error) {
	if strings.TrimSpace(novaData) == "" {
		return domain.Demanda{}, validationf("dataLimite é obrigatória")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demanda{}, err
	}
	defer tx.Rollback()
	before, err := e.Repo.GetDemandaTx(ctx, tx, id)
	if err != nil {
		return domain.Demanda{}, err
	}
	d := before
	now := e.now()
	d.ComentarioGestor = appendNote(d.ComentarioGestor, now,
		fmt.Sprintf("Prazo prorrogado de %s para %s", before.DataLimite, novaData))
	d.DataLimite = novaData
	d.AtualizadoPor = actorID
	d.DataAtualizacao = now.UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateDemanda(ctx, tx, d); err != nil {
		return domain.Demanda{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demanda{}, err
	}
	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionExtendDeadline, Table: "demandas", RecordID: d.ID,
		Before: before, After: d, UsuarioID: actorID, Origin: origin,
	})
	return d, nil
}

func appendNote(existing string, when time.Time, note string) string {
	line := fmt.Sprintf("[%s] %s", when.UTC().Format("02/01/2006"), note)
	if strings.TrimSpace(existing) == "" {
		return line
	}
	return existing + "\n" + line
}

func errorMessage(err error) string {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}
	if errors.Is(err, repo.ErrNotFound) {
		return "registro não encontrado"
	}
	return err.Error()
}
