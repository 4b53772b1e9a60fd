package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"demandas/internal/domain"
	"demandas/internal/normalize"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const demandaColumns = `id,tag,nome_demanda,descricao,categoria,prioridade,complexidade,localizacao,status,funcionario_id,criado_por,atualizado_por,atribuidos,comentario_gestor,comentario_recusa,comentarios_usuarios,anexos_criacao,anexos_resolucao,is_rotina,dias_semana,data_criacao,data_limite,data_conclusao,data_atualizacao`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDemanda maps one row to a normalized domain.Demanda. List columns are
// stored as JSON text and decoded tolerantly: bad data becomes an empty list.
func scanDemanda(row rowScanner) (domain.Demanda, error) {
	var d domain.Demanda
	var descricao, prioridade, complexidade, localizacao sql.NullString
	var criadoPor, atualizadoPor sql.NullString
	var atribuidos, comentarioGestor, comentarioRecusa, comentarios sql.NullString
	var anexosCriacao, anexosResolucao, diasSemana, dataConclusao sql.NullString
	var isRotina int
	err := row.Scan(&d.ID, &d.Tag, &d.NomeDemanda, &descricao, &d.Categoria, &prioridade, &complexidade, &localizacao,
		&d.Status, &d.FuncionarioID, &criadoPor, &atualizadoPor, &atribuidos, &comentarioGestor, &comentarioRecusa,
		&comentarios, &anexosCriacao, &anexosResolucao, &isRotina, &diasSemana, &d.DataCriacao, &d.DataLimite,
		&dataConclusao, &d.DataAtualizacao)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Descricao = descricao.String
	d.Prioridade = prioridade.String
	d.Complexidade = complexidade.String
	d.Localizacao = localizacao.String
	d.CriadoPor = criadoPor.String
	d.AtualizadoPor = atualizadoPor.String
	d.ComentarioGestor = comentarioGestor.String
	d.ComentarioRecusa = comentarioRecusa.String
	d.Atribuidos = normalize.Atribuidos(atribuidos.String)
	d.Comentarios = normalize.Comentarios(comentarios.String)
	d.AnexosCriacao = normalize.Anexos(anexosCriacao.String)
	d.AnexosResolucao = normalize.Anexos(anexosResolucao.String)
	d.DiasSemana = normalize.Ints(diasSemana.String)
	d.IsRotina = isRotina != 0
	if dataConclusao.Valid && dataConclusao.String != "" {
		d.DataConclusao = &dataConclusao.String
	}
	normalize.Apply(&d)
	return d, nil
}

func demandaArgs(d domain.Demanda) []any {
	return []any{
		d.Tag, d.NomeDemanda, nullable(d.Descricao), d.Categoria, nullable(d.Prioridade), nullable(d.Complexidade),
		nullable(d.Localizacao), d.Status, d.FuncionarioID, nullable(d.CriadoPor), nullable(d.AtualizadoPor),
		normalize.EncodeList(d.Atribuidos), nullable(d.ComentarioGestor), nullable(d.ComentarioRecusa),
		normalize.EncodeList(d.Comentarios), normalize.EncodeList(d.AnexosCriacao), normalize.EncodeList(d.AnexosResolucao),
		boolInt(d.IsRotina), normalize.EncodeList(d.DiasSemana), d.DataCriacao, d.DataLimite,
		nullableStringPtr(d.DataConclusao), d.DataAtualizacao,
	}
}

// InsertDemanda inserts a new row with a store-assigned id.
func (r Repo) InsertDemanda(ctx context.Context, tx *sql.Tx, d domain.Demanda) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO demandas(tag,nome_demanda,descricao,categoria,prioridade,complexidade,localizacao,status,funcionario_id,criado_por,atualizado_por,atribuidos,comentario_gestor,comentario_recusa,comentarios_usuarios,anexos_criacao,anexos_resolucao,is_rotina,dias_semana,data_criacao,data_limite,data_conclusao,data_atualizacao)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, demandaArgs(d)...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertDemanda inserts-or-replaces by explicit id. Used by batch import and
// restore, where the caller controls identity.
func (r Repo) UpsertDemanda(ctx context.Context, tx *sql.Tx, d domain.Demanda) error {
	args := append([]any{d.ID}, demandaArgs(d)...)
	_, err := tx.ExecContext(ctx, `INSERT INTO demandas(id,tag,nome_demanda,descricao,categoria,prioridade,complexidade,localizacao,status,funcionario_id,criado_por,atualizado_por,atribuidos,comentario_gestor,comentario_recusa,comentarios_usuarios,anexos_criacao,anexos_resolucao,is_rotina,dias_semana,data_criacao,data_limite,data_conclusao,data_atualizacao)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
tag=excluded.tag, nome_demanda=excluded.nome_demanda, descricao=excluded.descricao, categoria=excluded.categoria,
prioridade=excluded.prioridade, complexidade=excluded.complexidade, localizacao=excluded.localizacao,
status=excluded.status, funcionario_id=excluded.funcionario_id, criado_por=excluded.criado_por,
atualizado_por=excluded.atualizado_por, atribuidos=excluded.atribuidos, comentario_gestor=excluded.comentario_gestor,
comentario_recusa=excluded.comentario_recusa, comentarios_usuarios=excluded.comentarios_usuarios,
anexos_criacao=excluded.anexos_criacao, anexos_resolucao=excluded.anexos_resolucao, is_rotina=excluded.is_rotina,
dias_semana=excluded.dias_semana, data_criacao=excluded.data_criacao, data_limite=excluded.data_limite,
data_conclusao=excluded.data_conclusao, data_atualizacao=excluded.data_atualizacao`, args...)
	return err
}

// UpdateDemanda overwrites the full row by id.
func (r Repo) UpdateDemanda(ctx context.Context, tx *sql.Tx, d domain.Demanda) error {
	args := append(demandaArgs(d), d.ID)
	res, err := tx.ExecContext(ctx, `UPDATE demandas SET tag=?, nome_demanda=?, descricao=?, categoria=?, prioridade=?, complexidade=?, localizacao=?, status=?, funcionario_id=?, criado_por=?, atualizado_por=?, atribuidos=?, comentario_gestor=?, comentario_recusa=?, comentarios_usuarios=?, anexos_criacao=?, anexos_resolucao=?, is_rotina=?, dias_semana=?, data_criacao=?, data_limite=?, data_conclusao=?, data_atualizacao=? WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDemanda(ctx context.Context, id int64) (domain.Demanda, error) {
	return scanDemanda(r.DB.QueryRowContext(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE id=?`, id))
}

func (r Repo) GetDemandaTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Demanda, error) {
	return scanDemanda(tx.QueryRowContext(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE id=?`, id))
}

func (r Repo) GetDemandaByTag(ctx context.Context, tag string) (domain.Demanda, error) {
	return scanDemanda(r.DB.QueryRowContext(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE tag=?`, tag))
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TagExists reports whether tag is already taken.
func (r Repo) TagExists(ctx context.Context, tag string) (bool, error) {
	return tagExists(ctx, r.DB, tag)
}

// TagExistsTx is TagExists against an open transaction, so pending rows of
// the same batch are visible and the pooled connection is not touched while
// the write lock is held.
func (r Repo) TagExistsTx(ctx context.Context, tx *sql.Tx, tag string) (bool, error) {
	return tagExists(ctx, tx, tag)
}

func tagExists(ctx context.Context, q querier, tag string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM demandas WHERE tag=? LIMIT 1`, tag).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r Repo) DeleteDemanda(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM demandas WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DemandaFilters narrows ListDemandas. Zero values are ignored.
type DemandaFilters struct {
	Status        string
	FuncionarioID int64
	Categoria     string
	Prioridade    string
	Mes           int
	Ano           int
	Limit         int
}

func (r Repo) ListDemandas(ctx context.Context, f DemandaFilters) ([]domain.Demanda, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.FuncionarioID != 0 {
		clauses = append(clauses, "funcionario_id=?")
		args = append(args, f.FuncionarioID)
	}
	if f.Categoria != "" {
		clauses = append(clauses, "categoria=?")
		args = append(args, f.Categoria)
	}
	if f.Prioridade != "" {
		clauses = append(clauses, "prioridade=?")
		args = append(args, f.Prioridade)
	}
	if f.Mes != 0 {
		clauses = append(clauses, "CAST(strftime('%m', data_criacao) AS INTEGER)=?")
		args = append(args, f.Mes)
	}
	if f.Ano != 0 {
		clauses = append(clauses, "CAST(strftime('%Y', data_criacao) AS INTEGER)=?")
		args = append(args, f.Ano)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + demandaColumns + ` FROM demandas ` + where + ` ORDER BY data_criacao DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryDemandas(ctx, query, args...)
}

// SearchDemandas does a case-insensitive substring match over name,
// description and tag.
func (r Repo) SearchDemandas(ctx context.Context, q string, limit int) ([]domain.Demanda, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	query := `SELECT ` + demandaColumns + ` FROM demandas
WHERE lower(nome_demanda) LIKE ? OR lower(COALESCE(descricao,'')) LIKE ? OR lower(tag) LIKE ?
ORDER BY data_criacao DESC, id DESC LIMIT ?`
	return r.queryDemandas(ctx, query, pattern, pattern, pattern, limit)
}

// ListAllDemandas returns the full table in id order; used by the backup
// engine to build snapshots.
func (r Repo) ListAllDemandas(ctx context.Context) ([]domain.Demanda, error) {
	return r.queryDemandas(ctx, `SELECT `+demandaColumns+` FROM demandas ORDER BY id ASC`)
}

func (r Repo) queryDemandas(ctx context.Context, query string, args ...any) ([]domain.Demanda, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Demanda{}
	for rows.Next() {
		d, err := scanDemanda(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
