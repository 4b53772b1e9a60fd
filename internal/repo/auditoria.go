package repo

import (
	"context"
	"database/sql"
	"strings"

	"demandas/internal/domain"
)

// AuditoriaFilters narrows ListAuditoria.
type AuditoriaFilters struct {
	Acao       string
	Tabela     string
	RegistroID int64
	Limit      int
}

func (r Repo) ListAuditoria(ctx context.Context, f AuditoriaFilters) ([]domain.RegistroAuditoria, error) {
	var clauses []string
	var args []any
	if f.Acao != "" {
		clauses = append(clauses, "acao=?")
		args = append(args, f.Acao)
	}
	if f.Tabela != "" {
		clauses = append(clauses, "tabela=?")
		args = append(args, f.Tabela)
	}
	if f.RegistroID != 0 {
		clauses = append(clauses, "registro_id=?")
		args = append(args, f.RegistroID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,acao,tabela,registro_id,dados_antes,dados_depois,usuario_id,origem,data FROM auditoria ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.RegistroAuditoria{}
	for rows.Next() {
		var a domain.RegistroAuditoria
		var registroID sql.NullInt64
		var usuarioID, origem sql.NullString
		if err := rows.Scan(&a.ID, &a.Acao, &a.Tabela, &registroID, &a.DadosAntes, &a.DadosDepois, &usuarioID, &origem, &a.Data); err != nil {
			return nil, err
		}
		a.RegistroID = registroID.Int64
		a.UsuarioID = usuarioID.String
		a.Origem = origem.String
		res = append(res, a)
	}
	return res, rows.Err()
}
