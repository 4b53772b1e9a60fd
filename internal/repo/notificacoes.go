package repo

import (
	"context"

	"demandas/internal/domain"
)

func (r Repo) InsertNotificacao(ctx context.Context, n domain.Notificacao) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO notificacoes(usuario_id,tipo,titulo,mensagem,demanda_tag,prioritaria,lida,data_criacao) VALUES (?,?,?,?,?,?,?,?)`,
		n.UsuarioID, n.Tipo, n.Titulo, n.Mensagem, nullable(n.DemandaTag), boolInt(n.Prioritaria), boolInt(n.Lida), n.DataCriacao)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// NotificacaoFilters narrows ListNotificacoes.
type NotificacaoFilters struct {
	UsuarioID  int64
	OnlyUnread bool
	Limit      int
}

func (r Repo) ListNotificacoes(ctx context.Context, f NotificacaoFilters) ([]domain.Notificacao, error) {
	query := `SELECT id,usuario_id,tipo,titulo,mensagem,COALESCE(demanda_tag,''),prioritaria,lida,data_criacao FROM notificacoes WHERE usuario_id=?`
	args := []any{f.UsuarioID}
	if f.OnlyUnread {
		query += ` AND lida=0`
	}
	query += ` ORDER BY data_criacao DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Notificacao{}
	for rows.Next() {
		var n domain.Notificacao
		var prioritaria, lida int
		if err := rows.Scan(&n.ID, &n.UsuarioID, &n.Tipo, &n.Titulo, &n.Mensagem, &n.DemandaTag, &prioritaria, &lida, &n.DataCriacao); err != nil {
			return nil, err
		}
		n.Prioritaria = prioritaria != 0
		n.Lida = lida != 0
		res = append(res, n)
	}
	return res, rows.Err()
}

// SetNotificacaoLida toggles the read flag. Scoped to the owning recipient.
func (r Repo) SetNotificacaoLida(ctx context.Context, id, usuarioID int64, lida bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notificacoes SET lida=? WHERE id=? AND usuario_id=?`, boolInt(lida), id, usuarioID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNotificacao(ctx context.Context, id, usuarioID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notificacoes WHERE id=? AND usuario_id=?`, id, usuarioID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNotificacoesUsuario removes every notification owned by usuarioID and
// returns how many were deleted.
func (r Repo) DeleteNotificacoesUsuario(ctx context.Context, usuarioID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notificacoes WHERE usuario_id=?`, usuarioID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
