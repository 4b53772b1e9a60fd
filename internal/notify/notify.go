package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"demandas/internal/domain"
	"demandas/internal/repo"
)

// Notification type tags pushed to recipients.
const (
	TipoNovaTarefa       = "nova_tarefa"
	TipoDemandaAprovada  = "demanda_aprovada"
	TipoDemandaReprovada = "demanda_reprovada"
)

// Sink receives best-effort real-time pushes scoped to one recipient.
// Delivery is not guaranteed or retried; the persisted row is the durable
// source of truth.
type Sink interface {
	Push(usuarioID int64, payload any)
}

// Dispatcher persists notifications and fans them out to the live sink.
type Dispatcher struct {
	Repo repo.Repo
	Sink Sink
	Log  *zap.Logger
	Now  func() time.Time
}

func (d Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Dispatcher) logger() *zap.Logger {
	if d.Log != nil {
		return d.Log
	}
	return zap.NewNop()
}

// Notify persists a notification row and pushes it to the recipient's room.
// The push never blocks or fails the persisting write.
func (d Dispatcher) Notify(ctx context.Context, usuarioID int64, tipo, titulo, mensagem, demandaTag string, prioritaria bool) (int64, error) {
	n := domain.Notificacao{
		UsuarioID:   usuarioID,
		Tipo:        tipo,
		Titulo:      titulo,
		Mensagem:    mensagem,
		DemandaTag:  demandaTag,
		Prioritaria: prioritaria,
		DataCriacao: d.now().UTC().Format(time.RFC3339),
	}
	id, err := d.Repo.InsertNotificacao(ctx, n)
	if err != nil {
		return 0, err
	}
	n.ID = id
	if d.Sink != nil {
		d.Sink.Push(usuarioID, n)
	}
	return id, nil
}

// NotifyBestEffort is Notify for side-effect paths where a persistence
// failure must not surface to the caller.
func (d Dispatcher) NotifyBestEffort(ctx context.Context, usuarioID int64, tipo, titulo, mensagem, demandaTag string, prioritaria bool) {
	if _, err := d.Notify(ctx, usuarioID, tipo, titulo, mensagem, demandaTag, prioritaria); err != nil {
		d.logger().Error("notification dispatch failed",
			zap.Int64("usuario_id", usuarioID),
			zap.String("tipo", tipo),
			zap.Error(err))
	}
}
