package server

import (
	"demandas/internal/backup"
	"demandas/internal/domain"
	"demandas/internal/engine"
)

// Request payloads

type CreateDemandaRequest struct {
	Tag           string             `json:"tag,omitempty"`
	NomeDemanda   string             `json:"nomeDemanda"`
	Descricao     string             `json:"descricao,omitempty"`
	Categoria     string             `json:"categoria"`
	Prioridade    string             `json:"prioridade,omitempty"`
	Complexidade  string             `json:"complexidade,omitempty"`
	Localizacao   string             `json:"localizacao,omitempty"`
	DataLimite    string             `json:"dataLimite"`
	FuncionarioID int64              `json:"funcionarioId,omitempty"`
	Atribuidos    []domain.Atribuido `json:"atribuidos,omitempty"`
	AnexosCriacao []domain.Anexo     `json:"anexosCriacao,omitempty"`
	IsRotina      bool               `json:"isRotina,omitempty"`
	DiasSemana    []int              `json:"diasSemana,omitempty"`
}

type UpdateDemandaRequest struct {
	NomeDemanda      *string              `json:"nomeDemanda,omitempty"`
	Descricao        *string              `json:"descricao,omitempty"`
	Categoria        *string              `json:"categoria,omitempty"`
	Prioridade       *string              `json:"prioridade,omitempty"`
	Complexidade     *string              `json:"complexidade,omitempty"`
	Localizacao      *string              `json:"localizacao,omitempty"`
	Status           *string              `json:"status,omitempty"`
	FuncionarioID    *int64               `json:"funcionarioId,omitempty"`
	DataLimite       *string              `json:"dataLimite,omitempty"`
	DataConclusao    *string              `json:"dataConclusao,omitempty"`
	ComentarioGestor *string              `json:"comentarioGestor,omitempty"`
	ComentarioRecusa *string              `json:"comentarioRecusa,omitempty"`
	Atribuidos       *[]domain.Atribuido  `json:"atribuidos,omitempty"`
	Comentarios      *[]domain.Comentario `json:"comentariosUsuarios,omitempty"`
	AnexosCriacao    *[]domain.Anexo      `json:"anexosCriacao,omitempty"`
	AnexosResolucao  *[]domain.Anexo      `json:"anexosResolucao,omitempty"`
	IsRotina         *bool                `json:"isRotina,omitempty"`
	DiasSemana       *[]int               `json:"diasSemana,omitempty"`
	Force            bool                 `json:"force,omitempty"`
}

type ReassignRequest struct {
	Atribuido domain.Atribuido `json:"atribuido"`
}

type ExtendDeadlineRequest struct {
	NovaDataLimite string `json:"novaDataLimite"`
}

type ImportRequest struct {
	Demandas []map[string]any `json:"demandas"`
}

type RestoreRequest struct {
	Arquivo   string           `json:"arquivo,omitempty"`
	Registros []map[string]any `json:"registros,omitempty"`
}

type SetNotificacaoLidaRequest struct {
	Lida bool `json:"lida"`
}

// Response payloads. Every success body carries success:true so clients can
// branch on one field regardless of endpoint.

type DemandaResponse struct {
	Success bool           `json:"success"`
	Demanda domain.Demanda `json:"demanda"`
}

type DemandaListResponse struct {
	Success  bool             `json:"success"`
	Total    int              `json:"total"`
	Demandas []domain.Demanda `json:"demandas"`
}

type DeleteResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

type ImportResponse struct {
	Success bool `json:"success"`
	engine.ImportResult
}

type RestoreResponse struct {
	Success bool   `json:"success"`
	Arquivo string `json:"arquivo,omitempty"`
	engine.RestoreResult
}

type BackupResponse struct {
	Success bool   `json:"success"`
	Arquivo string `json:"arquivo"`
}

type BackupListResponse struct {
	Success bool          `json:"success"`
	Backups []backup.Info `json:"backups"`
}

type NotificacaoListResponse struct {
	Success      bool                 `json:"success"`
	Total        int                  `json:"total"`
	Notificacoes []domain.Notificacao `json:"notificacoes"`
}

type NotificacoesDeletedResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

type AuditoriaListResponse struct {
	Success   bool                       `json:"success"`
	Total     int                        `json:"total"`
	Registros []domain.RegistroAuditoria `json:"registros"`
}
