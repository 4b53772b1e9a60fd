// Package server exposes the demandas HTTP API. Handlers are registered
// through huma on a chi router; every response body carries a success flag
// and errors collapse into {success:false, error}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"demandas/internal/backup"
	"demandas/internal/domain"
	"demandas/internal/engine"
	"demandas/internal/realtime"
	"demandas/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Hub      *realtime.Hub
	BasePath string
	Auth     AuthConfig
}

// apiError models the error envelope.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Success: false, Message: message}
}

// New returns an HTTP handler exposing the demandas API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Every error, huma's own validation errors included, uses the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		if len(errs) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, errs[0].Error())
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Demandas API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerDemandas(group, cfg.Engine)
	registerImport(group, cfg.Engine)
	registerBackups(group, cfg.Engine)
	registerNotificacoes(group, cfg.Engine)
	registerAuditoria(group, cfg.Engine)
	registerWebsocket(router, basePath, cfg.Hub)

	return router, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, ve.Msg)
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusBadRequest, ce.Msg)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "registro não encontrado")
	}
	return newAPIError(http.StatusInternalServerError, "erro interno")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"success": true, "status": "ok"}}, nil
	})
}

func registerDemandas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-demanda",
		Method:        http.MethodPost,
		Path:          "/demandas",
		Summary:       "Create demanda",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateDemandaRequest `json:"body"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDemanda(ctx, engine.CreateOptions{
			Tag:           input.Body.Tag,
			NomeDemanda:   input.Body.NomeDemanda,
			Descricao:     input.Body.Descricao,
			Categoria:     input.Body.Categoria,
			Prioridade:    input.Body.Prioridade,
			Complexidade:  input.Body.Complexidade,
			Localizacao:   input.Body.Localizacao,
			DataLimite:    input.Body.DataLimite,
			FuncionarioID: input.Body.FuncionarioID,
			Atribuidos:    input.Body.Atribuidos,
			AnexosCriacao: input.Body.AnexosCriacao,
			IsRotina:      input.Body.IsRotina,
			DiasSemana:    input.Body.DiasSemana,
			ActorID:       usuarioID,
			Origin:        "api",
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-demandas",
		Method:      http.MethodGet,
		Path:        "/demandas",
		Summary:     "List demandas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status        string `query:"status"`
		FuncionarioID int64  `query:"funcionarioId"`
		Categoria     string `query:"categoria"`
		Prioridade    string `query:"prioridade"`
		Mes           int    `query:"mes" minimum:"0" maximum:"12"`
		Ano           int    `query:"ano"`
		Limit         int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body DemandaListResponse `json:"body"`
	}, error) {
		items, err := e.ListDemandas(ctx, repo.DemandaFilters{
			Status:        input.Status,
			FuncionarioID: input.FuncionarioID,
			Categoria:     input.Categoria,
			Prioridade:    input.Prioridade,
			Mes:           input.Mes,
			Ano:           input.Ano,
			Limit:         input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaListResponse `json:"body"`
		}{Body: DemandaListResponse{Success: true, Total: len(items), Demandas: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-demandas",
		Method:      http.MethodGet,
		Path:        "/demandas/search",
		Summary:     "Search demandas by name, description or tag",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Q     string `query:"q"`
		Limit int    `query:"limit" minimum:"0" maximum:"50"`
	}) (*struct {
		Body DemandaListResponse `json:"body"`
	}, error) {
		items, err := e.SearchDemandas(ctx, input.Q, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaListResponse `json:"body"`
		}{Body: DemandaListResponse{Success: true, Total: len(items), Demandas: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-demanda-by-tag",
		Method:      http.MethodGet,
		Path:        "/demandas/tag/{tag}",
		Summary:     "Get demanda by tag",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Tag string `path:"tag"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		d, err := e.GetDemandaByTag(ctx, input.Tag)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-demanda",
		Method:      http.MethodGet,
		Path:        "/demandas/{id}",
		Summary:     "Get demanda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		d, err := e.GetDemanda(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-demanda",
		Method:      http.MethodPut,
		Path:        "/demandas/{id}",
		Summary:     "Update demanda",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body UpdateDemandaRequest `json:"body"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.UpdateDemanda(ctx, engine.UpdateOptions{
			ID:               input.ID,
			NomeDemanda:      input.Body.NomeDemanda,
			Descricao:        input.Body.Descricao,
			Categoria:        input.Body.Categoria,
			Prioridade:       input.Body.Prioridade,
			Complexidade:     input.Body.Complexidade,
			Localizacao:      input.Body.Localizacao,
			Status:           input.Body.Status,
			FuncionarioID:    input.Body.FuncionarioID,
			DataLimite:       input.Body.DataLimite,
			DataConclusao:    input.Body.DataConclusao,
			ComentarioGestor: input.Body.ComentarioGestor,
			ComentarioRecusa: input.Body.ComentarioRecusa,
			Atribuidos:       input.Body.Atribuidos,
			Comentarios:      input.Body.Comentarios,
			AnexosCriacao:    input.Body.AnexosCriacao,
			AnexosResolucao:  input.Body.AnexosResolucao,
			IsRotina:         input.Body.IsRotina,
			DiasSemana:       input.Body.DiasSemana,
			ActorID:          usuarioID,
			Origin:           "api",
			Force:            input.Body.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-demanda",
		Method:      http.MethodDelete,
		Path:        "/demandas/{id}",
		Summary:     "Delete demanda",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDemanda(ctx, input.ID, usuarioID, "api"); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Success: true, ID: input.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reassign-demanda",
		Method:      http.MethodPost,
		Path:        "/demandas/{id}/reatribuir",
		Summary:     "Reassign demanda",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64           `path:"id"`
		Body ReassignRequest `json:"body"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.Reassign(ctx, input.ID, input.Body.Atribuido, usuarioID, "api")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "extend-demanda-deadline",
		Method:      http.MethodPost,
		Path:        "/demandas/{id}/prorrogar",
		Summary:     "Extend demanda deadline",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64                 `path:"id"`
		Body ExtendDeadlineRequest `json:"body"`
	}) (*struct {
		Body DemandaResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.ExtendDeadline(ctx, input.ID, input.Body.NovaDataLimite, usuarioID, "api")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandaResponse `json:"body"`
		}{Body: DemandaResponse{Success: true, Demanda: d}}, nil
	})
}

func registerImport(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "import-demandas",
		Method:      http.MethodPost,
		Path:        "/demandas/importar",
		Summary:     "Batch import demandas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ImportRequest `json:"body"`
	}) (*struct {
		Body ImportResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.BatchImport(ctx, input.Body.Demandas, usuarioID, "api")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ImportResponse `json:"body"`
		}{Body: ImportResponse{Success: true, ImportResult: res}}, nil
	})
}

func registerBackups(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-backup",
		Method:        http.MethodPost,
		Path:          "/backups",
		Summary:       "Take a manual backup snapshot",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BackupResponse `json:"body"`
	}, error) {
		if e.Backups == nil {
			return nil, newAPIError(http.StatusInternalServerError, "backups não configurados")
		}
		name, err := e.Backups.Snapshot(ctx, backup.KindManual)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BackupResponse `json:"body"`
		}{Body: BackupResponse{Success: true, Arquivo: name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-backups",
		Method:      http.MethodGet,
		Path:        "/backups",
		Summary:     "List backup snapshots",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BackupListResponse `json:"body"`
	}, error) {
		if e.Backups == nil {
			return nil, newAPIError(http.StatusInternalServerError, "backups não configurados")
		}
		infos, err := e.Backups.List()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BackupListResponse `json:"body"`
		}{Body: BackupListResponse{Success: true, Backups: infos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-backup",
		Method:      http.MethodPost,
		Path:        "/backups/restaurar",
		Summary:     "Restore demandas from a snapshot file or inline records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RestoreRequest `json:"body"`
	}) (*struct {
		Body RestoreResponse `json:"body"`
	}, error) {
		usuarioID, authErr := usuarioIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		records := input.Body.Registros
		if input.Body.Arquivo != "" {
			if e.Backups == nil {
				return nil, newAPIError(http.StatusInternalServerError, "backups não configurados")
			}
			env, err := e.Backups.ReadSnapshot(input.Body.Arquivo)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, fmt.Sprintf("não foi possível ler o backup %s", input.Body.Arquivo))
			}
			records = demandasToRecords(env.Demandas)
		}
		res, err := e.Restore(ctx, records, usuarioID, "api")
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RestoreResponse `json:"body"`
		}{Body: RestoreResponse{Success: true, Arquivo: input.Body.Arquivo, RestoreResult: res}}, nil
	})
}

// demandasToRecords round-trips typed demandas into the generic record form
// the restore pipeline normalizes.
func demandasToRecords(ds []domain.Demanda) []map[string]any {
	records := make([]map[string]any, 0, len(ds))
	for _, d := range ds {
		data, err := json.Marshal(d)
		if err != nil {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		records = append(records, m)
	}
	return records
}

func registerNotificacoes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notificacoes",
		Method:      http.MethodGet,
		Path:        "/notificacoes",
		Summary:     "List notifications for a user",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UsuarioID int64 `query:"usuarioId" required:"true"`
		NaoLidas  bool  `query:"naoLidas"`
		Limit     int   `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body NotificacaoListResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListNotificacoes(ctx, repo.NotificacaoFilters{
			UsuarioID:  input.UsuarioID,
			OnlyUnread: input.NaoLidas,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificacaoListResponse `json:"body"`
		}{Body: NotificacaoListResponse{Success: true, Total: len(items), Notificacoes: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-notificacao-lida",
		Method:      http.MethodPut,
		Path:        "/notificacoes/{id}/lida",
		Summary:     "Mark a notification read or unread",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID        int64                     `path:"id"`
		UsuarioID int64                     `query:"usuarioId" required:"true"`
		Body      SetNotificacaoLidaRequest `json:"body"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		if err := e.Repo.SetNotificacaoLida(ctx, input.ID, input.UsuarioID, input.Body.Lida); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Success: true, ID: input.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notificacao",
		Method:      http.MethodDelete,
		Path:        "/notificacoes/{id}",
		Summary:     "Delete one notification",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID        int64 `path:"id"`
		UsuarioID int64 `query:"usuarioId" required:"true"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		if err := e.Repo.DeleteNotificacao(ctx, input.ID, input.UsuarioID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Success: true, ID: input.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notificacoes",
		Method:      http.MethodDelete,
		Path:        "/notificacoes",
		Summary:     "Delete all notifications of a user",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UsuarioID int64 `query:"usuarioId" required:"true"`
	}) (*struct {
		Body NotificacoesDeletedResponse `json:"body"`
	}, error) {
		n, err := e.Repo.DeleteNotificacoesUsuario(ctx, input.UsuarioID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificacoesDeletedResponse `json:"body"`
		}{Body: NotificacoesDeletedResponse{Success: true, Deleted: n}}, nil
	})
}

func registerAuditoria(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-auditoria",
		Method:      http.MethodGet,
		Path:        "/auditoria",
		Summary:     "List audit records, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Acao       string `query:"acao"`
		Tabela     string `query:"tabela"`
		RegistroID int64  `query:"registroId"`
		Limit      int    `query:"limit" minimum:"0" maximum:"1000"`
	}) (*struct {
		Body AuditoriaListResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAuditoria(ctx, repo.AuditoriaFilters{
			Acao:       input.Acao,
			Tabela:     input.Tabela,
			RegistroID: input.RegistroID,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditoriaListResponse `json:"body"`
		}{Body: AuditoriaListResponse{Success: true, Total: len(items), Registros: items}}, nil
	})
}

// registerWebsocket mounts the live notification endpoint on the raw router;
// the upgrade handshake does not fit the huma request model.
func registerWebsocket(router chi.Router, basePath string, hub *realtime.Hub) {
	if hub == nil {
		return
	}
	router.Get(basePath+"/ws/{usuarioId}", func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "usuarioId")
		usuarioID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || usuarioID == 0 {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "usuarioId inválido"))
			return
		}
		hub.Serve(w, r, usuarioID)
	})
}
