package domain

// Statuses a demanda can hold. The stored column is plain text for
// compatibility with imported data, but the engine only writes these values.
const (
	StatusPendente           = "pendente"
	StatusAprovada           = "aprovada"
	StatusReprovada          = "reprovada"
	StatusFinalizadoPendente = "finalizado_pendente_aprovacao"
	StatusAtribuidaPendente  = "atribuida_pendente_aceitacao"
)

// Atribuido is one assignee entry on a demanda.
type Atribuido struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome,omitempty"`
	Email string `json:"email,omitempty"`
}

// Anexo is a file reference attached at creation or resolution time.
type Anexo struct {
	Nome string `json:"nome"`
	URL  string `json:"url,omitempty"`
}

// Comentario is one entry of the free-text user comment thread.
type Comentario struct {
	AutorID int64  `json:"autorId,omitempty"`
	Autor   string `json:"autor,omitempty"`
	Texto   string `json:"texto"`
	Data    string `json:"data,omitempty" format:"date-time"`
}

type Demanda struct {
	ID               int64        `json:"id"`
	Tag              string       `json:"tag"`
	NomeDemanda      string       `json:"nomeDemanda"`
	Descricao        string       `json:"descricao,omitempty"`
	Categoria        string       `json:"categoria"`
	Prioridade       string       `json:"prioridade,omitempty"`
	Complexidade     string       `json:"complexidade,omitempty"`
	Localizacao      string       `json:"localizacao,omitempty"`
	Status           string       `json:"status" enum:"pendente,aprovada,reprovada,finalizado_pendente_aprovacao,atribuida_pendente_aceitacao"`
	FuncionarioID    int64        `json:"funcionarioId"`
	CriadoPor        string       `json:"criadoPor,omitempty"`
	AtualizadoPor    string       `json:"atualizadoPor,omitempty"`
	Atribuidos       []Atribuido  `json:"atribuidos"`
	ComentarioGestor string       `json:"comentarioGestor,omitempty"`
	ComentarioRecusa string       `json:"comentarioRecusa,omitempty"`
	Comentarios      []Comentario `json:"comentariosUsuarios"`
	AnexosCriacao    []Anexo      `json:"anexosCriacao"`
	AnexosResolucao  []Anexo      `json:"anexosResolucao"`
	IsRotina         bool         `json:"isRotina"`
	DiasSemana       []int        `json:"diasSemana"`
	DataCriacao      string       `json:"dataCriacao" format:"date-time"`
	DataLimite       string       `json:"dataLimite"`
	DataConclusao    *string      `json:"dataConclusao,omitempty" format:"date-time"`
	DataAtualizacao  string       `json:"dataAtualizacao" format:"date-time"`
}

// Notificacao is owned by its recipient; only Lida is mutable.
type Notificacao struct {
	ID          int64  `json:"id"`
	UsuarioID   int64  `json:"usuarioId"`
	Tipo        string `json:"tipo"`
	Titulo      string `json:"titulo"`
	Mensagem    string `json:"mensagem"`
	DemandaTag  string `json:"demandaTag,omitempty"`
	Prioritaria bool   `json:"prioritaria"`
	Lida        bool   `json:"lida"`
	DataCriacao string `json:"dataCriacao" format:"date-time"`
}

// RegistroAuditoria is append-only; never updated or deleted by the service.
type RegistroAuditoria struct {
	ID          int64  `json:"id"`
	Acao        string `json:"acao"`
	Tabela      string `json:"tabela"`
	RegistroID  int64  `json:"registroId,omitempty"`
	DadosAntes  string `json:"dadosAntes"`
	DadosDepois string `json:"dadosDepois"`
	UsuarioID   string `json:"usuarioId,omitempty"`
	Origem      string `json:"origem,omitempty"`
	Data        string `json:"data" format:"date-time"`
}

// BackupEnvelope wraps a full demanda export in a snapshot file.
type BackupEnvelope struct {
	Version   string    `json:"version"`
	Timestamp string    `json:"timestamp" format:"date-time"`
	Kind      string    `json:"kind"`
	Count     int       `json:"count"`
	Demandas  []Demanda `json:"demandas"`
}

// KnownStatus reports whether s is one of the statuses the engine writes.
func KnownStatus(s string) bool {
	switch s {
	case StatusPendente, StatusAprovada, StatusReprovada, StatusFinalizadoPendente, StatusAtribuidaPendente:
		return true
	}
	return false
}
