// Package normalize converts stored or inbound representations of demanda
// fields into canonical in-memory shapes. List-valued columns are persisted
// as JSON text; callers may also hand us already-decoded slices or garbage.
// Decode failure always degrades to an empty list, never an error, and every
// function is idempotent over its own output.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"demandas/internal/domain"
)

func list[T any](v any) []T {
	switch x := v.(type) {
	case nil:
		return []T{}
	case []T:
		if x == nil {
			return []T{}
		}
		return x
	case string:
		return decodeList[T]([]byte(x))
	case []byte:
		return decodeList[T](x)
	default:
		// Anything else slice-shaped ([]any from a JSON body, etc.) goes
		// through a marshal round trip.
		b, err := json.Marshal(v)
		if err != nil {
			return []T{}
		}
		return decodeList[T](b)
	}
}

func decodeList[T any](b []byte) []T {
	if len(strings.TrimSpace(string(b))) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

// Bool coerces any truthy representation (0/1, "true", "1") to a boolean.
func Bool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "t", "sim":
			return true
		}
		return false
	default:
		return false
	}
}

// Ints normalizes the weekday index list.
func Ints(v any) []int { return list[int](v) }

// Atribuidos normalizes the assignee list.
func Atribuidos(v any) []domain.Atribuido { return list[domain.Atribuido](v) }

// Anexos normalizes an attachment list.
func Anexos(v any) []domain.Anexo { return list[domain.Anexo](v) }

// Comentarios normalizes the user comment thread.
func Comentarios(v any) []domain.Comentario { return list[domain.Comentario](v) }

// Apply ensures every list field of d is non-nil and the recurrence flag is
// consistent. Called before a demanda leaves the store.
func Apply(d *domain.Demanda) {
	if d.Atribuidos == nil {
		d.Atribuidos = []domain.Atribuido{}
	}
	if d.Comentarios == nil {
		d.Comentarios = []domain.Comentario{}
	}
	if d.AnexosCriacao == nil {
		d.AnexosCriacao = []domain.Anexo{}
	}
	if d.AnexosResolucao == nil {
		d.AnexosResolucao = []domain.Anexo{}
	}
	if d.DiasSemana == nil {
		d.DiasSemana = []int{}
	}
}

// Demanda builds a canonical record from a loosely typed payload, as received
// by batch import and restore. Field presence is not validated here.
func Demanda(m map[string]any) domain.Demanda {
	d := domain.Demanda{
		ID:               Int64(m["id"]),
		Tag:              String(m["tag"]),
		NomeDemanda:      String(m["nomeDemanda"]),
		Descricao:        String(m["descricao"]),
		Categoria:        String(m["categoria"]),
		Prioridade:       String(m["prioridade"]),
		Complexidade:     String(m["complexidade"]),
		Localizacao:      String(m["localizacao"]),
		Status:           String(m["status"]),
		FuncionarioID:    Int64(m["funcionarioId"]),
		CriadoPor:        String(m["criadoPor"]),
		AtualizadoPor:    String(m["atualizadoPor"]),
		Atribuidos:       Atribuidos(m["atribuidos"]),
		ComentarioGestor: String(m["comentarioGestor"]),
		ComentarioRecusa: String(m["comentarioRecusa"]),
		Comentarios:      Comentarios(m["comentariosUsuarios"]),
		AnexosCriacao:    Anexos(m["anexosCriacao"]),
		AnexosResolucao:  Anexos(m["anexosResolucao"]),
		IsRotina:         Bool(m["isRotina"]),
		DiasSemana:       Ints(m["diasSemana"]),
		DataCriacao:      String(m["dataCriacao"]),
		DataLimite:       String(m["dataLimite"]),
		DataAtualizacao:  String(m["dataAtualizacao"]),
	}
	if s := String(m["dataConclusao"]); s != "" {
		d.DataConclusao = &s
	}
	Apply(&d)
	return d
}

// String coerces scalar payload values to a string.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Int64 coerces scalar payload values to an integer id.
func Int64(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// EncodeList serializes a list field for storage. Empty lists are stored as
// "[]" so older rows with NULL columns stay distinguishable from new writes.
func EncodeList(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
