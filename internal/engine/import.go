package engine

import (
	"context"
	"fmt"
	"time"

	"demandas/internal/audit"
	"demandas/internal/backup"
	"demandas/internal/domain"
	"demandas/internal/normalize"
)

// Caps keep batch responses bounded regardless of payload size.
const (
	maxImportErrors  = 20
	maxImportResults = 50
)

type ImportItemError struct {
	Index int    `json:"indice"`
	Error string `json:"erro"`
}

type ImportedItem struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

type ImportResult struct {
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	Errors       []ImportItemError `json:"erros"`
	Imported     []ImportedItem    `json:"importados"`
}

// BatchImport bulk-upserts demanda payloads inside one transaction. A single
// item's failure is recorded and skipped; only a transaction-level failure
// aborts the batch. On any success a batch_import snapshot is taken after
// commit.
func (e Engine) BatchImport(ctx context.Context, payloads []map[string]any, actorID, origin string) (ImportResult, error) {
	res := ImportResult{Errors: []ImportItemError{}, Imported: []ImportedItem{}}
	if len(payloads) == 0 {
		return res, validationf("nenhuma demanda para importar")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	seen := map[string]bool{}
	fail := func(idx int, msg string) {
		res.ErrorCount++
		if len(res.Errors) < maxImportErrors {
			res.Errors = append(res.Errors, ImportItemError{Index: idx, Error: msg})
		}
	}
	for idx, m := range payloads {
		d := normalize.Demanda(m)
		if d.Status == "" {
			d.Status = domain.StatusPendente
		}
		if !domain.KnownStatus(d.Status) {
			fail(idx, fmt.Sprintf("status desconhecido: %s", d.Status))
			continue
		}
		if d.DataCriacao == "" {
			d.DataCriacao = now
		}
		d.DataAtualizacao = now
		if d.AtualizadoPor == "" {
			d.AtualizadoPor = actorID
		}
		if err := validateDemanda(d); err != nil {
			fail(idx, errorMessage(err))
			continue
		}
		if d.Tag == "" {
			tag, err := e.generateTag(ctx, tx, seen)
			if err != nil {
				fail(idx, errorMessage(err))
				continue
			}
			d.Tag = tag
		} else if seen[d.Tag] {
			fail(idx, fmt.Sprintf("tag duplicada no lote: %s", d.Tag))
			continue
		}
		if d.ID == 0 {
			id, err := e.Repo.InsertDemanda(ctx, tx, d)
			if err != nil {
				fail(idx, err.Error())
				continue
			}
			d.ID = id
		} else if err := e.Repo.UpsertDemanda(ctx, tx, d); err != nil {
			fail(idx, err.Error())
			continue
		}
		seen[d.Tag] = true
		res.SuccessCount++
		if len(res.Imported) < maxImportResults {
			res.Imported = append(res.Imported, ImportedItem{ID: d.ID, Tag: d.Tag})
		}
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{Errors: []ImportItemError{}, Imported: []ImportedItem{}}, err
	}
	if res.SuccessCount > 0 {
		e.Audit.Record(ctx, audit.Entry{
			Action: audit.ActionBatchImport, Table: "demandas",
			After:     map[string]int{"successCount": res.SuccessCount, "errorCount": res.ErrorCount},
			UsuarioID: actorID, Origin: origin,
		})
		e.snapshot(ctx, backup.KindBatchImport)
	}
	return res, nil
}

type RestoreResult struct {
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
}

// Restore bulk-loads snapshot records: normalize, then insert-or-replace by
// id with no merge. Per-item failures are counted, not fatal. The counts are
// exact; the transaction only commits after every row settled.
func (e Engine) Restore(ctx context.Context, records []map[string]any, actorID, origin string) (RestoreResult, error) {
	var res RestoreResult
	if len(records) == 0 {
		return res, validationf("nenhum registro para restaurar")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	for _, m := range records {
		d := normalize.Demanda(m)
		if d.ID == 0 || d.Tag == "" {
			res.ErrorCount++
			continue
		}
		if d.Status == "" {
			d.Status = domain.StatusPendente
		}
		if d.DataCriacao == "" {
			d.DataCriacao = now
		}
		if d.DataAtualizacao == "" {
			d.DataAtualizacao = now
		}
		if err := e.Repo.UpsertDemanda(ctx, tx, d); err != nil {
			res.ErrorCount++
			continue
		}
		res.SuccessCount++
	}
	if err := tx.Commit(); err != nil {
		return RestoreResult{}, err
	}
	e.Audit.Record(ctx, audit.Entry{
		Action: audit.ActionRestore, Table: "demandas",
		After:     map[string]int{"successCount": res.SuccessCount, "errorCount": res.ErrorCount},
		UsuarioID: actorID, Origin: origin,
	})
	return res, nil
}
