package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Actions recorded against the demandas table.
const (
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionReassign       = "REASSIGN"
	ActionExtendDeadline = "EXTEND_DEADLINE"
	ActionBatchImport    = "BATCH_IMPORT"
	ActionRestore        = "RESTORE"
)

// Entry is one audit record to append. Before and After are snapshots of the
// affected row; nil on creates and deletes respectively.
type Entry struct {
	Action    string
	Table     string
	RecordID  int64
	Before    any
	After     any
	UsuarioID string
	Origin    string
}

// Recorder appends immutable audit records. Appends are fire-and-forget:
// failures are logged and never surfaced to the mutating operation.
type Recorder struct {
	DB  *sql.DB
	Log *zap.Logger
	Now func() time.Time
}

func (r Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Recorder) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Record appends e to the auditoria table. Errors are swallowed after logging
// so that an audit failure cannot block the primary operation.
func (r Recorder) Record(ctx context.Context, e Entry) {
	before := snapshotJSON(e.Before)
	after := snapshotJSON(e.After)
	ts := r.now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO auditoria(acao,tabela,registro_id,dados_antes,dados_depois,usuario_id,origem,data) VALUES (?,?,?,?,?,?,?,?)`,
		e.Action, e.Table, nullableID(e.RecordID), before, after, nullable(e.UsuarioID), nullable(e.Origin), ts)
	if err != nil {
		r.logger().Error("audit append failed",
			zap.String("acao", e.Action),
			zap.String("tabela", e.Table),
			zap.Int64("registro_id", e.RecordID),
			zap.Error(err))
	}
}

func snapshotJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
