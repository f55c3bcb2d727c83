package db

import (
	"context"
	"database/sql"
	"os/user"
	"sort"
	"strings"

	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/uptrace/bun"
)

// SettingModel maps the `settings` table for Bun queries.
type SettingModel struct {
	bun.BaseModel `bun:"table:settings"`
	Key           string `bun:"key,pk"`
	Value         string `bun:"value"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Username      string `bun:"username"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// execRawProvider is a small interface used to accept either *bun.DB or
// bun.Tx since both expose NewRaw(...).* methods returning *bun.RawQuery.
type execRawProvider interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement using the provided Bun DB or transaction.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...interface{}) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest interface{}, query string, args ...interface{}) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}

// GetSettingBun reads one setting value. Absent keys yield ("", nil).
func GetSettingBun(bdb *bun.DB, key string) (string, error) {
	ctx := context.Background()
	var sm SettingModel
	err := bdb.NewSelect().Model(&sm).Where("key = ?", key).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return sm.Value, nil
}

// PutSettingBun inserts or overwrites one setting.
func PutSettingBun(bdb *bun.DB, key, value string) error {
	return upsertSetting(context.Background(), bdb, key, value)
}

// DeleteSettingBun removes one setting; deleting an absent key is a no-op.
func DeleteSettingBun(bdb *bun.DB, key string) error {
	_, err := bdb.NewDelete().Model((*SettingModel)(nil)).Where("key = ?", key).Exec(context.Background())
	return err
}

// ReplaceSettingsBun applies the deletes in clear and the upserts in set
// within a single transaction. Keys are written in sorted order so the
// statement sequence is deterministic.
func ReplaceSettingsBun(bdb *bun.DB, set map[string]string, clear []string) error {
	ctx := context.Background()

	tx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range clear {
		if _, err := tx.NewDelete().Model((*SettingModel)(nil)).Where("key = ?", key).Exec(ctx); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := upsertSetting(ctx, tx, key, set[key]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func upsertSetting(ctx context.Context, idb bun.IDB, key, value string) error {
	_, err := idb.NewInsert().Model(&SettingModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return MapDBError(err)
}

// GetAllAuditLogEntriesBun retrieves audit log entries, newest first.
func GetAllAuditLogEntriesBun(bdb *bun.DB) ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var am []AuditLogModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC, id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(am))
	for _, a := range am {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
	}
	return out, nil
}

// LogActionBun inserts an audit log entry with the current OS user.
func LogActionBun(bdb *bun.DB, action string, details string) error {
	ctx := context.Background()
	curUser, err := user.Current()
	username := "unknown"
	if err == nil {
		if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
			username = parts[1]
		} else {
			username = curUser.Username
		}
	}
	_, err = ExecRaw(ctx, bdb, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", username, action, details)
	return MapDBError(err)
}
