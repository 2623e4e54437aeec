package store

import (
	"context"
	"database/sql"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// SetToolConfig persists an enabled/scope override for a tool, applied
// by ToolRegistry on top of its static catalog at dispatch time.
func (s *Store) SetToolConfig(ctx context.Context, cfg domain.ToolConfig) error {
	var scope string
	if cfg.Scope != nil {
		scope = string(*cfg.Scope)
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tool_config (tool_name, enabled, scope, updated_at, updated_by)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(tool_name) DO UPDATE SET enabled = excluded.enabled,
				scope = excluded.scope, updated_at = excluded.updated_at, updated_by = excluded.updated_by`,
			cfg.ToolName, cfg.Enabled, scope, now(), cfg.UpdatedBy)
		return err
	})
}

// ListToolConfigs returns every persisted tool override.
func (s *Store) ListToolConfigs(ctx context.Context) ([]domain.ToolConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool_name, enabled, scope, updated_at, updated_by FROM tool_config`)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "list tool configs", err)
	}
	defer rows.Close()

	var out []domain.ToolConfig
	for rows.Next() {
		var cfg domain.ToolConfig
		var scope sql.NullString
		if err := rows.Scan(&cfg.ToolName, &cfg.Enabled, &scope, &cfg.UpdatedAt, &cfg.UpdatedBy); err != nil {
			return nil, errkind.New(errkind.Storage, "scan tool config", err)
		}
		if scope.Valid && scope.String != "" {
			sc := domain.ToolScope(scope.String)
			cfg.Scope = &sc
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// SetGroupModulePermission overrides a module's visibility for one
// chat; ReservedOpenModules in the domain package bypass this entirely.
func (s *Store) SetGroupModulePermission(ctx context.Context, perm domain.GroupModulePermission) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO group_modules (chat_id, module, level, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(chat_id, module) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at`,
			perm.ChatID, perm.Module, string(perm.Level), now())
		return err
	})
}

// GetGroupModulePermissions returns every override for a chat.
func (s *Store) GetGroupModulePermissions(ctx context.Context, chatID string) ([]domain.GroupModulePermission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, module, level FROM group_modules WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "list group modules", err)
	}
	defer rows.Close()

	var out []domain.GroupModulePermission
	for rows.Next() {
		var p domain.GroupModulePermission
		var level string
		if err := rows.Scan(&p.ChatID, &p.Module, &level); err != nil {
			return nil, errkind.New(errkind.Storage, "scan group module", err)
		}
		p.Level = domain.ModulePermissionLevel(level)
		out = append(out, p)
	}
	return out, rows.Err()
}
