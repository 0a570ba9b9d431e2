package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tadris/core/setting"
)

const (
	settingColumns = "key, type, group_name, description, is_public, value, updated_at"
	defaultGroup   = "general"
)

type settingRow struct {
	Key         string    `db:"key"`
	Type        string    `db:"type"`
	Group       string    `db:"group_name"`
	Description string    `db:"description"`
	IsPublic    bool      `db:"is_public"`
	Value       null.JSON `db:"value"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r settingRow) descriptor() setting.Descriptor {
	return setting.Descriptor{
		Key:         r.Key,
		Type:        setting.Type(r.Type),
		Group:       r.Group,
		Description: r.Description,
		IsPublic:    r.IsPublic,
	}
}

func (r settingRow) setting() setting.Setting {
	s := setting.Setting{Descriptor: r.descriptor(), UpdatedAt: r.UpdatedAt.UTC()}
	if r.Value.Valid {
		s.Value = json.RawMessage(r.Value.JSON)
	}
	return s
}

type SettingStore struct {
	db sqlx.ExtContext
}

var _ setting.Store = (*SettingStore)(nil)

func NewSettingStore(db sqlx.ExtContext) *SettingStore {
	return &SettingStore{db: db}
}

func (s *SettingStore) get(ctx context.Context, key string) (settingRow, error) {
	var row settingRow
	err := sqlx.GetContext(ctx, s.db, &row, "SELECT "+settingColumns+" FROM settings WHERE key = $1", key)
	return row, err
}

func (s *SettingStore) GetDescriptor(ctx context.Context, key string) (setting.Descriptor, bool, error) {
	row, err := s.get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return setting.Descriptor{}, false, nil
		}
		return setting.Descriptor{}, false, errors.Wrapf(err, "getting descriptor of %q", key)
	}
	return row.descriptor(), true, nil
}

func (s *SettingStore) GetSetting(ctx context.Context, key string) (setting.Setting, error) {
	row, err := s.get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return setting.Setting{}, setting.ErrNotFound
		}
		return setting.Setting{}, errors.Wrapf(err, "getting setting %q", key)
	}
	return row.setting(), nil
}

func (s *SettingStore) ListSettings(ctx context.Context, publicOnly bool) ([]setting.Setting, error) {
	var rows []settingRow
	q := "SELECT " + settingColumns + " FROM settings WHERE ($1 = FALSE OR is_public) ORDER BY group_name, key"
	if err := sqlx.SelectContext(ctx, s.db, &rows, q, publicOnly); err != nil {
		return nil, errors.Wrap(err, "listing settings")
	}
	settings := make([]setting.Setting, 0, len(rows))
	for _, r := range rows {
		settings = append(settings, r.setting())
	}
	return settings, nil
}

func (s *SettingStore) SaveSetting(ctx context.Context, st setting.Setting) error {
	group := st.Group
	if group == "" {
		group = defaultGroup
	}
	row := settingRow{
		Key:         st.Key,
		Type:        string(st.Type),
		Group:       group,
		Description: st.Description,
		IsPublic:    st.IsPublic,
		Value:       null.NewJSON(st.Value, len(st.Value) > 0),
		UpdatedAt:   st.UpdatedAt.UTC(),
	}
	q := `INSERT INTO settings (` + settingColumns + `)
VALUES (:key, :type, :group_name, :description, :is_public, :value, :updated_at)
ON CONFLICT (key) DO UPDATE SET
    type = EXCLUDED.type, group_name = EXCLUDED.group_name, description = EXCLUDED.description,
    is_public = EXCLUDED.is_public, value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, s.db, q, row); err != nil {
		return errors.Wrapf(err, "saving setting %q", st.Key)
	}
	return nil
}
