package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tadris/core/setting"
)

type settingStore struct {
	db *settingTable
}

var _ setting.Store = (*settingStore)(nil)

func NewSettingStore(db *DB) *settingStore {
	return &settingStore{db: db.setting}
}

func (s *settingStore) GetDescriptor(_ context.Context, key string) (setting.Descriptor, bool, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()
	st, ok := s.db.table[key]
	return st.Descriptor, ok, nil
}

func (s *settingStore) GetSetting(_ context.Context, key string) (setting.Setting, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()
	if st, ok := s.db.table[key]; ok {
		return st, nil
	}
	return setting.Setting{}, setting.ErrNotFound
}

func (s *settingStore) ListSettings(_ context.Context, publicOnly bool) ([]setting.Setting, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	settings := make([]setting.Setting, 0, len(s.db.table))
	for _, st := range s.db.table {
		if publicOnly && !st.IsPublic {
			continue
		}
		settings = append(settings, st)
	}
	sort.Slice(settings, func(i, j int) bool {
		if settings[i].Group != settings[j].Group {
			return settings[i].Group < settings[j].Group
		}
		return settings[i].Key < settings[j].Key
	})
	return settings, nil
}

func (s *settingStore) SaveSetting(_ context.Context, st setting.Setting) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	if st.Group == "" {
		st.Group = "general"
	}
	s.db.table[st.Key] = st
	return nil
}
