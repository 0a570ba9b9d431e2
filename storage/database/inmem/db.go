package inmemdb

import (
	"sync"

	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
)

type (
	// DB is the in-memory storage backend used in development and tests.
	DB struct {
		user    *userTable
		setting *settingTable
		records *recordTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	settingTable struct {
		mutex sync.RWMutex
		table map[string]setting.Setting
	}

	// recordTable holds the rows of the other collections, only as far as lookups need them.
	recordTable struct {
		mutex sync.RWMutex
		table map[string][]Record // {collection: rows}
	}

	// Record is a row of a collection: its id and the looked-up columns.
	Record struct {
		ID     string
		Fields map[string]interface{}
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		setting: &settingTable{table: make(map[string]setting.Setting)},
		records: &recordTable{table: make(map[string][]Record)},
	}
}

// Insert adds a row to collection.
func (db *DB) Insert(collection string, rec Record) {
	db.records.mutex.Lock()
	defer db.records.mutex.Unlock()
	db.records.table[collection] = append(db.records.table[collection], rec)
}

// Reset drops every row.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.setting.mutex.Lock()
	db.setting.table = make(map[string]setting.Setting)
	db.setting.mutex.Unlock()

	db.records.mutex.Lock()
	db.records.table = make(map[string][]Record)
	db.records.mutex.Unlock()
}
