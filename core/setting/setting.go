package setting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("setting not found")

// Type is the declared value type of a setting.
type Type string

const (
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeString  Type = "string"
	TypeJSON    Type = "json"
	TypeArray   Type = "array"
)

func (t Type) Valid() bool {
	switch t {
	case TypeBoolean, TypeInteger, TypeString, TypeJSON, TypeArray:
		return true
	}
	return false
}

// Descriptor declares a setting key and its type.
type Descriptor struct {
	Key         string `json:"key"`
	Type        Type   `json:"type"`
	Group       string `json:"group"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// Setting is a stored value. Value holds JSON text.
type Setting struct {
	Descriptor
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"` // UTC
}

// Decoded returns the value as decoded JSON.
func (s Setting) Decoded() (interface{}, error) {
	if len(s.Value) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(s.Value, &v); err != nil {
		return nil, errors.Wrapf(err, "decoding setting %q", s.Key)
	}
	return v, nil
}

type Store interface {
	// GetDescriptor reports found=false when key was never declared.
	GetDescriptor(ctx context.Context, key string) (desc Descriptor, found bool, err error)
	GetSetting(ctx context.Context, key string) (Setting, error)
	ListSettings(ctx context.Context, publicOnly bool) ([]Setting, error)
	SaveSetting(ctx context.Context, s Setting) error
}
