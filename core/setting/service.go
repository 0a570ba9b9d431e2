package setting

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
)

var nowFunc = time.Now

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (svc *Service) Get(ctx context.Context, key string) (Setting, error) {
	return svc.store.GetSetting(ctx, core.CleanString(key))
}

func (svc *Service) List(ctx context.Context, publicOnly bool) ([]Setting, error) {
	return svc.store.ListSettings(ctx, publicOnly)
}

// Update stores an already validated value. Undeclared keys get a type inferred from the value;
// fractional numbers are declared as strings and stored as their text.
func (svc *Service) Update(ctx context.Context, key string, value interface{}) (Setting, error) {
	desc, found, err := svc.store.GetDescriptor(ctx, key)
	if err != nil {
		return Setting{}, errors.Wrapf(err, "getting descriptor of %q", key)
	}
	if !found {
		desc = Descriptor{Key: key, Type: inferType(value)}
		value = asDeclared(desc.Type, value)
	}
	return svc.save(ctx, desc, value)
}

// Declare creates or redeclares a setting with its initial value.
func (svc *Service) Declare(ctx context.Context, desc Descriptor, value interface{}) (Setting, error) {
	desc.Key = core.CleanString(desc.Key)
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(desc.Key, "key"),
		vala.StringNotEmpty(string(desc.Type), "type"),
	).Check(); err != nil {
		return Setting{}, err
	}
	if !desc.Type.Valid() {
		return Setting{}, errors.Errorf("unknown setting type %q", desc.Type)
	}
	return svc.save(ctx, desc, value)
}

func (svc *Service) save(ctx context.Context, desc Descriptor, value interface{}) (Setting, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Setting{}, errors.Wrapf(err, "encoding setting %q", desc.Key)
	}
	s := Setting{
		Descriptor: desc,
		Value:      raw,
		UpdatedAt:  nowFunc().UTC(),
	}
	if err := svc.store.SaveSetting(ctx, s); err != nil {
		return Setting{}, err
	}
	return s, nil
}

func inferType(value interface{}) Type {
	switch v := value.(type) {
	case bool:
		return TypeBoolean
	case int, int64:
		return TypeInteger
	case float64:
		if v == math.Trunc(v) {
			return TypeInteger
		}
		return TypeString
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return TypeInteger
		}
		return TypeString
	case []interface{}:
		return TypeArray
	case map[string]interface{}:
		return TypeJSON
	default:
		return TypeString
	}
}

// asDeclared converts numbers inferred as strings to their text.
func asDeclared(t Type, value interface{}) interface{} {
	if t != TypeString {
		return value
	}
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return value
}
