package setting

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/validation"
)

const (
	// KeyParam is the route param holding the setting key.
	KeyParam = "key"

	// ValueField is the payload field holding the new value.
	ValueField = "value"
	valueLabel = "القيمة"
)

// Rules selects the constraint of the "value" field from the declared type.
// An undeclared key only requires the value to be sent, whatever it holds.
func Rules(desc Descriptor, found bool) []validation.FieldConstraint {
	if !found {
		return []validation.FieldConstraint{validation.Field(ValueField, valueLabel, validation.Present())}
	}

	var rule validation.FieldConstraint
	switch desc.Type {
	case TypeBoolean:
		rule = validation.Field(ValueField, valueLabel, validation.Required(), validation.Boolean())
	case TypeInteger:
		rule = validation.Field(ValueField, valueLabel, validation.Required(), validation.Integer())
	case TypeJSON, TypeArray:
		rule = validation.Field(ValueField, valueLabel, validation.Required(), validation.Array())
	default:
		rule = validation.Field(ValueField, valueLabel, validation.Nullable(), validation.String())
	}
	return []validation.FieldConstraint{rule}
}

// Resolver reads the descriptor of the requested key on every call.
func Resolver(store Store) validation.ResolveFunc {
	return func(ctx context.Context, req validation.Request) ([]validation.FieldConstraint, error) {
		key := req.Params[KeyParam]
		desc, found, err := store.GetDescriptor(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "getting descriptor of %q", key)
		}
		return Rules(desc, found), nil
	}
}
