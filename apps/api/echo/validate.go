package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/tadris/core/validation"
)

type requestValidator struct {
	v *validation.Validator
}

func (s *Server) validator() *requestValidator {
	return &requestValidator{v: s.deps.Validator}
}

// validate binds the request payload and checks it against the rule set of op.
// It returns the normalized payload.
func (rv *requestValidator) validate(ctx echo.Context, op string) (map[string]interface{}, error) {
	data, err := bindPayload(ctx)
	if err != nil {
		return nil, err
	}

	names, values := ctx.ParamNames(), ctx.ParamValues()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i < len(values) {
			params[name] = values[i]
		}
	}

	return rv.v.Validate(ctx.Request().Context(), op, validation.Request{
		Principal: contextPrincipal(ctx),
		Params:    params,
		Data:      data,
	})
}
