package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tadris/core"
)

type actor struct{ id string }

func (a actor) LogPerson() core.LogPerson { return core.LogPerson{ID: a.id} }

func TestRollbarLogger_Prepare(t *testing.T) {
	var out bytes.Buffer
	l := NewRollbarLogger(log.New(&out, "", 0), core.NewTestConfig())
	l.Enable(false)

	err := errors.New("boom")
	extra := map[string]interface{}{"op": "groups.create"}

	got := l.prepare("failed", []interface{}{err, actor{id: "u1"}, extra, core.LogPerson{ID: "u2"}})
	assert.Equal(t, []interface{}{"failed", err, extra}, got)

	l.Error("failed", err)
	assert.Contains(t, out.String(), "failed\nboom")
}
