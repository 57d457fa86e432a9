package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/admissions/core"
)

func TestRollbarLogger(t *testing.T) {
	var out bytes.Buffer
	logger := NewRollbarLogger(log.New(&out, "TEST : ", 0), &core.Config{Debug: true})
	defer logger.Close()

	err := errors.New("db gone")
	extras := map[string]interface{}{"session_id": "sess-1"}

	assert.Equal(t, []interface{}{"claiming session", err, extras}, logger.prepare("claiming session", []interface{}{err, extras}))
	assert.Equal(t, []interface{}{"tick done"}, logger.prepare("tick done", nil))

	logger.Error("claiming session", err, extras)
	assert.Contains(t, out.String(), "TEST : ERROR claiming session\n")
	assert.Contains(t, out.String(), "db gone")
	assert.Contains(t, out.String(), "map[session_id:sess-1]")
}
