package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := ConfigInvalid("ALPHA must be in (0,1)")
	err := Wrap(base, "configuration validation failed")

	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "configuration validation failed: ALPHA must be in (0,1)", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapPlainError(t *testing.T) {
	err := Wrapf(io.ErrUnexpectedEOF, "reading %s", "events.csv")

	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestSchemaAndSourceErrors(t *testing.T) {
	cause := stderrors.New("no visit_id column")

	assert.Equal(t, CodeSchemaError, GetCode(SchemaError(cause)))
	assert.True(t, stderrors.Is(SchemaError(cause), cause))

	src := DataSourceError("postgres", cause)
	assert.Equal(t, "postgres source error: no visit_id column", src.Error())
	assert.Equal(t, "UNKNOWN", GetCode(cause))
	assert.True(t, IsAppError(WithCode(CodeInvalidInput, cause)))
	assert.Equal(t, cause.Error(), WithCode(CodeInvalidInput, cause).Error())
}
