package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsType(t *testing.T) {
	base := MissingRiskFactor("EONIA")
	wrapped := Wrapf(base, "pricing option on %s", "CPH:NDA-DK")

	assert.True(t, IsType(wrapped, ErrorTypeMissingRiskFactor))
	assert.True(t, Is(wrapped, base))
	assert.Contains(t, wrapped.Error(), `missing risk factor "EONIA"`)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
	assert.Nil(t, WithType(nil, ErrorTypeInternal))
}

func TestTypeOfPlainError(t *testing.T) {
	err := stderrors.New("plain")
	assert.Equal(t, ErrorTypeUnknown, TypeOf(err))
	assert.Equal(t, ErrorTypeInternal, TypeOf(WithType(err, ErrorTypeInternal)))
	assert.False(t, IsType(nil, ErrorTypeUnknown))
}

func TestMissingScenarioKeysNamesKeys(t *testing.T) {
	err := MissingScenarioKeys([]string{"B", "A"})
	assert.Equal(t, "missing keys in mean scenario: A, B", err.Error())
	assert.Equal(t, ErrorTypeMissingScenarioKeys, TypeOf(err))
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "serialization_mismatch", ErrorTypeSerializationMismatch.String())
	assert.Equal(t, "error_type(99)", ErrorType(99).String())
}
