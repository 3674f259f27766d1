package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, MetadataFor(CodeConflict).HTTPStatus)
	assert.Equal(t, http.StatusConflict, MetadataFor(CodeInsufficientInventory).HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeInvalidState).HTTPStatus)
	assert.Equal(t, http.StatusNotFound, MetadataFor(CodeNotFound).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("SOMETHING_ELSE")).HTTPStatus)
}

func TestAsFindsWrappedError(t *testing.T) {
	base := New(CodeConflict, "slot taken").WithDetails(map[string]any{"booking_id": 7})
	wrapped := fmt.Errorf("create booking: %w", base)

	typed := As(wrapped)
	if assert.NotNil(t, typed) {
		assert.Equal(t, CodeConflict, typed.Code())
		assert.Equal(t, "slot taken", typed.Message())
		assert.Equal(t, map[string]any{"booking_id": 7}, typed.Details())
	}
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("db gone")
	err := Wrap(CodeInternal, cause, "load booking")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR: load booking: db gone", err.Error())
}
