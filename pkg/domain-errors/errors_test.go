package domainerrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("coded error reports its code", func(t *testing.T) {
		err := New(CodeCapacityExhausted, "no eligible seat")
		assert.Equal(t, CodeCapacityExhausted, CodeOf(err))
		assert.True(t, Is(err, CodeCapacityExhausted))
		assert.False(t, Is(err, CodeNotFound))
	})

	t.Run("wrapped cause stays reachable", func(t *testing.T) {
		cause := fmt.Errorf("pq: deadlock detected")
		err := Wrap(cause, CodeInternal, "approve order")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.ErrorContains(t, err, "deadlock")
	})

	t.Run("wrapping a coded error keeps the outer code", func(t *testing.T) {
		inner := New(CodeStateConflict, "order already approved")
		outer := Wrap(inner, CodeStateConflict, "approve")
		assert.True(t, Is(outer, CodeStateConflict))
	})

	t.Run("foreign errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	})

	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeStateConflict))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeCapacityExhausted))
	assert.Equal(t, http.StatusTooManyRequests, ToHTTPStatus(CodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
}
