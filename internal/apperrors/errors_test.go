package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidArg("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{AlreadyExists("dup"), http.StatusConflict},
		{Forbidden("no"), http.StatusForbidden},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Internal("boom", errors.New("db")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestWrappedCodeSurvives(t *testing.T) {
	err := fmt.Errorf("service: %w", NotFound("message not found"))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.Equal(t, "message not found", PublicMessage(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	err := Internal("user cleanup failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Contains(t, err.Error(), "deadlock")
}
