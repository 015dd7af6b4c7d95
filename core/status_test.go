package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/PaulFidika/memberkit/session"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{nil, http.StatusOK, ""},
		{session.ErrPassInFlight, http.StatusConflict, "pass_in_flight"},
		{session.ErrUnknownWorkspace, http.StatusNotFound, "unknown_workspace"},
		{ErrNoSession, http.StatusUnauthorized, "no_session"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("%w: graph: boom", session.ErrReconciliation), http.StatusBadGateway, "reconciliation_failed"},
		{errors.New("other"), http.StatusInternalServerError, "session_error"},
	}
	for _, tc := range cases {
		code, msg := ErrorStatus(tc.err)
		assert.Equal(t, tc.code, code, "%v", tc.err)
		assert.Equal(t, tc.msg, msg, "%v", tc.err)
	}
}
