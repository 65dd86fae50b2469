package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"boxshop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: bad box", model.ErrInvalidRequest), http.StatusBadRequest, "BAD_REQUEST"},
		{model.ErrShopClosed, http.StatusForbidden, "SHOP_CLOSED"},
		{model.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
		{fmt.Errorf("%w: purchase: %w", model.ErrStorageUnavailable, errors.New("disk I/O")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{NotFound(""), http.StatusNotFound, "NOT_FOUND"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		assert.Equal(t, tc.status, got.StatusCode, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
}

func TestFromOutcome(t *testing.T) {
	out := model.Rejected(model.ReasonQuotaExceeded, "you can only buy 2 more")
	out.Remaining = 2
	out.RetryAfter = 90*time.Minute + 500*time.Millisecond

	e := FromOutcome(out)
	assert.Equal(t, http.StatusTooManyRequests, e.StatusCode)
	assert.Equal(t, 5401, e.RetryAfterSeconds())

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			Remaining int    `json:"remaining"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(e.ToJSON(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "QUOTA_EXCEEDED", body.Error.Code)
	assert.Equal(t, 2, body.Error.Remaining)

	assert.Equal(t, "SHOP_CLOSED", FromOutcome(model.Rejected(model.ReasonShopClosed, "")).Code)
	assert.Equal(t, "OUT_OF_STOCK", FromOutcome(model.Rejected(model.ReasonOutOfStock, "")).Code)
	assert.Equal(t, "BAD_REQUEST", FromOutcome(model.Rejected(model.ReasonInvalidRequest, "bad")).Code)
}
