package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func restError(status, code int) *discordgo.RESTError {
	e := &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
	}
	if code != 0 {
		e.Message = &discordgo.APIErrorMessage{Code: code, Message: "error"}
	}
	return e
}

func TestIsUnknownMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown message code", restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage), true},
		{"unknown message code on other status", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownMessage), true},
		{"plain 404", restError(http.StatusNotFound, 0), true},
		{"wrapped 404", fmt.Errorf("edit: %w", restError(http.StatusNotFound, 0)), true},
		{"server error", restError(http.StatusInternalServerError, 0), false},
		{"missing permissions", restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), false},
		{"rate limited", restError(http.StatusTooManyRequests, 0), false},
		{"no response", &discordgo.RESTError{}, false},
		{"network error", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isUnknownMessage(tc.err))
		})
	}
}

func TestEditError(t *testing.T) {
	assert.ErrorIs(t, editError("42", restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)), ErrNotFound)

	err := editError("42", restError(http.StatusInternalServerError, 0))
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "42")
}
