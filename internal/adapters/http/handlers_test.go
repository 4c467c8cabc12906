package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

func TestParseClientTime(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	want := time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"rfc3339 utc", "2024-03-04T02:00:00Z"},
		{"rfc3339 offset", "2024-03-04T09:00:00+07:00"},
		{"datetime-local", "2024-03-04T09:00"},
		{"datetime-local seconds", "2024-03-04T09:00:00"},
		{"space separated", " 2024-03-04 09:00 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientTime(tt.input, jakarta)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err = ParseClientTime("next tuesday", jakarta)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(entities.ErrMissingDescription))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("load: %w", entities.ErrTaskNotFound)))
	assert.Equal(t, http.StatusConflict, statusFor(entities.ErrTimerConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(entities.NewPersistenceError("save", errors.New("down"))))
}

func TestFailHidesInternalErrors(t *testing.T) {
	log := logger.NewNop()

	err := fail(log, "save", errors.New("pq: connection refused"))
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, ErrorResponse{Error: "internal_error", Details: "Internal Server Error"}, he.Message)

	err = fail(log, "stop", fmt.Errorf("stop: %w", entities.ErrNoActiveTimer))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusConflict, he.Code)
	assert.Equal(t, "no_active_timer", he.Message.(ErrorResponse).Error)
}

func TestUserIDFromContext(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, getUserIDFromContext(c))

	id := uuid.New()
	c.Set(ContextUserKey, id)
	assert.Equal(t, id, getUserIDFromContext(c))

	c.Set(ContextUserKey, id.String())
	assert.Equal(t, id, getUserIDFromContext(c))
}
