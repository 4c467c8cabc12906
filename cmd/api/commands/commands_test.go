package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"tasks", "reindex"},
		{"projects", "refresh"},
		{"employees", "add"},
		{"auth", "token"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracker 1.0.0")
}

func TestEmployeesAdd(t *testing.T) {
	userID := uuid.New()
	out, err := run(t, "employees", "add", "Ayu", "--user", userID.String())
	require.NoError(t, err)

	var employee entities.Employee
	require.NoError(t, json.Unmarshal([]byte(out), &employee))
	assert.Equal(t, "Ayu", employee.Name)
	assert.Equal(t, userID, employee.UserID)

	_, err = run(t, "employees", "add", "Ayu", "--user", "nope")
	assert.ErrorContains(t, err, "invalid user uuid")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "tasks", "reindex", "abc")
	assert.ErrorContains(t, err, "invalid id")

	_, err = run(t, "projects", "refresh", "7")
	assert.ErrorIs(t, err, entities.ErrProjectNotFound)

	_, err = run(t, "auth", "token", uuid.NewString())
	assert.ErrorIs(t, err, entities.ErrEmployeeNotFound)

	_, err = run(t, "migrate", "up")
	assert.ErrorContains(t, err, "has no migrations")
}
