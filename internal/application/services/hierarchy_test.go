package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

func intPtr(v int) *int { return &v }

func closedLine(taskID int, start time.Time, d time.Duration) *entities.TimesheetLine {
	end := start.Add(d)
	return &entities.TimesheetLine{TaskID: taskID, Start: start, End: &end}
}

func TestTreeRollup(t *testing.T) {
	tasks := []*entities.Task{
		{ID: 1, Status: entities.TaskStatusInProgress},
		{ID: 2, ParentID: intPtr(1), Status: entities.TaskStatusDone},
		{ID: 3, ParentID: intPtr(1), Status: entities.TaskStatusInProgress},
		{ID: 4, ParentID: intPtr(3), Status: entities.TaskStatusDone},
		{ID: 5, ParentID: intPtr(3), Status: entities.TaskStatusNew},
		{ID: 6, Status: entities.TaskStatusNew},
	}
	lines := []*entities.TimesheetLine{
		closedLine(2, epoch.Add(2*time.Hour), time.Hour),
		closedLine(4, epoch, 30*time.Minute),
		closedLine(5, epoch.Add(24*time.Hour), time.Hour),
		{TaskID: 5, Start: epoch.Add(48 * time.Hour)},
	}

	tree := NewTree(tasks, lines)
	rollups, err := tree.Rollup()
	require.NoError(t, err)

	assert.Equal(t, 50.0, rollups[3].Progress)
	assert.Equal(t, 75.0, rollups[1].Progress)
	assert.Equal(t, 0.0, rollups[6].Progress)

	assert.Equal(t, 2, rollups[3].ActualMandays)
	assert.Equal(t, 3, rollups[1].ActualMandays)
	assert.Equal(t, epoch, *rollups[1].ActualStart)
	assert.Equal(t, epoch.Add(25*time.Hour), *rollups[1].ActualEnd)
	assert.Nil(t, rollups[6].ActualStart)

	project := tree.ProjectRollup(rollups)
	assert.Equal(t, 37.5, project.Progress)
	assert.Equal(t, 3, project.ActualMandays)
}

func TestTreeSubtree(t *testing.T) {
	tree := NewTree([]*entities.Task{
		{ID: 1},
		{ID: 2, ParentID: intPtr(1)},
		{ID: 3, ParentID: intPtr(2)},
		{ID: 4, ParentID: intPtr(1)},
	}, nil)

	ids, err := tree.Subtree(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	_, err = tree.Subtree(99)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTreeDetectsCycles(t *testing.T) {
	tree := NewTree([]*entities.Task{
		{ID: 1},
		{ID: 2, ParentID: intPtr(3)},
		{ID: 3, ParentID: intPtr(2)},
	}, nil)

	_, err := tree.Rollup()
	assert.ErrorIs(t, err, entities.ErrHierarchyCycle)
	assert.True(t, entities.IsValidation(err))

	_, err = tree.Subtree(2)
	assert.ErrorIs(t, err, entities.ErrHierarchyCycle)
}

func TestTreeOrphansAreRoots(t *testing.T) {
	tree := NewTree([]*entities.Task{
		{ID: 7, ParentID: intPtr(42), Status: entities.TaskStatusDone},
	}, nil)

	assert.Equal(t, []int{7}, tree.Roots())
	rollups, err := tree.Rollup()
	require.NoError(t, err)
	assert.Equal(t, 100.0, rollups[7].Progress)

	// not top-level, so it does not count towards project progress
	assert.Equal(t, 0.0, tree.ProjectRollup(rollups).Progress)
}

func TestShareOf(t *testing.T) {
	assert.Equal(t, 50.0, ShareOf(100, 2))
	assert.InDelta(t, 33.333, ShareOf(100, 3), 0.001)
	assert.Equal(t, 0.0, ShareOf(100, 0))
}
