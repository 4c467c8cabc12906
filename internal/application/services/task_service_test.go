package services

import (
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

func (s *ServiceSuite) TestProjectRollupScenario() {
	p := s.newProject(100)

	top, err := s.tasks.CreateTasks(s.ctx, ports.CreateTasksRequest{
		ProjectID: p.ID,
		Tasks:     []ports.NewTask{{Title: "Backend"}, {Title: "Frontend"}},
	})
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	a, b := top[0], top[1]
	s.Equal("T-01", a.Name)
	s.Equal("T-02", b.Name)
	for _, task := range top {
		s.Equal(50.0, task.Weight)
		s.Equal(50.0, task.MandaysBudget)
	}

	a1 := s.newTask(p.ID, &a.ID, "API")
	s.Equal("T-01.01", a1.Name)
	s.Equal(50.0, a1.Weight)
	s.Equal(50.0, a1.MandaysBudget)

	s.transition(a1.ID, ports.TaskActionStartProgress)
	s.transition(a1.ID, ports.TaskActionFinish)

	s.Equal(100.0, s.reload(a.ID).Progress)
	s.Equal(0.0, s.reload(b.ID).Progress)

	project, err := s.projects.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(50.0, project.Progress)
}

func (s *ServiceSuite) TestProgressIgnoresWeight() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	done := s.newTask(p.ID, &parent.ID, "Done")
	busy := s.newTask(p.ID, &parent.ID, "Busy")

	// skew the weights so a weighted mean would not give 50
	skewed := s.reload(done.ID)
	skewed.Weight = 5
	s.Require().NoError(s.store.Tasks().Update(s.ctx, skewed))

	s.transition(done.ID, ports.TaskActionStartProgress)
	s.transition(done.ID, ports.TaskActionFinish)
	s.transition(busy.ID, ports.TaskActionStartProgress)

	s.Equal(50.0, s.reload(parent.ID).Progress)
	s.Equal(100.0, s.reload(done.ID).Progress)
	s.Equal(0.0, s.reload(busy.ID).Progress)
}

func (s *ServiceSuite) TestFinishBlockedByOpenSubtask() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	s.newTask(p.ID, &parent.ID, "Child")
	s.transition(parent.ID, ports.TaskActionStartProgress)

	_, err := s.tasks.Transition(s.ctx, parent.ID, ports.TaskActionFinish, s.userID)
	s.ErrorIs(err, entities.ErrIncompleteSubtasks)
	s.True(entities.IsValidation(err))
	s.Equal(entities.TaskStatusInProgress, s.reload(parent.ID).Status)
}

func (s *ServiceSuite) TestTaskTransitions() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")

	_, err := s.tasks.Transition(s.ctx, task.ID, ports.TaskActionFinish, s.userID)
	s.ErrorIs(err, entities.ErrInvalidTaskTransition)

	_, err = s.tasks.Transition(s.ctx, task.ID, ports.TaskActionSetToDraft, s.userID)
	s.ErrorIs(err, entities.ErrInvalidTaskTransition)

	s.Equal(entities.TaskStatusCancel, s.transition(task.ID, ports.TaskActionCancel).Status)
	s.Equal(entities.TaskStatusNew, s.transition(task.ID, ports.TaskActionSetToDraft).Status)

	_, err = s.tasks.Transition(s.ctx, task.ID, ports.TaskAction("archive"), s.userID)
	s.ErrorIs(err, entities.ErrInvalidInput)
}

func (s *ServiceSuite) TestSubtaskNamesReuseFreedNumbers() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	s.Equal("T-01", parent.Name)

	first := s.newTask(p.ID, &parent.ID, "First")
	s.Equal("T-01.01", first.Name)

	s.Require().NoError(s.tasks.DeleteTask(s.ctx, first.ID))

	again := s.newTask(p.ID, &parent.ID, "Again")
	s.Equal("T-01.01", again.Name)
}

func (s *ServiceSuite) TestTopLevelNamesArePerProject() {
	p1 := s.newProject(10)
	p2 := s.newProject(10)

	s.Equal("T-01", s.newTask(p1.ID, nil, "a").Name)
	s.Equal("T-02", s.newTask(p1.ID, nil, "b").Name)
	s.Equal("T-01", s.newTask(p2.ID, nil, "c").Name)
}

func (s *ServiceSuite) TestWeightsAreNotRenormalized() {
	p := s.newProject(80)

	a := s.newTask(p.ID, nil, "A")
	s.Equal(100.0, a.Weight)
	s.Equal(80.0, a.MandaysBudget)

	b := s.newTask(p.ID, nil, "B")
	s.Equal(50.0, b.Weight)
	s.Equal(40.0, b.MandaysBudget)

	// the earlier sibling keeps its original share
	s.Equal(100.0, s.reload(a.ID).Weight)
	s.Equal(80.0, s.reload(a.ID).MandaysBudget)
}

func (s *ServiceSuite) TestCreateUnderParentOfAnotherProject() {
	p1 := s.newProject(10)
	p2 := s.newProject(10)
	parent := s.newTask(p1.ID, nil, "Parent")

	_, err := s.tasks.CreateTask(s.ctx, p2.ID, &parent.ID, ports.NewTask{Title: "x"})
	s.ErrorIs(err, entities.ErrParentProject)

	_, err = s.tasks.CreateTasks(s.ctx, ports.CreateTasksRequest{ProjectID: p1.ID})
	s.ErrorIs(err, entities.ErrInvalidInput)
}

func (s *ServiceSuite) TestSubtaskNotes() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	child := s.newTask(p.ID, &parent.ID, "Child")
	s.Require().NoError(s.tasks.DeleteTask(s.ctx, child.ID))

	notes, err := s.tasks.Notes(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Require().Len(notes, 2)
	s.Equal("Subtask T-01.01 created under T-01", notes[0].Body)
	s.Equal("Subtask T-01.01 deleted from parent T-01", notes[1].Body)
}

func (s *ServiceSuite) TestDeleteTaskRemovesSubtreeAndRefreshes() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	child := s.newTask(p.ID, &parent.ID, "Child")

	_, err := s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		TaskID:      child.ID,
		UserID:      s.userID,
		Start:       epoch,
		End:         epoch.Add(time.Hour),
		Description: "work",
	})
	s.Require().NoError(err)

	project, err := s.projects.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(1, project.ActualMandays)

	s.Require().NoError(s.tasks.DeleteTask(s.ctx, parent.ID))

	_, err = s.tasks.GetTask(s.ctx, child.ID)
	s.ErrorIs(err, entities.ErrTaskNotFound)

	project, err = s.projects.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Zero(project.ActualMandays)
	s.Nil(project.ActualStart)
}

func (s *ServiceSuite) TestReindexRenamesInCreationOrder() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	first := s.newTask(p.ID, &parent.ID, "First")
	s.clock.Advance(time.Second)
	second := s.newTask(p.ID, &parent.ID, "Second")
	s.clock.Advance(time.Second)
	third := s.newTask(p.ID, &parent.ID, "Third")
	grandchild := s.newTask(p.ID, &third.ID, "Leaf")
	s.Equal("T-01.03.01", grandchild.Name)

	s.Require().NoError(s.tasks.DeleteTask(s.ctx, first.ID))

	renamed, err := s.tasks.Reindex(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Equal(3, renamed)

	s.Equal("T-01.01", s.reload(second.ID).Name)
	s.Equal("T-01.02", s.reload(third.ID).Name)
	s.Equal("T-01.02.01", s.reload(grandchild.ID).Name)

	renamed, err = s.tasks.Reindex(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Zero(renamed)
}

func (s *ServiceSuite) TestListTasks() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Backend work")
	s.newTask(p.ID, nil, "Frontend work")
	s.newTask(p.ID, &parent.ID, "Database")

	top, err := s.tasks.ListTasks(s.ctx, ports.TaskFilter{ProjectID: &p.ID, TopLevel: true})
	s.Require().NoError(err)
	s.Len(top, 2)

	kids, err := s.tasks.ListTasks(s.ctx, ports.TaskFilter{ParentID: &parent.ID})
	s.Require().NoError(err)
	s.Require().Len(kids, 1)
	s.Equal("Database", kids[0].Title)

	search := "WORK"
	found, err := s.tasks.ListTasks(s.ctx, ports.TaskFilter{ProjectID: &p.ID, Search: &search, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("T-01", found[0].Name)
}

func (s *ServiceSuite) TestTaskSummary() {
	p := s.newProject(10)
	parent := s.newTask(p.ID, nil, "Parent")
	done := s.newTask(p.ID, &parent.ID, "Done")
	s.newTask(p.ID, &parent.ID, "Open")
	s.transition(done.ID, ports.TaskActionStartProgress)
	s.transition(done.ID, ports.TaskActionFinish)

	line, err := s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		TaskID:      parent.ID,
		UserID:      s.userID,
		Start:       epoch,
		End:         epoch.Add(time.Hour),
		Description: "planning",
	})
	s.Require().NoError(err)
	_, err = s.timesheets.ApproveLine(s.ctx, line.ID, s.userID)
	s.Require().NoError(err)

	_, err = s.timer.Start(s.ctx, parent.ID, s.userID)
	s.Require().NoError(err)
	s.clock.Advance(2*time.Hour + 5*time.Second)

	summary, err := s.tasks.Summary(s.ctx, parent.ID, s.userID)
	s.Require().NoError(err)
	s.Equal(2, summary.SubtaskCount)
	s.Equal(50.0, summary.SubtaskDonePercent)
	s.Equal(2, summary.TimesheetCount)
	s.Equal(50.0, summary.TimesheetApprovedPct)
	s.Require().NotNil(summary.TimerStart)
	s.Equal(epoch, *summary.TimerStart)
	s.Equal("02:00:05", summary.RunningDuration)
}

func (s *ServiceSuite) TestUpdateTaskKeepsDerivedFields() {
	p := s.newProject(100)
	parent := s.newTask(p.ID, nil, "Parent")
	done := s.newTask(p.ID, &parent.ID, "Done")
	s.newTask(p.ID, &parent.ID, "Open")
	s.transition(done.ID, ports.TaskActionStartProgress)
	s.transition(done.ID, ports.TaskActionFinish)

	before := s.reload(parent.ID)
	s.Equal(50.0, before.Progress)

	title, desc := "Parent, renamed", "scope agreed with the client"
	start := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)
	updated, err := s.tasks.UpdateTask(s.ctx, parent.ID, ports.UpdateTaskRequest{
		Title:        &title,
		Description:  &desc,
		PlannedStart: &start,
		PlannedEnd:   &end,
	})
	s.Require().NoError(err)

	s.Equal(title, updated.Title)
	s.Require().NotNil(updated.Description)
	s.Equal(desc, *updated.Description)
	s.Equal(start, *updated.PlannedStart)
	s.Equal(end, *updated.PlannedEnd)

	s.Equal("T-01", updated.Name)
	s.Equal(before.Weight, updated.Weight)
	s.Equal(before.MandaysBudget, updated.MandaysBudget)
	s.Equal(before.Progress, updated.Progress)
	s.Equal(before.ActualMandays, updated.ActualMandays)
	s.Equal(before.ActualStart, updated.ActualStart)
	s.Equal(before.Status, updated.Status)

	child := s.reload(done.ID)
	s.Equal("T-01.01", child.Name)
	s.Equal(50.0, child.Weight)
	s.Equal(50.0, child.MandaysBudget)

	// omitted fields are left alone
	again, err := s.tasks.UpdateTask(s.ctx, parent.ID, ports.UpdateTaskRequest{})
	s.Require().NoError(err)
	s.Equal(title, again.Title)
	s.Equal(start, *again.PlannedStart)
}

func (s *ServiceSuite) TestUpdateTaskRejectsBadInput() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")

	start := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := s.tasks.UpdateTask(s.ctx, task.ID, ports.UpdateTaskRequest{PlannedStart: &start, PlannedEnd: &end})
	s.ErrorIs(err, entities.ErrInvalidInput)

	_, err = s.tasks.UpdateTask(s.ctx, task.ID+100, ports.UpdateTaskRequest{})
	s.ErrorIs(err, entities.ErrTaskNotFound)

	s.Nil(s.reload(task.ID).PlannedStart)
}
