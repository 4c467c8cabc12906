package services

import (
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

func (s *ServiceSuite) saveLine(taskID int, start time.Time, d time.Duration) *entities.TimesheetLine {
	line, err := s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		TaskID:      taskID,
		UserID:      s.userID,
		Start:       start,
		End:         start.Add(d),
		Description: "manual entry",
	})
	s.Require().NoError(err)
	return line
}

func (s *ServiceSuite) TestSaveLineComputesHours() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")

	line := s.saveLine(task.ID, epoch, 90*time.Minute)
	s.Equal(1.5, line.UnitAmount)
	s.Equal(s.employee.ID, line.EmployeeID)
	s.Equal(entities.LineStateWaitingApproval, line.State)

	hours := 3.0
	updated, err := s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		ID:          &line.ID,
		TaskID:      task.ID,
		EmployeeID:  &s.employee.ID,
		Start:       epoch,
		End:         epoch.Add(2 * time.Hour),
		Hours:       &hours,
		Description: "edited",
	})
	s.Require().NoError(err)
	s.Equal(line.ID, updated.ID)
	s.Equal(3.0, updated.UnitAmount)
	s.Equal("edited", updated.Description)

	reloaded := s.reload(task.ID)
	s.Equal(1, reloaded.ActualMandays)
	s.Equal(epoch.Add(2*time.Hour), *reloaded.ActualEnd)
}

func (s *ServiceSuite) TestSaveLineValidation() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")
	other := s.newTask(p.ID, nil, "Other")

	_, err := s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		TaskID: task.ID, UserID: s.userID, Start: epoch, End: epoch.Add(-time.Minute), Description: "x",
	})
	s.ErrorIs(err, entities.ErrInvalidTimeRange)

	_, err = s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		TaskID: task.ID, UserID: s.userID, Start: epoch, End: epoch.Add(time.Hour),
	})
	s.ErrorIs(err, entities.ErrInvalidInput)

	line := s.saveLine(task.ID, epoch, time.Hour)
	_, err = s.timesheets.SaveLine(s.ctx, ports.SaveTimesheetRequest{
		ID: &line.ID, TaskID: other.ID, UserID: s.userID, Start: epoch, End: epoch.Add(time.Hour), Description: "x",
	})
	s.ErrorIs(err, entities.ErrLineNotOnTask)
}

func (s *ServiceSuite) TestDeleteLine() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")
	other := s.newTask(p.ID, nil, "Other")
	line := s.saveLine(task.ID, epoch, time.Hour)

	err := s.timesheets.DeleteLine(s.ctx, other.ID, line.ID)
	s.ErrorIs(err, entities.ErrLineNotOnTask)

	s.Require().NoError(s.timesheets.DeleteLine(s.ctx, task.ID, line.ID))
	lines, err := s.timesheets.ListLines(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Empty(lines)
	s.Zero(s.reload(task.ID).ActualMandays)
}

func (s *ServiceSuite) TestApproveLine() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")

	res, err := s.timer.Start(s.ctx, task.ID, s.userID)
	s.Require().NoError(err)
	_, err = s.timesheets.ApproveLine(s.ctx, res.Line.ID, s.userID)
	s.ErrorIs(err, entities.ErrTimesheetOpen)

	s.clock.Advance(time.Hour)
	_, err = s.timer.Stop(s.ctx, ports.StopTimerRequest{TaskID: task.ID, UserID: s.userID, Description: "done"})
	s.Require().NoError(err)

	approved, err := s.timesheets.ApproveLine(s.ctx, res.Line.ID, s.userID)
	s.Require().NoError(err)
	s.Equal(entities.LineStateApproved, approved.State)

	again, err := s.timesheets.ApproveLine(s.ctx, res.Line.ID, s.userID)
	s.Require().NoError(err)
	s.Equal(entities.LineStateApproved, again.State)
}

func (s *ServiceSuite) TestCorrectionApprovalRewritesLine() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")
	line := s.saveLine(task.ID, epoch, time.Hour)

	req, err := s.timesheets.RequestCorrection(s.ctx, ports.CorrectionRequestInput{
		LineID:      line.ID,
		UserID:      s.userID,
		Start:       epoch.Add(-30 * time.Minute),
		End:         epoch.Add(2 * time.Hour),
		Description: "forgot to start the timer",
	})
	s.Require().NoError(err)
	s.Equal(2.5, req.Hours)
	s.Equal(epoch, req.CurrentStart)
	s.Equal(entities.LineStateWaitingApproval, req.State)

	approved, err := s.timesheets.ApproveCorrection(s.ctx, req.ID, s.userID)
	s.Require().NoError(err)
	s.True(approved.IsApproved())

	lines, err := s.timesheets.ListLines(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(lines, 1)
	s.Equal(2.5, lines[0].UnitAmount)
	s.Equal(epoch.Add(-30*time.Minute), lines[0].Start)
	s.Equal("forgot to start the timer", lines[0].Description)
	s.Equal(epoch.Add(-30*time.Minute), *s.reload(task.ID).ActualStart)

	_, err = s.timesheets.ApproveCorrection(s.ctx, req.ID, s.userID)
	s.ErrorIs(err, entities.ErrCorrectionApproved)

	reqs, err := s.timesheets.ListCorrections(s.ctx, line.ID)
	s.Require().NoError(err)
	s.Len(reqs, 1)
}

func (s *ServiceSuite) TestCorrectionNeedsClosedLine() {
	p := s.newProject(10)
	task := s.newTask(p.ID, nil, "Task")
	res, err := s.timer.Start(s.ctx, task.ID, s.userID)
	s.Require().NoError(err)

	_, err = s.timesheets.RequestCorrection(s.ctx, ports.CorrectionRequestInput{
		LineID: res.Line.ID, UserID: s.userID, Start: epoch, End: epoch.Add(time.Hour), Description: "x",
	})
	s.ErrorIs(err, entities.ErrTimesheetOpen)
}
