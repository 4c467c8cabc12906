package http

import "github.com/labstack/echo/v4"

// Handlers groups every API handler registered under /api/v1
type Handlers struct {
	Projects    *ProjectHandler
	Tasks       *TaskHandler
	Timer       *TimeHandler
	Timesheets  *TimesheetHandler
	Attachments *AttachmentHandler
	Employees   *EmployeeHandler
}

// Register mounts the API routes on g. Authentication is expected to be
// applied to g by the caller.
func (h Handlers) Register(g *echo.Group) {
	employees := g.Group("/employees")
	employees.GET("/me", h.Employees.GetCurrentEmployee)
	employees.POST("", h.Employees.CreateEmployee)
	employees.GET("/:id", h.Employees.GetEmployee)

	projects := g.Group("/projects")
	projects.GET("", h.Projects.ListProjects)
	projects.POST("", h.Projects.CreateProject)
	projects.GET("/:id", h.Projects.GetProject)
	projects.PUT("/:id", h.Projects.UpdateProject)
	projects.DELETE("/:id", h.Projects.DeleteProject)
	projects.GET("/:id/tasks", h.Projects.GetProjectTasks)
	projects.POST("/:id/refresh", h.Projects.Refresh)
	projects.POST("/:id/actions/:action", h.Projects.Transition)

	tasks := g.Group("/tasks")
	tasks.GET("", h.Tasks.ListTasks)
	tasks.POST("", h.Tasks.CreateTasks)
	tasks.GET("/:id", h.Tasks.GetTask)
	tasks.PUT("/:id", h.Tasks.UpdateTask)
	tasks.DELETE("/:id", h.Tasks.DeleteTask)
	tasks.GET("/:id/summary", h.Tasks.Summary)
	tasks.GET("/:id/notes", h.Tasks.Notes)
	tasks.POST("/:id/reindex", h.Tasks.Reindex)
	tasks.POST("/:id/actions/:action", h.Tasks.Transition)

	tasks.GET("/:id/timer", h.Timer.TimerStatus)
	tasks.POST("/:id/timer/start", h.Timer.StartTimer)
	tasks.POST("/:id/timer/pause", h.Timer.PauseTimer)
	tasks.POST("/:id/timer/resume", h.Timer.ResumeTimer)
	tasks.POST("/:id/timer/stop", h.Timer.StopTimer)

	tasks.GET("/:id/timesheets", h.Timesheets.ListLines)
	tasks.POST("/:id/timesheets", h.Timesheets.SaveLine)
	tasks.PUT("/:id/timesheets/:line_id", h.Timesheets.SaveLine)
	tasks.DELETE("/:id/timesheets/:line_id", h.Timesheets.DeleteLine)

	timesheets := g.Group("/timesheets")
	timesheets.POST("/:line_id/approve", h.Timesheets.ApproveLine)
	timesheets.GET("/:line_id/corrections", h.Timesheets.ListCorrections)
	timesheets.POST("/:line_id/corrections", h.Timesheets.RequestCorrection)
	g.POST("/corrections/:id/approve", h.Timesheets.ApproveCorrection)

	g.GET("/attachments/:id", h.Attachments.GetAttachment)
}
