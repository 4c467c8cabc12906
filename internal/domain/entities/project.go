package entities

import "time"

type ProjectStatus string

const (
	ProjectStatusNew                 ProjectStatus = "new"
	ProjectStatusWaiting             ProjectStatus = "waiting"
	ProjectStatusConfirm             ProjectStatus = "confirm"
	ProjectStatusSalesDirToApprove   ProjectStatus = "sales_dir_to_approve"
	ProjectStatusHeadPMOToApprove    ProjectStatus = "head_pmo_to_approve"
	ProjectStatusOperation           ProjectStatus = "operation"
	ProjectStatusBudgetApprove       ProjectStatus = "budget_approve"
	ProjectStatusFinanceDirToApprove ProjectStatus = "finance_dir_to_approve"
	ProjectStatusFullApprove         ProjectStatus = "full_approve"
	ProjectStatusClosed              ProjectStatus = "closed"
	ProjectStatusFailed              ProjectStatus = "failed"
)

// ProjectWorkflow is the approval chain advanced by Confirm, in order.
var ProjectWorkflow = []ProjectStatus{
	ProjectStatusNew,
	ProjectStatusWaiting,
	ProjectStatusConfirm,
	ProjectStatusSalesDirToApprove,
	ProjectStatusHeadPMOToApprove,
	ProjectStatusOperation,
	ProjectStatusBudgetApprove,
	ProjectStatusFinanceDirToApprove,
	ProjectStatusFullApprove,
	ProjectStatusClosed,
}

// Project is the aggregation root of a task tree
type Project struct {
	ID            int           `json:"id" db:"id"`
	Code          string        `json:"code" db:"code"`
	Label         string        `json:"label" db:"label"`
	Status        ProjectStatus `json:"status" db:"status"`
	MandaysBudget float64       `json:"mandays_budget" db:"mandays_budget"`
	ActualMandays int           `json:"actual_mandays" db:"actual_mandays"`
	Progress      float64       `json:"progress" db:"progress"`
	ActualStart   *time.Time    `json:"actual_start" db:"actual_start"`
	ActualEnd     *time.Time    `json:"actual_end" db:"actual_end"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Confirm advances the project one step along ProjectWorkflow. It reports
// false, leaving the status alone, when there is no next step.
func (p *Project) Confirm() bool {
	for i, status := range ProjectWorkflow {
		if status == p.Status && i+1 < len(ProjectWorkflow) {
			p.Status = ProjectWorkflow[i+1]
			return true
		}
	}
	return false
}

func (p *Project) Fail() {
	p.Status = ProjectStatusFailed
}

func (p *Project) ResetToDraft() {
	p.Status = ProjectStatusNew
}

func (p *Project) IsClosed() bool {
	return p.Status == ProjectStatusClosed || p.Status == ProjectStatusFailed
}
