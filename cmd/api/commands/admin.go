package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/ports"
)

// withApp bootstraps the services around run and closes them afterwards
func withApp(configFile *string, run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(*configFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), cmd, a, args)
	}
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewTaskCommand creates task maintenance commands
func NewTaskCommand(configFile *string) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task maintenance commands",
	}

	taskCmd.AddCommand(&cobra.Command{
		Use:   "reindex <task-id>",
		Short: "Rename the subtasks of a task to <name>-NN in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configFile, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			renamed, err := a.services.Tasks.Reindex(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %d subtasks\n", renamed)
			return nil
		}),
	})

	return taskCmd
}

// NewProjectCommand creates project maintenance commands
func NewProjectCommand(configFile *string) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "projects",
		Short: "Project maintenance commands",
	}

	projectCmd.AddCommand(&cobra.Command{
		Use:   "refresh <project-id>",
		Short: "Recompute task and project rollups",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configFile, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			project, err := a.services.Projects.Refresh(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, project)
		}),
	})

	return projectCmd
}

// NewEmployeeCommand creates the employee management command
func NewEmployeeCommand(configFile *string) *cobra.Command {
	employeeCmd := &cobra.Command{
		Use:   "employees",
		Short: "Employee management commands",
	}

	var userFlag string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register an employee and link it to a user uuid",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configFile, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			req := ports.CreateEmployeeRequest{Name: args[0]}
			if userFlag != "" {
				userID, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("invalid user uuid: %w", err)
				}
				req.UserID = userID
			}
			employee, err := a.services.Employees.CreateEmployee(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, employee)
		}),
	}
	addCmd.Flags().StringVar(&userFlag, "user", "", "user uuid to link (generated when empty)")

	employeeCmd.AddCommand(addCmd)
	return employeeCmd
}

// NewAuthCommand creates the token issuing command. The API itself has no
// login endpoint.
func NewAuthCommand(configFile *string) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "token <user-uuid>",
		Short: "Issue a bearer token for an employee's user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(configFile, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user uuid: %w", err)
			}
			token, err := a.services.Auth.IssueToken(ctx, userID)
			if err != nil {
				return err
			}
			a.log.LogSecurityEvent("token_issued", userID.String(), "cli", nil)
			return printJSON(cmd, token)
		}),
	})

	return authCmd
}
