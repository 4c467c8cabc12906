package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// TopLevelPrefix starts the name of every task directly under a project.
const TopLevelPrefix = "T-"

// SequencePrefix returns the prefix shared by the children of parent, or the
// top-level prefix when parent is nil.
func SequencePrefix(parent *entities.Task) string {
	if parent == nil {
		return TopLevelPrefix
	}
	return parent.Name + "."
}

// FormatSequence renders the n-th name under prefix, zero padded to two digits.
func FormatSequence(prefix string, n int) string {
	return fmt.Sprintf("%s%02d", prefix, n)
}

// NextSequence picks the name after the highest numbered sibling under prefix.
// It also reports the lowest number below that maximum no sibling uses, or nil.
// Sibling names that do not parse are ignored.
func NextSequence(prefix string, siblings []string) (string, *int) {
	used := make(map[int]bool, len(siblings))
	highest := 0
	for _, name := range siblings {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil || n <= 0 {
			continue
		}
		used[n] = true
		if n > highest {
			highest = n
		}
	}

	var missing *int
	for n := 1; n < highest; n++ {
		if !used[n] {
			gap := n
			missing = &gap
			break
		}
	}
	return FormatSequence(prefix, highest+1), missing
}

// SequenceNamer names tasks from their current siblings
type SequenceNamer struct {
	taskRepo ports.TaskRepository
}

func NewSequenceNamer(taskRepo ports.TaskRepository) *SequenceNamer {
	return &SequenceNamer{taskRepo: taskRepo}
}

// siblingQuery selects the tasks that share a naming scope with a new task.
func siblingQuery(projectID int, parentID *int) ports.Query {
	if parentID == nil {
		return ports.Where(ports.Eq(ports.FieldProjectID, projectID), ports.IsNull(ports.FieldParentID))
	}
	return ports.Where(ports.Eq(ports.FieldParentID, *parentID))
}

// Next returns the name for a new task under parent (or at project top level).
func (n *SequenceNamer) Next(ctx context.Context, projectID int, parent *entities.Task) (string, *int, error) {
	var parentID *int
	if parent != nil {
		parentID = &parent.ID
	}
	siblings, err := n.taskRepo.Search(ctx, siblingQuery(projectID, parentID))
	if err != nil {
		return "", nil, fmt.Errorf("failed to load sibling tasks: %w", err)
	}
	names := make([]string, len(siblings))
	for i, s := range siblings {
		names[i] = s.Name
	}
	name, missing := NextSequence(SequencePrefix(parent), names)
	return name, missing, nil
}

// Reindex renames every descendant of rootID as <parent>.NN, numbering
// children in creation order. It returns the number of renamed tasks.
func (n *SequenceNamer) Reindex(ctx context.Context, rootID int) (int, error) {
	root, err := n.taskRepo.GetByID(ctx, rootID)
	if err != nil {
		return 0, fmt.Errorf("task not found: %w", err)
	}

	renamed := 0
	seen := map[int]bool{root.ID: true}
	queue := []*entities.Task{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		children, err := n.taskRepo.Search(ctx, ports.Where(ports.Eq(ports.FieldParentID, parent.ID)).
			OrderBy(ports.FieldCreatedAt, false).
			OrderBy(ports.FieldID, false))
		if err != nil {
			return renamed, fmt.Errorf("failed to load subtasks of %d: %w", parent.ID, err)
		}

		prefix := SequencePrefix(parent)
		for i, child := range children {
			if seen[child.ID] {
				return renamed, entities.ErrHierarchyCycle.Withf("task %d is its own ancestor", child.ID)
			}
			seen[child.ID] = true

			name := FormatSequence(prefix, i+1)
			if child.Name != name {
				child.Name = name
				if err := n.taskRepo.Update(ctx, child); err != nil {
					return renamed, fmt.Errorf("failed to rename task %d: %w", child.ID, err)
				}
				renamed++
			}
			queue = append(queue, child)
		}
	}
	return renamed, nil
}
