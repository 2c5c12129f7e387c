package domain

import "fmt"

type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskDoing     TaskStatus = "doing"
	TaskDone      TaskStatus = "done"
	TaskDismissed TaskStatus = "dismissed"
)

var TaskStatuses = []TaskStatus{TaskOpen, TaskDoing, TaskDone, TaskDismissed}

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskOpen, TaskDoing, TaskDone, TaskDismissed:
		return TaskStatus(s), nil
	}
	return "", fmt.Errorf("invalid task status %q", s)
}

// Active is true for statuses shown on the board.
func (s TaskStatus) Active() bool {
	switch s {
	case TaskOpen, TaskDoing:
		return true
	case TaskDone, TaskDismissed:
		return false
	}
	return false
}

type Priority string

const (
	P1 Priority = "p1"
	P2 Priority = "p2"
	P3 Priority = "p3"
)

func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case P1, P2, P3:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// ImpactScore is the score assigned to manually created tasks.
func (p Priority) ImpactScore() int {
	switch p {
	case P1:
		return 75
	case P2:
		return 50
	case P3:
		return 25
	}
	return 0
}

type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

func ParseEffort(s string) (Effort, error) {
	switch Effort(s) {
	case EffortLow, EffortMedium, EffortHigh:
		return Effort(s), nil
	}
	return "", fmt.Errorf("invalid effort %q", s)
}

type PlannerGroup string

const (
	GroupToday PlannerGroup = "today"
	GroupWeek  PlannerGroup = "week"
	GroupMonth PlannerGroup = "month"
)

var PlannerGroups = []PlannerGroup{GroupToday, GroupWeek, GroupMonth}

func ParsePlannerGroup(s string) (PlannerGroup, error) {
	switch PlannerGroup(s) {
	case GroupToday, GroupWeek, GroupMonth:
		return PlannerGroup(s), nil
	}
	return "", fmt.Errorf("invalid planner group %q", s)
}

// DefaultDueInDays is used when a plan item carries no explicit due offset.
func (g PlannerGroup) DefaultDueInDays(periodDays int) int {
	switch g {
	case GroupToday:
		return 1
	case GroupWeek:
		return 7
	case GroupMonth:
		return periodDays
	}
	return periodDays
}

type TaskSource string

const (
	SourceInsights TaskSource = "insights"
	SourceManual   TaskSource = "manual"
)

func ParseTaskSource(s string) (TaskSource, error) {
	switch TaskSource(s) {
	case SourceInsights, SourceManual:
		return TaskSource(s), nil
	}
	return "", fmt.Errorf("invalid task source %q", s)
}

type Creator string

const (
	CreatedBySystem Creator = "system"
	CreatedByUser   Creator = "user"
)

func ParseCreator(s string) (Creator, error) {
	switch Creator(s) {
	case CreatedBySystem, CreatedByUser:
		return Creator(s), nil
	}
	return "", fmt.Errorf("invalid creator %q", s)
}

type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanApplied  PlanStatus = "applied"
	PlanArchived PlanStatus = "archived"
)

func ParsePlanStatus(s string) (PlanStatus, error) {
	switch PlanStatus(s) {
	case PlanDraft, PlanApplied, PlanArchived:
		return PlanStatus(s), nil
	}
	return "", fmt.Errorf("invalid plan status %q", s)
}

// Capability names checked against a domain.
type Capability string

const (
	CapViewInsights Capability = "insights.view"
	CapRunInsights  Capability = "insights.run"
)
