package domain

type Domain struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Host      string `json:"host"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Member struct {
	DomainID  string `json:"domain_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID           string        `json:"id"`
	DomainID     string        `json:"domain_id"`
	UserID       *string       `json:"user_id,omitempty"`
	PlanID       *string       `json:"plan_id,omitempty"`
	Source       TaskSource    `json:"source"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Priority     Priority      `json:"priority"`
	ImpactScore  int           `json:"impact_score"`
	Effort       Effort        `json:"effort"`
	Status       TaskStatus    `json:"status"`
	DueAt        *string       `json:"due_at,omitempty" format:"date-time"`
	PlannerGroup *PlannerGroup `json:"planner_group,omitempty"`
	CreatedBy    Creator       `json:"created_by"`
	MatchKey     *string       `json:"-"`
	CreatedAt    string        `json:"created_at" format:"date-time"`
	UpdatedAt    string        `json:"updated_at" format:"date-time"`
}

// OnBoard reports whether the task belongs on the planner board.
func (t Task) OnBoard() bool {
	return t.Status.Active() && t.PlannerGroup != nil
}

type Plan struct {
	ID          string     `json:"id"`
	DomainID    string     `json:"domain_id"`
	RequestedBy string     `json:"requested_by"`
	PeriodDays  int        `json:"period_days"`
	ContentJSON string     `json:"-"`
	Status      PlanStatus `json:"status"`
	AppliedAt   *string    `json:"applied_at,omitempty" format:"date-time"`
	ArchivedAt  *string    `json:"archived_at,omitempty" format:"date-time"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
}

// PlanContent is the generated document a plan carries.
type PlanContent struct {
	Version int        `json:"version"`
	Summary string     `json:"summary,omitempty"`
	Items   []PlanItem `json:"items"`
}

// PlanItem is one proposed task. Pointer fields distinguish "missing" from
// zero values so the action planner can reject incomplete items.
type PlanItem struct {
	Key          string `json:"key,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Priority     string `json:"priority"`
	ImpactScore  *int   `json:"impact_score"`
	Effort       string `json:"effort"`
	PlannerGroup string `json:"planner_group"`
	DueInDays    *int   `json:"due_in_days,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	DomainID   string `json:"domain_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
