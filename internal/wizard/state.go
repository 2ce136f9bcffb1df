// Package wizard is the sale registration state machine. Apply is pure: it
// takes the current session and one event and returns the next session plus
// the platform calls that must happen before the next event can arrive.
// Performing those calls is the caller's job.
package wizard

import (
	"fmt"
	"time"

	"saledesk/backend/internal/domain"
)

type Step int

const (
	StepClientSelection Step = iota + 1
	StepLevelVerification
	StepProductSelection
	StepDetailsConfirmation
	StepPaymentCollection
)

func (s Step) String() string {
	switch s {
	case StepClientSelection:
		return "client_selection"
	case StepLevelVerification:
		return "level_verification"
	case StepProductSelection:
		return "product_selection"
	case StepDetailsConfirmation:
		return "details_confirmation"
	case StepPaymentCollection:
		return "payment_collection"
	default:
		return fmt.Sprintf("step_%d", int(s))
	}
}

// Exit marks a session that has left the wizard. The step pointer is left
// where it was when the exit happened.
type Exit string

const (
	ExitNone      Exit = ""
	ExitRejected  Exit = "rejected"
	ExitCompleted Exit = "completed"
	ExitCancelled Exit = "cancelled"
)

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

type State struct {
	ID         string               `json:"id"`
	Mode       Mode                 `json:"mode"`
	Step       Step                 `json:"step"`
	StepName   string               `json:"step_name"`
	Exit       Exit                 `json:"exit,omitempty"`
	ExitReason string               `json:"exit_reason,omitempty"`
	RedirectTo string               `json:"redirect_to,omitempty"`
	Sale       domain.SaleAggregate `json:"sale"`
	LastError  string               `json:"last_error,omitempty"`
	Operator   string               `json:"operator"`
	Version    int                  `json:"version"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func New(id string, operator string, now time.Time) State {
	return State{
		ID:        id,
		Mode:      ModeNew,
		Step:      StepClientSelection,
		StepName:  StepClientSelection.String(),
		Operator:  operator,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s State) Finished() bool {
	return s.Exit != ExitNone
}

// CanCancel reports whether the cancel action is offered: only on steps 2-4,
// once a financing plan is assigned, and while no money has moved.
func CanCancel(s State) bool {
	if s.Finished() {
		return false
	}
	if s.Step < StepLevelVerification || s.Step > StepDetailsConfirmation {
		return false
	}
	if s.Sale.FinancingPlan == nil {
		return false
	}
	return PaymentCount(s.Sale) == 0
}

func CanFinalize(s State) bool {
	return !s.Finished() && s.Step == StepPaymentCollection && s.Sale.IsEnrollmentReady
}

// PaymentCount counts payments recorded on the aggregate or on any of its
// installments.
func PaymentCount(agg domain.SaleAggregate) int {
	seen := make(map[int64]struct{})
	count := 0
	add := func(p domain.Payment) {
		if p.ID != 0 {
			if _, dup := seen[p.ID]; dup {
				return
			}
			seen[p.ID] = struct{}{}
		}
		count++
	}
	for _, p := range agg.Payments {
		add(p)
	}
	for _, inst := range agg.Installments {
		for _, p := range inst.Payments {
			add(p)
		}
	}
	return count
}

// ValidationError is a rejected user action. The session is unchanged.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (s State) clone() State {
	next := s
	next.Sale.Installments = append([]domain.Installment(nil), s.Sale.Installments...)
	next.Sale.Payments = append([]domain.Payment(nil), s.Sale.Payments...)
	next.Sale.PaymentMethods = append([]domain.PaymentMethod(nil), s.Sale.PaymentMethods...)
	return next
}

func (s *State) moveTo(step Step) {
	s.Step = step
	s.StepName = step.String()
}
