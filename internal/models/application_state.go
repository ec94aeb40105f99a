package models

import "fmt"

// ApplicationState is a stage of the loan application workflow
type ApplicationState string

const (
	StateDraft                ApplicationState = "draft"
	StateSubmitted            ApplicationState = "submitted"
	StateInitialScreening     ApplicationState = "initial_screening"
	StateFinancialAssessment  ApplicationState = "financial_assessment"
	StateCollateralAssessment ApplicationState = "collateral_assessment"
	StateCreditScoring        ApplicationState = "credit_scoring"
	StateInternalApprovals    ApplicationState = "internal_approvals"
	StateApproved             ApplicationState = "approved"
	StateSanctioned           ApplicationState = "sanctioned"
	StateDisbursed            ApplicationState = "disbursed"
	StateRejected             ApplicationState = "rejected"
	StateCancelled            ApplicationState = "cancelled"
)

// IsValid reports whether s is a known state
func (s ApplicationState) IsValid() bool {
	switch s {
	case StateDraft, StateSubmitted, StateInitialScreening, StateFinancialAssessment,
		StateCollateralAssessment, StateCreditScoring, StateInternalApprovals,
		StateApproved, StateSanctioned, StateDisbursed, StateRejected, StateCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the workflow
func (s ApplicationState) IsTerminal() bool {
	return s == StateDisbursed || s == StateRejected || s == StateCancelled
}

// TransitionName names a workflow action
type TransitionName string

const (
	TransitionSubmit            TransitionName = "submit"
	TransitionScreenInitially   TransitionName = "screen_initially"
	TransitionAssessFinancials  TransitionName = "assess_financials"
	TransitionAssessCollateral  TransitionName = "assess_collateral"
	TransitionScoreCredit       TransitionName = "score_credit"
	TransitionApproveInternally TransitionName = "approve_internally"
	TransitionApprove           TransitionName = "approve"
	TransitionSanction          TransitionName = "sanction"
	TransitionDisburse          TransitionName = "disburse"
	TransitionReject            TransitionName = "reject"
	TransitionCancel            TransitionName = "cancel"
)

// Transition is one edge of the workflow. From is empty for the side exits,
// which are reachable from every state.
type Transition struct {
	Name TransitionName
	From ApplicationState
	To   ApplicationState
}

// IsSideExit reports whether t is reject or cancel
func (t Transition) IsSideExit() bool {
	return t.From == ""
}

// Transitions is the workflow in order
var Transitions = []Transition{
	{Name: TransitionSubmit, From: StateDraft, To: StateSubmitted},
	{Name: TransitionScreenInitially, From: StateSubmitted, To: StateInitialScreening},
	{Name: TransitionAssessFinancials, From: StateInitialScreening, To: StateFinancialAssessment},
	{Name: TransitionAssessCollateral, From: StateFinancialAssessment, To: StateCollateralAssessment},
	{Name: TransitionScoreCredit, From: StateCollateralAssessment, To: StateCreditScoring},
	{Name: TransitionApproveInternally, From: StateCreditScoring, To: StateInternalApprovals},
	{Name: TransitionApprove, From: StateInternalApprovals, To: StateApproved},
	{Name: TransitionSanction, From: StateApproved, To: StateSanctioned},
	{Name: TransitionDisburse, From: StateSanctioned, To: StateDisbursed},
	{Name: TransitionReject, To: StateRejected},
	{Name: TransitionCancel, To: StateCancelled},
}

// LookupTransition finds a transition by name
func LookupTransition(name TransitionName) (Transition, error) {
	for _, t := range Transitions {
		if t.Name == name {
			return t, nil
		}
	}
	return Transition{}, NewValidationError("action", fmt.Sprintf("unknown transition %q", name))
}
