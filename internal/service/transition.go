package service

import (
	"fmt"
	"strings"

	"github.com/certilog/certilog-api/internal/models"
)

// DefaultConfirmationStatement is required when a target status carries
// requirements but none of them supplies its own statement.
const DefaultConfirmationStatement = "I confirm this status change"

// EvaluateTransition decides whether a proposed mutation may proceed. It is
// pure: all inputs are fetched by the caller and no writes happen here.
// Outcomes are values; only the store layer produces errors.
//
// The current status is checked first: a record sitting in a final or
// non-editable status cannot be mutated at all, regardless of what the
// request asks for. Requirements are then validated against the target
// status: contradictory confirmation statements are surfaced as a conflict
// (a rule-catalog defect, not a request problem), missing required fields
// are collected over the merged record+patch view, and the confirmation
// text must match the agreed statement exactly after trimming.
func EvaluateTransition(cert *models.Certificate, current *models.StatusDefinition, requirements []models.ValidationRequirement, req models.TransitionRequest) models.TransitionOutcome {
	if current.Locked() {
		return models.TransitionOutcome{
			Decision: models.DecisionBlocked,
			Reason:   fmt.Sprintf("status %s forbids edits", current.Name),
		}
	}

	if !req.StatusChangeRequested(cert.Status) {
		// Field-only mutation: nothing to validate beyond the lock above.
		return models.TransitionOutcome{Decision: models.DecisionApply}
	}

	if len(requirements) == 0 {
		return models.TransitionOutcome{Decision: models.DecisionApply}
	}

	statements := distinctStatements(requirements)
	if len(statements) > 1 {
		return models.TransitionOutcome{
			Decision: models.DecisionRejected,
			Conflict: true,
			Reason:   fmt.Sprintf("status %s carries %d contradictory confirmation statements", *req.TargetStatus, len(statements)),
		}
	}

	missing := missingFields(cert, requirements, req.Patch)
	if len(missing) > 0 {
		return models.TransitionOutcome{
			Decision:      models.DecisionRejected,
			MissingFields: missing,
		}
	}

	statement := DefaultConfirmationStatement
	if len(statements) == 1 {
		statement = statements[0]
	}
	if !req.Confirmed || strings.TrimSpace(req.ConfirmationText) != statement {
		return models.TransitionOutcome{
			Decision:              models.DecisionRejected,
			RequiresConfirmation:  true,
			ConfirmationStatement: statement,
		}
	}

	return models.TransitionOutcome{Decision: models.DecisionApply}
}

// distinctStatements returns the unique non-empty confirmation statements in
// catalog order.
func distinctStatements(requirements []models.ValidationRequirement) []string {
	seen := make(map[string]struct{}, len(requirements))
	statements := make([]string, 0, 1)
	for _, req := range requirements {
		if req.ConfirmationStatement == nil {
			continue
		}
		statement := strings.TrimSpace(*req.ConfirmationStatement)
		if statement == "" {
			continue
		}
		if _, ok := seen[statement]; ok {
			continue
		}
		seen[statement] = struct{}{}
		statements = append(statements, statement)
	}
	return statements
}

// missingFields collects every required field the merged record+patch view
// leaves absent. A numeric zero is present; absent means nil or blank.
func missingFields(cert *models.Certificate, requirements []models.ValidationRequirement, patch models.CertificatePatch) []models.RequiredField {
	seen := make(map[models.RequiredField]struct{}, len(requirements))
	missing := make([]models.RequiredField, 0)
	for _, req := range requirements {
		if req.RequiredField == nil || *req.RequiredField == "" {
			continue
		}
		field := *req.RequiredField
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		if _, present := patch.FieldValue(cert, field); !present {
			missing = append(missing, field)
		}
	}
	return missing
}

// RejectionReason renders a human-facing explanation for a non-applied
// outcome, used by the bulk flow's per-record reporting.
func RejectionReason(outcome models.TransitionOutcome) string {
	switch {
	case outcome.Decision == models.DecisionBlocked:
		return outcome.Reason
	case outcome.Conflict:
		return outcome.Reason
	case len(outcome.MissingFields) > 0:
		fields := make([]string, len(outcome.MissingFields))
		for i, f := range outcome.MissingFields {
			fields[i] = string(f)
		}
		return "missing required fields: " + strings.Join(fields, ", ")
	case outcome.RequiresConfirmation:
		return "confirmation required: " + outcome.ConfirmationStatement
	}
	return outcome.Reason
}
