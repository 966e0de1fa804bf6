package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/models"
)

func strPtr(v string) *string {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func editableStatus(name string) *models.StatusDefinition {
	return &models.StatusDefinition{Name: name, CanEdit: true}
}

func baseCertificate() *models.Certificate {
	return &models.Certificate{
		ID:     "cert-1",
		Number: "C-001",
		Title:  "Forklift operator",
		Status: "draft",
	}
}

func requirement(field *models.RequiredField, statement *string) models.ValidationRequirement {
	return models.ValidationRequirement{
		ID:                    "req-1",
		StatusName:            "paid",
		Name:                  "payment complete",
		RequiredField:         field,
		ConfirmationStatement: statement,
	}
}

func TestEvaluateTransitionFieldOnlyEdit(t *testing.T) {
	cert := baseCertificate()
	req := models.TransitionRequest{
		CertificateID: cert.ID,
		Patch:         models.CertificatePatch{Title: strPtr("Updated title")},
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), nil, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionBlockedByFinalStatus(t *testing.T) {
	cert := baseCertificate()
	cert.Status = "archived"
	final := &models.StatusDefinition{Name: "archived", CanEdit: true, IsFinal: true}

	for _, req := range []models.TransitionRequest{
		{CertificateID: cert.ID, Patch: models.CertificatePatch{Title: strPtr("x")}},
		{CertificateID: cert.ID, TargetStatus: strPtr("draft"), Confirmed: true},
	} {
		outcome := EvaluateTransition(cert, final, nil, req)
		assert.Equal(t, models.DecisionBlocked, outcome.Decision)
		assert.Contains(t, outcome.Reason, "archived")
	}
}

func TestEvaluateTransitionBlockedByNonEditableStatus(t *testing.T) {
	cert := baseCertificate()
	cert.Status = "locked"
	locked := &models.StatusDefinition{Name: "locked", CanEdit: false}

	outcome := EvaluateTransition(cert, locked, nil, models.TransitionRequest{
		CertificateID: cert.ID,
		Patch:         models.CertificatePatch{Notes: strPtr("note")},
	})

	assert.Equal(t, models.DecisionBlocked, outcome.Decision)
}

func TestEvaluateTransitionNoRequirementsApplies(t *testing.T) {
	cert := baseCertificate()
	req := models.TransitionRequest{
		CertificateID: cert.ID,
		TargetStatus:  strPtr("in-progress"),
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), nil, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionSameStatusSkipsRequirements(t *testing.T) {
	cert := baseCertificate()
	field := models.FieldCost
	requirements := []models.ValidationRequirement{requirement(&field, nil)}
	req := models.TransitionRequest{
		CertificateID: cert.ID,
		TargetStatus:  strPtr("draft"),
		Patch:         models.CertificatePatch{Title: strPtr("retitled")},
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionMissingFields(t *testing.T) {
	cert := baseCertificate()
	cost := models.FieldCost
	order := models.FieldOrderNumber
	requirements := []models.ValidationRequirement{
		requirement(&cost, nil),
		requirement(&order, nil),
	}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: DefaultConfirmationStatement,
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	require.Equal(t, models.DecisionRejected, outcome.Decision)
	assert.ElementsMatch(t, []models.RequiredField{models.FieldCost, models.FieldOrderNumber}, outcome.MissingFields)
	assert.False(t, outcome.RequiresConfirmation)
}

func TestEvaluateTransitionZeroCostIsPresent(t *testing.T) {
	cert := baseCertificate()
	cert.Cost = int64Ptr(0)
	cost := models.FieldCost
	requirements := []models.ValidationRequirement{requirement(&cost, nil)}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: DefaultConfirmationStatement,
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionPatchSatisfiesRequirement(t *testing.T) {
	cert := baseCertificate()
	cost := models.FieldCost
	requirements := []models.ValidationRequirement{requirement(&cost, nil)}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Patch:            models.CertificatePatch{Cost: int64Ptr(15000)},
		Confirmed:        true,
		ConfirmationText: DefaultConfirmationStatement,
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionBlankStringIsMissing(t *testing.T) {
	cert := baseCertificate()
	cert.OrderNumber = strPtr("   ")
	order := models.FieldOrderNumber
	requirements := []models.ValidationRequirement{requirement(&order, nil)}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: DefaultConfirmationStatement,
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	require.Equal(t, models.DecisionRejected, outcome.Decision)
	assert.Equal(t, []models.RequiredField{models.FieldOrderNumber}, outcome.MissingFields)
}

func TestEvaluateTransitionConfirmationRequired(t *testing.T) {
	cert := baseCertificate()
	requirements := []models.ValidationRequirement{requirement(nil, strPtr("I verified the payment"))}
	req := models.TransitionRequest{
		CertificateID: cert.ID,
		TargetStatus:  strPtr("paid"),
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	require.Equal(t, models.DecisionRejected, outcome.Decision)
	assert.True(t, outcome.RequiresConfirmation)
	assert.Equal(t, "I verified the payment", outcome.ConfirmationStatement)
}

func TestEvaluateTransitionConfirmationExactMatch(t *testing.T) {
	cert := baseCertificate()
	requirements := []models.ValidationRequirement{requirement(nil, strPtr("I verified the payment"))}

	cases := []struct {
		name     string
		text     string
		decision models.TransitionDecision
	}{
		{"exact", "I verified the payment", models.DecisionApply},
		{"surrounding whitespace trimmed", "  I verified the payment \n", models.DecisionApply},
		{"case mismatch", "i verified the payment", models.DecisionRejected},
		{"partial", "I verified", models.DecisionRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := models.TransitionRequest{
				CertificateID:    cert.ID,
				TargetStatus:     strPtr("paid"),
				Confirmed:        true,
				ConfirmationText: tc.text,
			}
			outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)
			assert.Equal(t, tc.decision, outcome.Decision)
		})
	}
}

func TestEvaluateTransitionDefaultStatement(t *testing.T) {
	cert := baseCertificate()
	cert.Cost = int64Ptr(100)
	cost := models.FieldCost
	requirements := []models.ValidationRequirement{requirement(&cost, nil)}

	req := models.TransitionRequest{
		CertificateID: cert.ID,
		TargetStatus:  strPtr("paid"),
	}
	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)
	require.Equal(t, models.DecisionRejected, outcome.Decision)
	assert.Equal(t, DefaultConfirmationStatement, outcome.ConfirmationStatement)

	req.Confirmed = true
	req.ConfirmationText = DefaultConfirmationStatement
	outcome = EvaluateTransition(cert, editableStatus("draft"), requirements, req)
	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestEvaluateTransitionConflictingStatements(t *testing.T) {
	cert := baseCertificate()
	requirements := []models.ValidationRequirement{
		requirement(nil, strPtr("statement one")),
		requirement(nil, strPtr("statement two")),
	}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: "statement one",
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	require.Equal(t, models.DecisionRejected, outcome.Decision)
	assert.True(t, outcome.Conflict)
}

func TestEvaluateTransitionDuplicateStatementsNoConflict(t *testing.T) {
	cert := baseCertificate()
	requirements := []models.ValidationRequirement{
		requirement(nil, strPtr("same statement")),
		requirement(nil, strPtr("  same statement ")),
	}
	req := models.TransitionRequest{
		CertificateID:    cert.ID,
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: "same statement",
	}

	outcome := EvaluateTransition(cert, editableStatus("draft"), requirements, req)

	assert.Equal(t, models.DecisionApply, outcome.Decision)
}

func TestRejectionReason(t *testing.T) {
	assert.Contains(t, RejectionReason(models.TransitionOutcome{
		Decision:      models.DecisionRejected,
		MissingFields: []models.RequiredField{models.FieldCost, models.FieldPaymentDate},
	}), "cost, payment-date")

	assert.Contains(t, RejectionReason(models.TransitionOutcome{
		Decision:              models.DecisionRejected,
		RequiresConfirmation:  true,
		ConfirmationStatement: "say it",
	}), "say it")

	assert.Equal(t, "status archived forbids edits", RejectionReason(models.TransitionOutcome{
		Decision: models.DecisionBlocked,
		Reason:   "status archived forbids edits",
	}))
}
