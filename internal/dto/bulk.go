package dto

// Overridable field keys accepted in BulkUpdateRequest.ApplyToAll.
const (
	BulkFieldTitle          = "title"
	BulkFieldCost           = "cost"
	BulkFieldAdditionalCost = "additional-cost"
	BulkFieldOrderNumber    = "order-number"
	BulkFieldPaymentDate    = "payment-date"
	BulkFieldPaymentType    = "payment-type"
	BulkFieldPriority       = "priority"
	BulkFieldNotes          = "notes"
	BulkFieldTags           = "tags"
)

// BulkOverridableFields lists every field key the bulk flow can override.
func BulkOverridableFields() []string {
	return []string{
		BulkFieldTitle,
		BulkFieldCost,
		BulkFieldAdditionalCost,
		BulkFieldOrderNumber,
		BulkFieldPaymentDate,
		BulkFieldPaymentType,
		BulkFieldPriority,
		BulkFieldNotes,
		BulkFieldTags,
	}
}

// BulkUpdateRequest mutates many certificates in one best-effort batch. For
// each field key listed in ApplyToAll the Global patch value wins; otherwise
// the record's PerRecord patch applies; otherwise the field stays unchanged.
// Note, AddTags and Comment are applied identically to every record that
// passes evaluation, as part of the same mutation.
type BulkUpdateRequest struct {
	IDs              []string                    `json:"ids" validate:"required,min=1"`
	TargetStatus     *string                     `json:"target_status,omitempty"`
	Confirmed        bool                        `json:"confirmed"`
	ConfirmationText string                      `json:"confirmation_text"`
	Global           CertificatePatch            `json:"global"`
	ApplyToAll       []string                    `json:"apply_to_all,omitempty"`
	PerRecord        map[string]CertificatePatch `json:"per_record,omitempty"`
	Note             *string                     `json:"note,omitempty"`
	AddTags          []string                    `json:"add_tags,omitempty"`
	Comment          string                      `json:"comment,omitempty"`
}

// BulkRecordOutcome names one record's fate inside a batch.
type BulkRecordOutcome struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BulkResult aggregates per-record outcomes. The three buckets are disjoint
// and their counts sum to the number of requested IDs.
type BulkResult struct {
	Applied      []BulkRecordOutcome `json:"applied"`
	Blocked      []BulkRecordOutcome `json:"blocked"`
	Failed       []BulkRecordOutcome `json:"failed"`
	AppliedCount int                 `json:"applied_count"`
	BlockedCount int                 `json:"blocked_count"`
	FailedCount  int                 `json:"failed_count"`
}
