package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/certilog/certilog-api/internal/models"
)

// ChangeKind discriminates the two diff payload shapes.
type ChangeKind string

const (
	ChangeKindScalar   ChangeKind = "scalar"
	ChangeKindLabelSet ChangeKind = "label_set"
)

// FieldChange is one field's before/after record. Scalar changes carry the
// raw values; label-set changes carry the derived added/removed facts
// because a naive before/after on an unordered set is not human-legible.
type FieldChange struct {
	Kind    ChangeKind
	Before  interface{}
	After   interface{}
	Added   []string
	Removed []string
}

// MarshalJSON emits the loose shape stored at the audit boundary.
func (c FieldChange) MarshalJSON() ([]byte, error) {
	if c.Kind == ChangeKindLabelSet {
		return json.Marshal(struct {
			Added   []string `json:"added"`
			Removed []string `json:"removed"`
		}{Added: c.Added, Removed: c.Removed})
	}
	return json.Marshal(struct {
		Before interface{} `json:"before"`
		After  interface{} `json:"after"`
	}{Before: safeValue(c.Before), After: safeValue(c.After)})
}

// ChangeSet maps field names to their changes.
type ChangeSet map[string]FieldChange

// Empty reports whether nothing changed.
func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

// Marshal serializes the change set for audit storage. Serialization
// problems degrade to stringified values rather than failing the mutation.
func (cs ChangeSet) Marshal() []byte {
	data, err := json.Marshal(cs)
	if err != nil {
		fallback := make(map[string]string, len(cs))
		for field, change := range cs {
			fallback[field] = fmt.Sprintf("%v -> %v", stringify(change.Before), stringify(change.After))
		}
		data, _ = json.Marshal(fallback)
	}
	return data
}

// DiffCertificates computes the field-level diff between two snapshots,
// skipping fields whose normalized representation is unchanged. Tags are
// special-cased as a label set.
func DiffCertificates(before, after *models.Certificate) ChangeSet {
	cs := ChangeSet{}
	diffScalar(cs, "title", before.Title, after.Title)
	diffScalar(cs, "cost", before.Cost, after.Cost)
	diffScalar(cs, "additional_cost", before.AdditionalCost, after.AdditionalCost)
	diffScalar(cs, "order_number", before.OrderNumber, after.OrderNumber)
	diffScalar(cs, "payment_date", before.PaymentDate, after.PaymentDate)
	diffScalar(cs, "payment_type_id", before.PaymentTypeID, after.PaymentTypeID)
	diffScalar(cs, "priority", before.Priority, after.Priority)
	diffScalar(cs, "notes", before.Notes, after.Notes)
	diffScalar(cs, "status", before.Status, after.Status)

	added, removed := DiffLabels(before.Tags, after.Tags)
	if len(added) > 0 || len(removed) > 0 {
		cs["tags"] = FieldChange{Kind: ChangeKindLabelSet, Added: added, Removed: removed}
	}
	return cs
}

// DiffLabels compares two label lists as sets and reports what appeared and
// what went away, both sorted for stable output.
func DiffLabels(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]struct{}, len(before))
	for _, label := range before {
		beforeSet[label] = struct{}{}
	}
	afterSet := make(map[string]struct{}, len(after))
	for _, label := range after {
		afterSet[label] = struct{}{}
	}
	for label := range afterSet {
		if _, ok := beforeSet[label]; !ok {
			added = append(added, label)
		}
	}
	for label := range beforeSet {
		if _, ok := afterSet[label]; !ok {
			removed = append(removed, label)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func diffScalar(cs ChangeSet, field string, before, after interface{}) {
	if Normalize(before) == Normalize(after) {
		return
	}
	cs[field] = FieldChange{Kind: ChangeKindScalar, Before: before, After: after}
}

// Normalize produces the comparable string form of a value: nil pointers and
// nil become the empty string, times use RFC3339, slices join their
// normalized elements in order, everything structured falls back to a
// canonical JSON rendering, primitives use their string form.
func Normalize(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case *string:
		if value == nil {
			return ""
		}
		return *value
	case *int64:
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%d", *value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case *time.Time:
		if value == nil {
			return ""
		}
		return value.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(value, "\x1f")
	case int, int32, int64, uint, uint32, uint64, bool, float32, float64:
		return fmt.Sprintf("%v", value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	}
}

// safeValue flattens pointers and converts anything json cannot handle into
// a plain string so audit writes never fail on exotic values.
func safeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case nil:
		return nil
	case *string:
		if value == nil {
			return nil
		}
		return *value
	case *int64:
		if value == nil {
			return nil
		}
		return *value
	case *time.Time:
		if value == nil {
			return nil
		}
		return value.UTC().Format(time.RFC3339)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	}
	if _, err := json.Marshal(v); err != nil {
		return stringify(v)
	}
	return v
}

func stringify(v interface{}) (s string) {
	defer func() {
		if recover() != nil {
			s = "<unprintable>"
		}
	}()
	return fmt.Sprintf("%v", v)
}
