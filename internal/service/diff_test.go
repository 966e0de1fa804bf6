package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/models"
)

func TestDiffCertificatesScalars(t *testing.T) {
	before := baseCertificate()
	before.Cost = int64Ptr(1000)

	after := before.Clone()
	after.Title = "New title"
	after.Cost = int64Ptr(2500)
	after.Status = "paid"

	cs := DiffCertificates(before, after)

	require.Len(t, cs, 3)
	assert.Contains(t, cs, "title")
	assert.Contains(t, cs, "cost")
	assert.Contains(t, cs, "status")

	payload, err := json.Marshal(cs["cost"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"before":1000,"after":2500}`, string(payload))
}

func TestDiffCertificatesNoChanges(t *testing.T) {
	before := baseCertificate()
	before.Tags = []string{"safety", "2026"}
	after := before.Clone()

	cs := DiffCertificates(before, after)

	assert.True(t, cs.Empty())
}

func TestDiffCertificatesNilToValue(t *testing.T) {
	before := baseCertificate()
	after := before.Clone()
	after.OrderNumber = strPtr("PO-77")
	after.PaymentDate = timePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	cs := DiffCertificates(before, after)

	require.Len(t, cs, 2)
	payload, err := json.Marshal(cs["order_number"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"before":null,"after":"PO-77"}`, string(payload))
}

func TestDiffCertificatesTagsAsLabelSet(t *testing.T) {
	before := baseCertificate()
	before.Tags = []string{"safety", "expired"}
	after := before.Clone()
	after.Tags = []string{"safety", "renewed", "priority"}

	cs := DiffCertificates(before, after)

	require.Len(t, cs, 1)
	change, ok := cs["tags"]
	require.True(t, ok)
	assert.Equal(t, ChangeKindLabelSet, change.Kind)
	assert.Equal(t, []string{"priority", "renewed"}, change.Added)
	assert.Equal(t, []string{"expired"}, change.Removed)

	payload, err := json.Marshal(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{"added":["priority","renewed"],"removed":["expired"]}`, string(payload))
}

func TestDiffCertificatesTagReorderIsNoChange(t *testing.T) {
	before := baseCertificate()
	before.Tags = []string{"a", "b"}
	after := before.Clone()
	after.Tags = []string{"b", "a"}

	cs := DiffCertificates(before, after)

	assert.True(t, cs.Empty())
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "", Normalize(nil))
	assert.Equal(t, "", Normalize((*string)(nil)))
	assert.Equal(t, "hello", Normalize(strPtr("hello")))
	assert.Equal(t, "42", Normalize(int64Ptr(42)))
	assert.Equal(t, "2026-01-15T09:30:00Z", Normalize(ts))
	assert.Equal(t, "2026-01-15T09:30:00Z", Normalize(&ts))
	assert.Equal(t, Normalize([]string{"a", "b"}), Normalize([]string{"a", "b"}))
	assert.NotEqual(t, Normalize([]string{"a", "b"}), Normalize([]string{"b", "a"}))
}

func TestChangeSetMarshalSurvivesUnserializableValues(t *testing.T) {
	cs := ChangeSet{
		"weird": {Kind: ChangeKindScalar, Before: func() {}, After: "ok"},
	}

	data := cs.Marshal()

	require.NotEmpty(t, data)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
}

func TestDiffEventTypeSelection(t *testing.T) {
	statusChange := ChangeSet{
		"status": {Kind: ChangeKindScalar, Before: "draft", After: "paid"},
		"cost":   {Kind: ChangeKindScalar, Before: nil, After: 100},
	}
	assert.Equal(t, models.AuditEventStatusChanged, eventTypeFor(statusChange))

	tagsOnly := ChangeSet{
		"tags": {Kind: ChangeKindLabelSet, Added: []string{"x"}},
	}
	assert.Equal(t, models.AuditEventTagsUpdated, eventTypeFor(tagsOnly))

	mixed := ChangeSet{
		"tags":  {Kind: ChangeKindLabelSet, Added: []string{"x"}},
		"title": {Kind: ChangeKindScalar, Before: "a", After: "b"},
	}
	assert.Equal(t, models.AuditEventUpdated, eventTypeFor(mixed))
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestDiffCertificatesReverseSymmetry(t *testing.T) {
	before := baseCertificate()
	before.Cost = int64Ptr(1000)
	before.Tags = []string{"Urgent", "VIP"}

	after := before.Clone()
	after.Cost = int64Ptr(2500)
	after.Status = "paid"
	after.Tags = []string{"VIP", "New"}

	forward := DiffCertificates(before, after)
	reverse := DiffCertificates(after, before)

	require.Equal(t, len(forward), len(reverse))
	for field, fc := range forward {
		rc, ok := reverse[field]
		require.True(t, ok, field)
		if fc.Kind == ChangeKindLabelSet {
			assert.Equal(t, fc.Added, rc.Removed, field)
			assert.Equal(t, fc.Removed, rc.Added, field)
			continue
		}
		assert.Equal(t, fc.Before, rc.After, field)
		assert.Equal(t, fc.After, rc.Before, field)
	}
}
