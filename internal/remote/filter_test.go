package remote

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterEncode(t *testing.T) {
	f := Where("unit_id", OpEq, "unit1").
		And("present", OpEq, true).
		And("amount", OpGt, 100).
		And("status", OpIn, []string{"pending", "approved"})

	q := url.Values{}
	f.Encode(q)

	assert.Equal(t, []string{
		"unit_id:eq:unit1",
		"present:eq:true",
		"amount:gt:100",
		"status:in:pending,approved",
	}, q["filter"])
}

func TestAndLeavesSharedBaseIntact(t *testing.T) {
	base := Where("unit_id", OpEq, "unit1")
	first := base.And("present", OpEq, true)
	second := base.And("status", OpEq, "pending")

	require.Len(t, base, 1)
	assert.Equal(t, "unit_id eq unit1 and present eq true", first.String())
	assert.Equal(t, "unit_id eq unit1 and status eq pending", second.String())
}

func TestFilterEncodesTimeAsRFC3339(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	q := url.Values{}
	Where("created_at", OpGte, ts).Encode(q)
	assert.Equal(t, []string{"created_at:gte:2026-08-30T10:00:00Z"}, q["filter"])
}

func TestParsePredicateRoundTrip(t *testing.T) {
	p, err := ParsePredicate("unit_id:eq:unit1")
	require.NoError(t, err)
	assert.Equal(t, Predicate{Field: "unit_id", Op: OpEq, Value: "unit1"}, p)

	// Values may themselves contain colons (timestamps).
	p, err = ParsePredicate("created_at:gte:2026-08-30T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30T10:00:00Z", p.Value)
}

func TestParsePredicateRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "unit_id", "unit_id:eq", ":eq:v", "f:like:v"} {
		_, err := ParsePredicate(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestFilterString(t *testing.T) {
	f := Where("unit_id", OpEq, "unit1").And("present", OpEq, false)
	assert.Equal(t, "unit_id eq unit1 and present eq false", f.String())
}
