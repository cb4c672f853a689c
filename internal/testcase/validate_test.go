package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-authoring/internal/model"
)

func TestValidateReportsMissingSide(t *testing.T) {
	user := []model.TestcaseItem{
		{Name: "in-only", Input: "1"},
		{Name: "full", Input: "1", Output: "2"},
		{Name: "blank", Input: "  \n", Output: "\t"},
	}
	parsed := []model.TestcaseItem{
		{Name: "out-only", Output: "2"},
	}

	got := Validate(parsed, user)

	assert.Equal(t, []Incomplete{
		{Name: "out-only", Missing: MissingInput},
		{Name: "in-only", Missing: MissingOutput},
		{Name: "blank", Missing: MissingBoth},
	}, got)
}

func TestValidateCompletePairsAreNeverReported(t *testing.T) {
	got := Validate([]model.TestcaseItem{{Name: "a", Input: "x", Output: "y"}})
	assert.Empty(t, got)
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, Describe(nil))

	msg := Describe([]Incomplete{{Name: "a", Missing: MissingOutput}})
	assert.Contains(t, msg, "1 testcase(s)")
	assert.Contains(t, msg, "a (missing output)")
}
