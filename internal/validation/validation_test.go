package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEnum(t *testing.T) {
	var ve ValidationErrors
	ValidateEnum(&ve, "status", "approved", ValidBOQStatuses)
	ValidateEnum(&ve, "status", "", ValidBOQStatuses) // empty skips, RequireField owns that
	assert.False(t, ve.HasErrors())

	ValidateEnum(&ve, "boq_type", "plumbing", ValidBOQTypes)
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "boq_type", ve.Errors[0].Field)
	assert.Contains(t, ve.Errors[0].Message, "installation")
}

func TestEnumsCoverEveryDomain(t *testing.T) {
	for name, vals := range map[string][]string{
		"boq types":        ValidBOQTypes,
		"boq statuses":     ValidBOQStatuses,
		"book statuses":    ValidBookStatuses,
		"po statuses":      ValidPOStatuses,
		"project statuses": ValidProjectStatuses,
		"site types":       ValidSiteTypes,
		"site statuses":    ValidSiteStatuses,
		"rollout phases":   ValidRolloutPhases,
		"rollout statuses": ValidRolloutStatuses,
		"roles":            ValidRoles,
	} {
		assert.NotEmpty(t, vals, name)
		seen := map[string]bool{}
		for _, v := range vals {
			assert.False(t, seen[v], "%s repeats %q", name, v)
			seen[v] = true
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "BOQ-2026-0001", SanitizeFilename("BOQ-2026-0001"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a_b", SanitizeFilename("a:b"))
}

func TestValidateRecordID(t *testing.T) {
	var ve ValidationErrors
	ValidateRecordID(&ve, "record_id", "BOQ-2026-0001")
	assert.False(t, ve.HasErrors())
	ValidateRecordID(&ve, "record_id", "../oops")
	assert.True(t, ve.HasErrors())
}
