package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidFlowID(t *testing.T) {
	assert.True(t, ValidFlowID("2b3e9f54"))
	assert.False(t, ValidFlowID(""))
	assert.False(t, ValidFlowID("undefined"))
	assert.False(t, ValidFlowID("null"))
}

func TestFlowSummary(t *testing.T) {
	flow := Flow{ID: "f1", Name: "Welcome", IsActive: true}
	summary := flow.Summary()

	assert.Equal(t, "f1", summary.ID)
	assert.Equal(t, "Welcome", summary.Name)
	assert.True(t, summary.IsActive)
}
