package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidFirmwareVersion(t *testing.T) {
	valid := []string{"1.0.4", "0.0.1", "10.20.30", "999.999.999"}
	for _, v := range valid {
		assert.True(t, IsValidFirmwareVersion(v), "expected %q to be valid", v)
	}

	invalid := []string{"", "1.0", "1.0.4.2", "v1.0.4", "1.0.4-beta", "1.0.x", "1..4", " 1.0.4"}
	for _, v := range invalid {
		assert.False(t, IsValidFirmwareVersion(v), "expected %q to be invalid", v)
	}
}

func TestValidateStructCustomTags(t *testing.T) {
	type probe struct {
		Version string `validate:"required,firmware_version"`
		Status  string `validate:"required,report_status"`
	}

	assert.NoError(t, ValidateStruct(&probe{Version: "1.0.4", Status: "success"}))
	assert.NoError(t, ValidateStruct(&probe{Version: "1.0.4", Status: "in_progress"}))

	assert.Error(t, ValidateStruct(&probe{Version: "latest", Status: "success"}))
	assert.Error(t, ValidateStruct(&probe{Version: "1.0.4", Status: "done"}))
	assert.Error(t, ValidateStruct(&probe{Status: "success"}))
}
