package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Dotted numeric triplet, e.g. "1.0.4". Devices compare versions
// component-wise, so anything looser is rejected at upload time.
var firmwareVersionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func init() {
	validate = validator.New()

	err := validate.RegisterValidation("firmware_version", validateFirmwareVersion)
	if err != nil {
		return
	}
	err = validate.RegisterValidation("report_status", validateReportStatus)
	if err != nil {
		return
	}
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// IsValidFirmwareVersion reports whether v is a dotted numeric triplet.
func IsValidFirmwareVersion(v string) bool {
	return firmwareVersionRe.MatchString(v)
}

func validateFirmwareVersion(fl validator.FieldLevel) bool {
	return IsValidFirmwareVersion(fl.Field().String())
}

func validateReportStatus(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	validStatuses := []string{"success", "failed", "in_progress"}

	for _, validStatus := range validStatuses {
		if status == validStatus {
			return true
		}
	}
	return false
}
