package firmware

import "errors"

var (
	ErrNoFirmware          = errors.New("no firmware available")
	ErrVersionExists       = errors.New("firmware version already exists")
	ErrInvalidVersion      = errors.New("invalid firmware version")
	ErrFileTooLarge        = errors.New("firmware file too large")
	ErrArtifactExists      = errors.New("artifact already stored for this version")
	ErrArtifactNotFound    = errors.New("firmware artifact not found")
	ErrInvalidReportStatus = errors.New("invalid report status")
)
