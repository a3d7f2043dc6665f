package ingestion

// ReportMessage is the JSON payload a device publishes to
// devices/<device_id>/ota/status. The device_id field is optional; when
// absent it is taken from the topic.
type ReportMessage struct {
	DeviceID        string  `json:"device_id"`
	FirmwareVersion string  `json:"firmware_version"`
	Status          string  `json:"status"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	ProgressPercent *int    `json:"progress_percent,omitempty"`
	IPAddress       *string `json:"ip_address,omitempty"`
}
