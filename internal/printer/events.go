package printer

// Event is a string-tagged notification emitted to the registered callback.
// Payloads are implicit: consumers re-read Device state.
type Event string

const (
	EventDataUpdated       Event = "data updated"
	EventInfoUpdated       Event = "info updated"
	EventPrinterReady      Event = "printer_ready"
	EventPrintStarted      Event = "print_started"
	EventPrintFinished     Event = "print_finished"
	EventPrintFailed       Event = "print_failed"
	EventPrintCanceled     Event = "print_canceled"
	EventPrintError        Event = "print_error"
	EventHMSErrors         Event = "hms_errors"
	EventAMSInfoUpdate     Event = "ams_info_update"
	EventAuthFailed        Event = "authentication_failed"
	EventEncryptionEnabled Event = "encryption_enabled"
	EventNoExternalStorage Event = "no_external_storage"
	EventLiveViewDisabled  Event = "live_view_disabled"
)
