package event

// DialStatus is the engine's closed vocabulary for dial outcomes.
type DialStatus string

const (
	DialAnswered DialStatus = "answered"
	DialBusy     DialStatus = "busy"
	DialNoAnswer DialStatus = "no-answer"
	DialFailed   DialStatus = "failed"
)

// dialStatusTable maps raw telephony dial-result codes to the closed
// vocabulary. Codes absent from the table are dropped by the caller.
var dialStatusTable = map[string]DialStatus{
	"ANSWER":      DialAnswered,
	"BUSY":        DialBusy,
	"NOANSWER":    DialNoAnswer,
	"CANCEL":      DialNoAnswer,
	"CONGESTION":  DialBusy,
	"CHANUNAVAIL": DialFailed,
	"FAILED":      DialFailed,
}

// MapDialStatus translates a raw dial-result code. The second return is false
// when the code has no mapping; such events must not be forwarded.
func MapDialStatus(raw string) (DialStatus, bool) {
	status, ok := dialStatusTable[raw]
	return status, ok
}
