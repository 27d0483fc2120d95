package temporal

const (
	RetrySignalName  = "retry"
	CancelSignalName = "cancel"
	AbortSignalName  = "abort"

	StatusQueryName = "status"
)

// ControlSignal is the payload of every operator signal.
type ControlSignal struct {
	Operator string `json:"operator,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// SignalNames lists the signals an operator may send, keyed by the command
// name used over HTTP and the CLI.
var SignalNames = map[string]string{
	"retry":  RetrySignalName,
	"cancel": CancelSignalName,
	"abort":  AbortSignalName,
}
