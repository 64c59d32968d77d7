package connectivity

import "fmt"

// Code is a device error code carried in error records.
type Code int

const (
	ErrMQTTDisconnected Code = iota
	ErrPubQuantityFailed
	ErrRecvNotSubscribedTopic
	ErrSubCorrelationFailed
	ErrRecvInvalidCorrelation
	ErrConnectedNotConnecting
	ErrUnknownEvent
	ErrUnknownState
	ErrMainLoopExited
	ErrUnsubscribed
)

// Severity classifies a Code.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

type codeInfo struct {
	severity    Severity
	description string
}

var codeTable = map[Code]codeInfo{
	ErrMQTTDisconnected:       {SeverityWarning, "the sensor has disconnected from the MQTT broker"},
	ErrPubQuantityFailed:      {SeverityWarning, "failed to publish a sampled quantity"},
	ErrRecvNotSubscribedTopic: {SeverityError, "received a MQTT message on a non-subscribed topic"},
	ErrSubCorrelationFailed:   {SeverityError, "failed to subscribe on the correlation topic"},
	ErrRecvInvalidCorrelation: {SeverityError, "received an invalid average fan relative speed value"},
	ErrConnectedNotConnecting: {SeverityWarning, "established connection with the MQTT broker when not connecting"},
	ErrUnknownEvent:           {SeverityWarning, "unknown event from the MQTT engine"},
	ErrUnknownState:           {SeverityError, "unknown MQTT client state in the main loop"},
	ErrMainLoopExited:         {SeverityError, "exited from the sensor main loop"},
	ErrUnsubscribed:           {SeverityError, "the broker cancelled the correlation topic subscription"},
}

// String returns the human-readable description of c.
func (c Code) String() string {
	if info, ok := codeTable[c]; ok {
		return info.description
	}
	return fmt.Sprintf("unknown sensor error code (%d)", int(c))
}

// Severity returns the severity of c. Unknown codes are errors.
func (c Code) Severity() Severity {
	if info, ok := codeTable[c]; ok {
		return info.severity
	}
	return SeverityError
}
