package internal

import "sync/atomic"

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	Info LogLevel = iota
	Warning
	Error
	Debug
)

// String returns the label printed in front of log lines
func (l LogLevel) String() string {
	switch l {
	case Info:
		return "INFO"
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	case Debug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// LogStruct represents a log entry with a level and message
type LogStruct struct {
	LogLevel LogLevel
	Message  string
}

// LogHandlerFunc defines the function signature for log handlers
type LogHandlerFunc func(sender interface{}, log LogStruct)

var logHandler atomic.Pointer[LogHandlerFunc]

// SetLogHandler installs the process-wide log handler. Passing nil silences logging.
// Bundle workers log concurrently, so the handler itself must be safe for concurrent use.
func SetLogHandler(handler LogHandlerFunc) {
	if handler == nil {
		logHandler.Store(nil)
		return
	}
	logHandler.Store(&handler)
}

func pushLog(sender interface{}, level LogLevel, message string) {
	if handler := logHandler.Load(); handler != nil {
		(*handler)(sender, LogStruct{LogLevel: level, Message: message})
	}
}

// PushLogDebug sends a debug log message
func PushLogDebug(sender interface{}, message string) {
	pushLog(sender, Debug, message)
}

// PushLogInfo sends an info log message
func PushLogInfo(sender interface{}, message string) {
	pushLog(sender, Info, message)
}

// PushLogWarning sends a warning log message
func PushLogWarning(sender interface{}, message string) {
	pushLog(sender, Warning, message)
}

// PushLogError sends an error log message
func PushLogError(sender interface{}, message string) {
	pushLog(sender, Error, message)
}
