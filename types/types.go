package types

import "time"

// ExceptionInfo is the snapshot of an error taken at capture time
type ExceptionInfo struct {
	Kind   string // class used when Err does not name one
	Err    error
	Frames []StackFrame
}

// StackFrame represents a single frame in a stack trace
type StackFrame struct {
	FileName   string
	LineNumber int
	MethodName string
}

// RequestSnapshot is a read-only view of the request that was being served
// when the error happened
type RequestSnapshot struct {
	Method      string
	URI         string
	Path        string
	Query       string
	Version     string
	Protocol    string
	Headers     map[string]string
	Body        []byte
	RemoteIP    string
	Arguments   map[string][]string
	FullURL     string
	RequestTime time.Duration
}
