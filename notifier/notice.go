package notifier

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sthembisoo/airbrake-notifier/types"
)

const (
	noticeVersion   = "2.3"
	notifierVersion = "1.00"
)

// Notice is the XML document sent to the notices endpoint
type Notice struct {
	XMLName           xml.Name          `xml:"notice"`
	Version           string            `xml:"version,attr"`
	APIKey            string            `xml:"api-key"`
	Notifier          NotifierInfo      `xml:"notifier"`
	Error             ErrorElement      `xml:"error"`
	Request           RequestElement    `xml:"request"`
	ServerEnvironment ServerEnvironment `xml:"server-environment"`
}

// NotifierInfo identifies the library sending the notice
type NotifierInfo struct {
	Name    string `xml:"name"`
	Version string `xml:"version"`
	URL     string `xml:"url,omitempty"`
}

// ErrorElement describes the error itself
type ErrorElement struct {
	Message   string    `xml:"message"`
	Class     string    `xml:"class"`
	Backtrace Backtrace `xml:"backtrace"`
}

// Backtrace lists the stack frames, innermost last
type Backtrace struct {
	Lines []Line `xml:"line"`
}

// Line is one frame of the backtrace
type Line struct {
	File   string `xml:"file,attr"`
	Method string `xml:"method,attr"`
	Number string `xml:"number,attr"`
}

// RequestElement describes the request being served when the error happened
type RequestElement struct {
	URL       string `xml:"url"`
	CGIData   Vars   `xml:"cgi-data"`
	Params    Vars   `xml:"params"`
	Component string `xml:"component,omitempty"`
}

// Vars holds the var elements of cgi-data or params
type Vars struct {
	Vars []Var `xml:"var"`
}

// Var is a key/value pair of cgi-data or params
type Var struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// ServerEnvironment describes where the application runs
type ServerEnvironment struct {
	ProjectRoot     string `xml:"project-root,omitempty"`
	EnvironmentName string `xml:"environment-name"`
}

// Messager is implemented by errors carrying a human readable message
// separate from their Error string.
type Messager interface {
	Message() string
}

// Classer is implemented by errors that name their own class.
type Classer interface {
	Class() string
}

// BuildNotice assembles the notice for one error occurrence. It does not
// check whether the notifier is configured.
func (n *Notifier) BuildNotice(exc types.ExceptionInfo, req *types.RequestSnapshot) *Notice {
	lines := lo.Map(exc.Frames, func(f types.StackFrame, _ int) Line {
		return Line{File: f.FileName, Method: f.MethodName, Number: strconv.Itoa(f.LineNumber)}
	})

	class := errorClass(exc.Err)
	if class == "" {
		class = exc.Kind
	}

	notice := &Notice{
		Version: noticeVersion,
		APIKey:  n.apiKey,
		Notifier: NotifierInfo{
			Name:    n.name,
			Version: notifierVersion,
			URL:     n.notifierURL,
		},
		Error: ErrorElement{
			Message:   errorMessage(exc.Err),
			Class:     class,
			Backtrace: Backtrace{Lines: lines},
		},
		ServerEnvironment: ServerEnvironment{
			ProjectRoot:     n.projectRoot,
			EnvironmentName: n.environment,
		},
	}

	if req != nil {
		notice.Request = RequestElement{
			URL:     req.URI,
			CGIData: cgiData(req),
			Params:  params(req),
		}
	}
	if n.handler != nil {
		notice.Request.Component = typeName(n.handler)
	}

	return notice
}

// Marshal serializes the notice as an UTF-8 XML document
func (n *Notice) Marshal() ([]byte, error) {
	body, err := xml.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notice: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	if m, ok := err.(Messager); ok {
		if msg := strings.TrimSpace(m.Message()); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(err.Error())
}

func errorClass(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(Classer); ok {
		if class := c.Class(); class != "" {
			return class
		}
	}
	return typeName(err)
}

// typeName returns the name of the dynamic type of v, looking through
// pointers.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func cgiData(req *types.RequestSnapshot) Vars {
	body := ""
	if len(req.Body) > 0 {
		body = strings.ToValidUTF8(string(req.Body), "�")
	}

	env := map[string]string{
		"HTTP_METHOD":  req.Method,
		"BODY":         body,
		"URI":          req.URI,
		"PATH":         req.Path,
		"QUERY":        req.URI,
		"HTTP_VERSION": req.Version,
		"REMOTE_IP":    req.RemoteIP,
		"PROTOCOL":     req.Protocol,
		"FULL_URL":     req.FullURL,
		"REQUEST_TIME": requestTime(req.RequestTime),
	}
	// The query string replaces URI. Existing consumers of these notices
	// read it from there.
	env["URI"] = req.Query

	for key, val := range req.Headers {
		env[strings.ToUpper(key)] = val
	}

	return sortedVars(env)
}

// requestTime formats d in seconds, always with a fractional part ("0.0",
// "1.5").
func requestTime(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func params(req *types.RequestSnapshot) Vars {
	joined := lo.MapValues(req.Arguments, func(values []string, _ string) string {
		return strings.Join(lo.Map(values, func(v string, _ int) string {
			return strings.ToValidUTF8(v, "�")
		}), ",")
	})
	return sortedVars(joined)
}

func sortedVars(m map[string]string) Vars {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return Vars{Vars: lo.Map(keys, func(k string, _ int) Var {
		return Var{Key: k, Value: m[k]}
	})}
}
