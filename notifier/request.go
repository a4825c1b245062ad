package notifier

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sthembisoo/airbrake-notifier/types"
)

// SnapshotRequest copies what a notice needs from r. body is the request
// body as read by the handler, since r.Body can only be consumed once.
// started is when the request was received; a zero value leaves the
// request time at zero.
func SnapshotRequest(r *http.Request, body []byte, started time.Time) *types.RequestSnapshot {
	uri := r.URL.RequestURI()

	protocol := "http"
	if r.TLS != nil {
		protocol = "https"
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}

	return &types.RequestSnapshot{
		Method:   r.Method,
		URI:      uri,
		Path:     r.URL.Path,
		Query:    r.URL.RawQuery,
		Version:  r.Proto,
		Protocol: protocol,
		Headers: lo.MapValues(r.Header, func(values []string, _ string) string {
			return strings.Join(values, ",")
		}),
		Body:        body,
		RemoteIP:    remoteIP(r.RemoteAddr),
		Arguments:   arguments(r, body),
		FullURL:     protocol + "://" + host + uri,
		RequestTime: elapsed,
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// arguments merges query arguments with url-encoded form fields of body,
// query values first.
func arguments(r *http.Request, body []byte) map[string][]string {
	args := map[string][]string{}
	for key, values := range r.URL.Query() {
		args[key] = append(args[key], values...)
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/x-www-form-urlencoded" || len(body) == 0 {
		return args
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return args
	}
	for key, values := range form {
		args[key] = append(args[key], values...)
	}
	return args
}
