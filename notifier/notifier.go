// Package notifier reports errors to Airbrake through the v2 notices API.
//
// A notice is built from an ExceptionInfo and the snapshot of the request
// that was being served, serialized to XML and posted in the background.
// Submission is fire-and-forget: failures are logged and never returned to
// the caller.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sthembisoo/airbrake-notifier/types"
)

const (
	DefaultEndpoint = "http://airbrake.io/notifier_api/v2/notices"
	contentType     = "text/xml; charset=utf-8"
)

// Sender delivers a serialized notice to the notices endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, body []byte) error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAPIKey sets the project API key. Without it nothing is sent.
func WithAPIKey(key string) Option {
	return func(n *Notifier) { n.apiKey = key }
}

// WithEnvironment sets the environment name. Without it nothing is sent.
func WithEnvironment(env string) Option {
	return func(n *Notifier) { n.environment = env }
}

// WithNotifierURL sets the url reported in the notifier element.
func WithNotifierURL(url string) Option {
	return func(n *Notifier) { n.notifierURL = url }
}

// WithHandler records the type name of the request handler as the component.
func WithHandler(handler any) Option {
	return func(n *Notifier) { n.handler = handler }
}

// WithProjectRoot sets the project-root of the server environment.
func WithProjectRoot(root string) Option {
	return func(n *Notifier) { n.projectRoot = root }
}

// WithEndpoint overrides the notices endpoint. Default: DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(n *Notifier) { n.endpoint = endpoint }
}

// WithSender replaces the HTTP sender.
func WithSender(sender Sender) Option {
	return func(n *Notifier) { n.sender = sender }
}

// WithLogger sets the logger used for submission failures.
// Default: the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Notifier) { n.log = logger }
}

// Notifier builds and submits notices. It holds no per-notice state and is
// safe for concurrent use.
type Notifier struct {
	name        string
	apiKey      string
	environment string
	notifierURL string
	handler     any
	projectRoot string
	endpoint    string
	sender      Sender
	log         zerolog.Logger
	wg          sync.WaitGroup
}

var (
	defaultSender     *RestySender
	defaultSenderOnce sync.Once
)

// sharedSender returns the sender used when no WithSender option is given.
// All notifiers share one resty client so connections are reused.
func sharedSender() *RestySender {
	defaultSenderOnce.Do(func() {
		defaultSender = NewRestySender(resty.New())
	})
	return defaultSender
}

// New creates a Notifier identifying itself as name.
func New(name string, opts ...Option) *Notifier {
	n := &Notifier{
		name:     name,
		endpoint: DefaultEndpoint,
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sender == nil {
		n.sender = sharedSender()
	}
	return n
}

// Notify reports exc for a one-off Notifier built from opts.
func Notify(exc types.ExceptionInfo, req *types.RequestSnapshot, name string, opts ...Option) {
	New(name, opts...).Notify(exc, req)
}

// Configured reports whether both the API key and the environment are set.
func (n *Notifier) Configured() bool {
	return n.apiKey != "" && n.environment != ""
}

// Notify builds the notice for exc and posts it in the background. It
// returns immediately and does nothing when the notifier is not configured.
// Panics raised while reading exc are logged, not propagated.
func (n *Notifier) Notify(exc types.ExceptionInfo, req *types.RequestSnapshot) {
	if !n.Configured() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Str("kind", exc.Kind).Msg("Cannot build exception notice")
		}
	}()

	body, err := n.BuildNotice(exc, req).Marshal()
	if err != nil {
		n.log.Error().Err(err).Str("kind", exc.Kind).Msg("Cannot build exception notice")
		return
	}

	n.wg.Add(1)
	go n.submit(body)
}

// Wait blocks until every notice passed to Notify has been submitted or
// has failed.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) submit(body []byte) {
	defer n.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Str("endpoint", n.endpoint).Msg("Cannot submit exception")
		}
	}()

	if err := n.sender.Send(context.Background(), n.endpoint, body); err != nil {
		n.log.Error().Err(err).Str("endpoint", n.endpoint).Msg("Cannot submit exception")
	}
}

// RestySender posts notices with a resty client.
type RestySender struct {
	client *resty.Client
}

// NewRestySender wraps client. No timeout or retry is configured on it
// here.
func NewRestySender(client *resty.Client) *RestySender {
	return &RestySender{client: client}
}

// Send posts body to endpoint. Any status above 399 is an error.
func (s *RestySender) Send(ctx context.Context, endpoint string, body []byte) error {
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("failed to post notice: %w", err)
	}

	if response.IsError() {
		return fmt.Errorf("airbrake API returned status %d: %s", response.StatusCode(), string(response.Body()))
	}

	return nil
}
