// Package dispatch is the single entry and exit point for all outgoing
// calls. It resolves the target from the current mode, attaches the bearer
// credential, and either executes the call or captures it into the outbox.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/metrics"
)

// TokenSource supplies the current bearer credential, empty when
// unauthenticated.
type TokenSource interface {
	Token() string
}

// Enqueuer captures a call for later delivery.
type Enqueuer interface {
	Enqueue(call models.Call) (string, error)
}

type Dispatcher struct {
	modes   *mode.Manager
	tokens  TokenSource
	outbox  Enqueuer
	client  *http.Client
	metrics metrics.Collector

	onAuthFailure func()
}

func NewDispatcher(modes *mode.Manager, tokens TokenSource, outbox Enqueuer,
	collector metrics.Collector, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		modes:   modes,
		tokens:  tokens,
		outbox:  outbox,
		client:  &http.Client{Timeout: timeout},
		metrics: collector,
	}
}

// OnAuthFailure registers the forced-logout side effect fired when a response
// reports an authentication failure.
func (d *Dispatcher) OnAuthFailure(fn func()) {
	d.onAuthFailure = fn
}

// Dispatch applies the mode and auth policy to one outgoing call. In pure
// offline mode the call is captured into the outbox and a synthetic accept is
// returned without touching the network; otherwise it is executed and
// classified. A call is either queued or sent, never both.
func (d *Dispatcher) Dispatch(ctx context.Context, call models.Call) (models.Result, error) {
	if d.modes.Mode() == mode.ModeOffline {
		id, err := d.outbox.Enqueue(call)
		if err != nil {
			d.metrics.RecordDispatch("storage")
			return models.Result{}, err
		}
		d.metrics.RecordDispatch("deferred")
		log.Debug().Str("id", id).Str("path", call.Path).Msg("Offline: request deferred")
		return models.AcceptedOffline(), nil
	}
	return d.send(ctx, call)
}

// Replay executes and classifies the call without the offline intercept.
// Only the sync engine should use it, to drain the outbox.
func (d *Dispatcher) Replay(ctx context.Context, call models.Call) (models.Result, error) {
	return d.send(ctx, call)
}

func (d *Dispatcher) send(ctx context.Context, call models.Call) (models.Result, error) {
	endpoints := d.modes.Endpoints()
	url := strings.TrimSuffix(endpoints.APIBaseURL, "/") + call.Path

	var body io.Reader
	contentType := ""
	switch payload := call.Body.(type) {
	case nil:
	case []byte:
		// Raw form data; caller supplies the content type.
		body = bytes.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			d.metrics.RecordDispatch("application")
			return models.Result{}, faults.Wrap(faults.KindApplication, "encode request body", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, url, body)
	if err != nil {
		d.metrics.RecordDispatch("application")
		return models.Result{}, faults.Wrap(faults.KindApplication, "build request", err)
	}

	if len(call.Query) > 0 {
		q := req.URL.Query()
		for k, v := range call.Query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	if token := d.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.metrics.RecordDispatch("transport")
		suggest := d.modes.Mode() == mode.ModeOnline
		log.Warn().Err(err).Str("url", url).Bool("suggest_offline", suggest).
			Msg("Transport failure")
		return models.Result{}, faults.TransportWithHint("no response from server", err, suggest)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		d.metrics.RecordDispatch("transport")
		return models.Result{}, faults.TransportWithHint("read response", err,
			d.modes.Mode() == mode.ModeOnline)
	}

	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Code == 0 {
		// No parseable envelope; classify by the HTTP status instead.
		envelope = models.Envelope{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return d.classify(call, envelope)
}

// classify maps the application-level status to the failure taxonomy.
// Classification happens exactly once per call.
func (d *Dispatcher) classify(call models.Call, envelope models.Envelope) (models.Result, error) {
	switch envelope.Code {
	case models.CodeOK:
		d.metrics.RecordDispatch("ok")
		return models.Result{Code: envelope.Code, Message: envelope.Message, Data: envelope.Data}, nil

	case models.CodeUnauthorized:
		d.metrics.RecordDispatch("auth")
		log.Info().Str("path", call.Path).Msg("Authentication failure, clearing session")
		if d.onAuthFailure != nil {
			d.onAuthFailure()
		}
		return models.Result{}, faults.New(faults.KindAuth, messageOr(envelope, "not authenticated"))

	case models.CodeForbidden:
		d.metrics.RecordDispatch("permission")
		return models.Result{}, faults.New(faults.KindPermission, messageOr(envelope, "permission denied"))

	default:
		d.metrics.RecordDispatch("application")
		return models.Result{}, faults.New(faults.KindApplication,
			messageOr(envelope, fmt.Sprintf("request failed with code %d", envelope.Code)))
	}
}

func messageOr(envelope models.Envelope, fallback string) string {
	if envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}
