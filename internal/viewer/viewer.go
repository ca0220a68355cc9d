// Package viewer publishes build events to a socket.io server so that a
// running viewer can redraw features as they are built.
package viewer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
)

// Event names emitted to the viewer.
const (
	EventFeatureBuilt = "feature_built"
	EventBuildFailed  = "build_failed"
)

// Config selects the server and namespace to publish to.
type Config struct {
	URL                string
	Namespace          string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Notifier is a cad.Observer that emits one socket.io event per build
// outcome.
type Notifier struct {
	io        *socket.Socket
	logger    *slog.Logger
	connected atomic.Bool
}

var _ cad.Observer = (*Notifier)(nil)

// Connect dials the viewer and waits until the namespace is joined, the
// connection fails or the timeout expires.
func Connect(ctx context.Context, cfg Config) (*Notifier, error) {
	logger := ctxlog.FromContext(ctx).With("viewer", cfg.URL, "namespace", cfg.Namespace)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse viewer URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("viewer URL %q needs a scheme and a host", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	n := &Notifier{io: io, logger: logger}
	// the manager retries on its own, so either event can fire repeatedly
	done := make(chan error, 1)
	report := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	io.On(types.EventName("connect"), func(...any) {
		n.connected.Store(true)
		report(nil)
	})
	io.On(types.EventName("disconnect"), func(...any) {
		n.connected.Store(false)
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connection refused")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		report(err)
	})
	io.Connect()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-opCtx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out connecting to viewer %s", cfg.URL)
	case err := <-done:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("failed to connect to viewer %s: %w", cfg.URL, err)
		}
	}
	logger.Info("Connected to viewer.", "sid", io.Id())
	return n, nil
}

func (n *Notifier) FeatureBuilt(f *cad.Feature, elapsed time.Duration, cached bool) {
	n.emit(EventFeatureBuilt, builtPayload(f, elapsed, cached))
}

func (n *Notifier) FeatureFailed(f *cad.Feature, err error) {
	n.emit(EventBuildFailed, failedPayload(f, err))
}

func (n *Notifier) emit(event string, payload map[string]any) {
	if !n.connected.Load() {
		n.logger.Debug("Viewer disconnected, dropping event.", "event", event)
		return
	}
	n.io.Emit(event, payload)
}

// Close disconnects from the viewer.
func (n *Notifier) Close() {
	n.logger.Debug("Disconnecting from viewer.")
	n.io.Disconnect()
}

func builtPayload(f *cad.Feature, elapsed time.Duration, cached bool) map[string]any {
	p := map[string]any{
		"name":       f.Name(),
		"type":       f.TypeName(),
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
		"cached":     cached,
	}
	if hash, err := f.ContentHash(); err == nil {
		p["hash"] = hash
	}
	if lo, hi, err := f.BoundingBox(0); err == nil {
		p["bbox"] = [][3]float64{lo, hi}
	}
	return p
}

func failedPayload(f *cad.Feature, err error) map[string]any {
	return map[string]any{
		"name":  f.Name(),
		"type":  f.TypeName(),
		"error": err.Error(),
	}
}
