package export

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

// SocketIOConfig locates a dashboard that listens for snapshots.
type SocketIOConfig struct {
	URL                string        `yaml:"url"`
	Namespace          string        `yaml:"namespace"`
	Event              string        `yaml:"event"`
	AckEvent           string        `yaml:"ack_event"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// SocketIOPublisher emits documents to a Socket.IO namespace. Each Write
// opens a connection, emits once and disconnects.
type SocketIOPublisher struct {
	cfg SocketIOConfig
}

// NewSocketIOPublisher validates the config and fills in defaults.
func NewSocketIOPublisher(cfg SocketIOConfig) (*SocketIOPublisher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("socket.io url %q needs a scheme and host", cfg.URL)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.Event == "" {
		cfg.Event = "snapshot"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SocketIOPublisher{cfg: cfg}, nil
}

// payload converts the document to the generic map the client encodes.
func payload(doc *Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	return out, nil
}

// Write connects, emits the document on the configured event and, when an
// ack event is configured, waits for the dashboard to confirm.
func (p *SocketIOPublisher) Write(ctx context.Context, doc *Document) error {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", p.cfg.URL, "namespace", p.cfg.Namespace)

	data, err := payload(doc)
	if err != nil {
		return err
	}
	parsedURL, _ := url.Parse(p.cfg.URL)

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if p.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(p.cfg.Namespace, opts)
	defer io.Disconnect()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected, emitting snapshot.", "sid", io.Id(), "event", p.cfg.Event)
		io.Emit(p.cfg.Event, data)
		if p.cfg.AckEvent == "" {
			finish(nil)
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		finish(err)
	})
	if p.cfg.AckEvent != "" {
		io.Once(types.EventName(p.cfg.AckEvent), func(...any) {
			finish(nil)
		})
	}

	opCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	io.Connect()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("socket.io publish failed: %w", err)
		}
		logger.Info("Snapshot published.", "version", doc.SnapshotVersion)
		return nil
	case <-opCtx.Done():
		return fmt.Errorf("timed out after %s publishing snapshot to %s", p.cfg.Timeout, p.cfg.URL)
	}
}

var _ Sink = (*SocketIOPublisher)(nil)
