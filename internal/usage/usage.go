// Package usage records which shortcuts fire, without ever delaying an expansion.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single notification request.
const DefaultTimeout = 50 * time.Millisecond

// Notifier is told about every expansion. Notify must return immediately.
type Notifier interface {
	Notify(shortcut string)
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string) {}

// Func runs fn in its own goroutine for every notification.
type Func func(shortcut string)

// Notify calls fn asynchronously.
func (f Func) Notify(shortcut string) {
	go f(shortcut)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify forwards to every notifier.
func (m Multi) Notify(shortcut string) {
	for _, n := range m {
		n.Notify(shortcut)
	}
}

// HTTPNotifier posts {"shortcut": ...} to an endpoint. Failures are logged
// at debug level and otherwise ignored.
type HTTPNotifier struct {
	url    string
	token  string
	client *http.Client
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewHTTPNotifier creates a notifier for url. A non-positive timeout selects DefaultTimeout.
func NewHTTPNotifier(url, token string, timeout time.Duration, log *zap.Logger) *HTTPNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPNotifier{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Notify sends the event in the background.
func (n *HTTPNotifier) Notify(shortcut string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(shortcut)
	}()
}

// Wait blocks until in-flight notifications have finished.
func (n *HTTPNotifier) Wait() {
	n.wg.Wait()
}

func (n *HTTPNotifier) send(shortcut string) {
	body, err := json.Marshal(map[string]string{"shortcut": shortcut})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Debug("Usage notification request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Debug("Usage notification dropped", zap.Error(err))
		return
	}
	resp.Body.Close()
}
