package internal

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
)

const notificationBodyLimit = 120

// Notifier sends desktop notifications for inbound stanzas.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	notify  func(title, message string, icon any) error
	logger  *slog.Logger
}

func NewNotifier(enabled bool, logger *slog.Logger) *Notifier {
	return &Notifier{enabled: enabled, notify: beeep.Notify, logger: logger}
}

func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send delivers a notification in the background. It does nothing when
// notifications are disabled.
func (n *Notifier) Send(title, message string) {
	n.mu.Lock()
	enabled, notify := n.enabled, n.notify
	n.mu.Unlock()

	if !enabled {
		return
	}

	message = summarize(message, notificationBodyLimit)
	go func() {
		if err := notify(title, message, ""); err != nil {
			n.logger.Debug("Unable to send notification", "err", err)
		}
	}()
}

// summarize collapses whitespace and truncates s to limit runes.
func summarize(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
