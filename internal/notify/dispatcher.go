package notify

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/metrics"
)

// Notifier performs the actual side effects of a notification.
type Notifier interface {
	// PlaySound emits a short audio cue.
	PlaySound()

	// Push raises a system-level push notification.
	Push(title, body string)
}

// TerminalNotifier is the default Notifier: a BEL for the cue and a log line
// standing in for the system notification surface.
type TerminalNotifier struct {
	logger zerolog.Logger
}

// NewTerminalNotifier creates the default notifier.
func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{logger: logging.Component("notifier")}
}

// PlaySound writes the terminal bell.
func (n *TerminalNotifier) PlaySound() {
	_, _ = os.Stdout.WriteString("\a")
}

// Push logs the notification payload.
func (n *TerminalNotifier) Push(title, body string) {
	n.logger.Info().Str("title", title).Str("body", body).Msg("push notification")
}

// Dispatcher compares a monotonically increasing total-unread watermark on
// every synchronization tick and fires the notifier when it rises, subject to
// the effective mute computation and window focus.
type Dispatcher struct {
	settings *Service
	notifier Notifier
	logger   zerolog.Logger
	focused  atomic.Bool

	mu        sync.Mutex
	watermark int
}

// NewDispatcher creates a Dispatcher. The window starts focused.
func NewDispatcher(settings *Service, notifier Notifier) *Dispatcher {
	d := &Dispatcher{
		settings: settings,
		notifier: notifier,
		logger:   logging.Component("notify-dispatcher"),
	}
	d.focused.Store(true)
	return d
}

// SetFocused records window focus/visibility. Push notifications are
// suppressed while the window is focused.
func (d *Dispatcher) SetFocused(focused bool) {
	d.focused.Store(focused)
}

// Observe compares totalUnread against the watermark. On an increase it
// fires the audio cue and push for the changed conversations that are not
// muted. The watermark only ever rises.
func (d *Dispatcher) Observe(totalUnread int, changed []string) {
	d.mu.Lock()
	increased := totalUnread > d.watermark
	if increased {
		d.watermark = totalUnread
	}
	d.mu.Unlock()

	if !increased {
		return
	}

	sound, push := false, false
	for _, conversationID := range changed {
		effective := d.settings.Effective(conversationID)
		sound = sound || effective.Sound
		push = push || effective.Push
	}
	if len(changed) == 0 {
		effective := d.settings.Effective("")
		sound, push = effective.Sound, effective.Push
	}

	if sound {
		d.notifier.PlaySound()
		metrics.NotificationsFired.WithLabelValues("sound").Inc()
	}
	if push && !d.focused.Load() {
		d.notifier.Push("New messages", "You have unread messages")
		metrics.NotificationsFired.WithLabelValues("push").Inc()
	}
}
