// Package notifier provides desktop notifications for runtime events
package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
)

// Sender delivers one notification
type Sender func(title, message string) error

// RuntimeNotifier handles runtime notifications
type RuntimeNotifier struct {
	enabled       bool
	failureSound  bool
	notifySuccess bool
	logger        logger.Logger
	send          Sender
	mu            sync.Mutex
}

var _ interfaces.Notifier = (*RuntimeNotifier)(nil)

// Config represents notification configuration
type Config struct {
	Enabled bool
	// FailureSound beeps after a descriptor failure notification
	FailureSound bool
	// NotifyActivation also reports successful module activations
	NotifyActivation bool
}

// New creates a new runtime notifier
func New(config Config, log logger.Logger) *RuntimeNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RuntimeNotifier{
		enabled:       config.Enabled,
		failureSound:  config.FailureSound,
		notifySuccess: config.NotifyActivation,
		logger:        log,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetSender replaces the notification backend
func (n *RuntimeNotifier) SetSender(send Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.send = send
}

// NotifyDescriptorFailure notifies that a descriptor could not be loaded
func (n *RuntimeNotifier) NotifyDescriptorFailure(module string, resource string, err error) {
	if !n.enabled {
		return
	}

	title := "Descriptor Failed"
	message := fmt.Sprintf("%s (%s): %v", module, resource, err)

	n.sendNotification(title, message)
	if n.failureSound {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

// NotifyModuleActivated notifies that a module registered its components
func (n *RuntimeNotifier) NotifyModuleActivated(module string, components int, duration time.Duration) {
	if !n.enabled || !n.notifySuccess {
		return
	}

	title := "Module Activated"
	message := fmt.Sprintf("%s registered %d component(s) in %s", module, components, formatDuration(duration))

	n.sendNotification(title, message)
}

// Private methods

func (n *RuntimeNotifier) sendNotification(title, message string) {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()

	if err := send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
