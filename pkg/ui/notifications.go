package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier tells the desktop that a run finished
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform; unsupported platforms get none
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender uses sender, which may be nil
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// RunFinished announces the totals of a run
func (n *Notifier) RunFinished(accounts, downloaded, pending int, interrupted bool) error {
	if n.sender == nil {
		return nil
	}
	title := "feedmirror: sync finished"
	if interrupted {
		title = "feedmirror: sync interrupted"
	}
	msg := fmt.Sprintf("%d accounts, %d new files", accounts, downloaded)
	if pending > 0 {
		msg += fmt.Sprintf(", %d pending", pending)
	}
	return n.sender.Send(title, msg)
}
