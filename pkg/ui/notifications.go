package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"pinback/pkg/models"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// CommandSender runs a platform notification command
type CommandSender struct {
	build func(title, message string) *exec.Cmd
}

func (c CommandSender) Send(title, message string) error {
	return c.build(title, message).Run()
}

// PlatformSender returns the sender for the running OS, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return CommandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("notify-send", title, message)
		}}
	case "darwin":
		return CommandSender{build: func(title, message string) *exec.Cmd {
			script := fmt.Sprintf("display notification %q with title %q", message, title)
			return exec.Command("osascript", "-e", script)
		}}
	case "windows":
		return CommandSender{build: func(title, message string) *exec.Cmd {
			script := fmt.Sprintf(
				"[reflection.assembly]::loadwithpartialname('System.Windows.Forms') | Out-Null; "+
					"$n = New-Object System.Windows.Forms.NotifyIcon; $n.Icon = [System.Drawing.SystemIcons]::Information; "+
					"$n.Visible = $true; $n.ShowBalloonTip(5000, '%s', '%s', 'Info')",
				strings.ReplaceAll(title, "'", "''"), strings.ReplaceAll(message, "'", "''"))
			return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		}}
	default:
		return nil
	}
}

// Notifier tells the user a run finished
type Notifier struct {
	sender     NotificationSender
	onComplete bool
	onError    bool
}

// NewNotifier creates a Notifier for this platform. A disabled notifier
// does nothing.
func NewNotifier(enabled, onComplete, onError bool) *Notifier {
	if !enabled {
		return &Notifier{}
	}
	return NewNotifierWith(PlatformSender(), onComplete, onError)
}

// NewNotifierWith creates a Notifier using sender
func NewNotifierWith(sender NotificationSender, onComplete, onError bool) *Notifier {
	return &Notifier{sender: sender, onComplete: onComplete, onError: onError}
}

// NotifyReport sends a notification summarising report. Send errors are
// returned but callers usually ignore them.
func (n *Notifier) NotifyReport(username string, report *models.Report) error {
	if report.HasFailures() {
		if !n.onError {
			return nil
		}
		return n.send("pinback: backup finished with failures",
			fmt.Sprintf("%s: %s", username, report.String()))
	}
	if !n.onComplete {
		return nil
	}
	return n.send("pinback: backup complete", fmt.Sprintf("%s: %s", username, report.String()))
}

// NotifyError reports a run that stopped before producing a report
func (n *Notifier) NotifyError(username string, err error) error {
	if !n.onError {
		return nil
	}
	return n.send("pinback: backup failed", fmt.Sprintf("%s: %v", username, err))
}

func (n *Notifier) send(title, message string) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}
