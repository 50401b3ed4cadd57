package platform

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// windowsToastScript renders a basic two-line toast via PowerShell
const windowsToastScript = "[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime];" +
	"$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02);" +
	"$template.GetElementsByTagName('text').Item(0).AppendChild($template.CreateTextNode(%q)) | Out-Null;" +
	"$template.GetElementsByTagName('text').Item(1).AppendChild($template.CreateTextNode(%q)) | Out-Null;" +
	"$toast = [Windows.UI.Notifications.ToastNotification]::new($template);" +
	"[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%q).Show($toast);"

// Notify sends a desktop notification. Best-effort and fire-and-forget:
// a failure is returned for logging but must never fail the fetch run.
func Notify(title, message string) error {
	switch runtime.GOOS {
	case OSDarwin:
		script := fmt.Sprintf(
			`display notification %q with title %q`,
			escapeAppleScript(message), escapeAppleScript(title),
		)
		return exec.Command("osascript", "-e", script).Run()
	case OSWindows:
		script := fmt.Sprintf(windowsToastScript, title, message, title)
		return exec.Command("powershell", "-Command", script).Run()
	case OSLinux:
		return exec.Command("notify-send", title, message).Run()
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
