package ui

import (
	"fmt"
	"net/url"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"waveline/config"
)

func (c *controller) showSettingsDialog() {
	nameEntry := widget.NewEntry()
	nameEntry.SetText(c.cfg.DisplayName)

	backendEntry := widget.NewEntry()
	backendEntry.SetText(c.cfg.BackendBaseURL)

	socketEntry := widget.NewEntry()
	socketEntry.SetText(c.cfg.SocketURL)

	profileLabel := widget.NewLabel(c.cfg.ProfileID)
	deviceIDLabel := widget.NewLabel(c.cfg.DeviceID)

	content := container.NewVBox(
		widget.NewLabel("Display Name"),
		nameEntry,
		widget.NewLabel("Profile ID"),
		profileLabel,
		widget.NewLabel("Device ID"),
		deviceIDLabel,
		widget.NewLabel("Backend URL"),
		backendEntry,
		widget.NewLabel("Socket URL"),
		socketEntry,
	)

	dlg := dialog.NewCustomConfirm("Settings", "Save", "Close", content, func(save bool) {
		if !save {
			return
		}

		name := strings.TrimSpace(nameEntry.Text)
		if name == "" {
			dialog.ShowError(fmt.Errorf("display name is required"), c.window)
			return
		}

		backendURL := strings.TrimSpace(backendEntry.Text)
		if err := validateEndpoint(backendURL, "http", "https"); err != nil {
			dialog.ShowError(fmt.Errorf("backend URL: %w", err), c.window)
			return
		}
		socketURL := strings.TrimSpace(socketEntry.Text)
		if err := validateEndpoint(socketURL, "ws", "wss"); err != nil {
			dialog.ShowError(fmt.Errorf("socket URL: %w", err), c.window)
			return
		}

		endpointsChanged := c.cfg.BackendBaseURL != backendURL || c.cfg.SocketURL != socketURL
		c.cfg.DisplayName = name
		c.cfg.BackendBaseURL = backendURL
		c.cfg.SocketURL = socketURL

		if err := config.Save(c.cfgPath, c.cfg); err != nil {
			dialog.ShowError(err, c.window)
			return
		}

		if endpointsChanged {
			c.setStatus("Settings saved. Restart required to apply endpoint changes.")
			dialog.ShowInformation("Restart Required", "Settings were saved. Restart the app to apply the new endpoints.", c.window)
			return
		}
		c.setStatus("Settings saved")
	}, c.window)

	dlg.Resize(fyne.NewSize(520, 420))
	dlg.Show()
}

func validateEndpoint(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("value is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			if parsed.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}
