package ui

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Catppuccin Mocha palette.
var (
	ctpCrust    = color.NRGBA{R: 17, G: 17, B: 27, A: 255}
	ctpMantle   = color.NRGBA{R: 24, G: 24, B: 37, A: 255}
	ctpBase     = color.NRGBA{R: 30, G: 30, B: 46, A: 255}
	ctpSurface0 = color.NRGBA{R: 49, G: 50, B: 68, A: 255}
	ctpSurface1 = color.NRGBA{R: 69, G: 71, B: 90, A: 255}
	ctpSurface2 = color.NRGBA{R: 88, G: 91, B: 112, A: 255}
	ctpOverlay0 = color.NRGBA{R: 108, G: 112, B: 134, A: 255}
	ctpOverlay1 = color.NRGBA{R: 127, G: 132, B: 156, A: 255}
	ctpSubtext1 = color.NRGBA{R: 186, G: 194, B: 222, A: 255}
	ctpText     = color.NRGBA{R: 205, G: 214, B: 244, A: 255}
	ctpBlue     = color.NRGBA{R: 137, G: 180, B: 250, A: 255}
	ctpGreen    = color.NRGBA{R: 166, G: 227, B: 161, A: 255}
	ctpRed      = color.NRGBA{R: 243, G: 139, B: 168, A: 255}
	ctpPeach    = color.NRGBA{R: 250, G: 179, B: 135, A: 255}
	ctpLavender = color.NRGBA{R: 180, G: 190, B: 254, A: 255}
)

// Semantic aliases used by the panes.
var (
	colorOnline      = ctpGreen
	colorOffline     = ctpOverlay0
	colorOutgoingMsg = ctpSurface0
	colorIncomingMsg = ctpSurface0
	colorMuted       = ctpOverlay1
)

// newRoundedBg creates a container with a rounded colored rectangle behind the content.
func newRoundedBg(bgColor color.Color, radius float32, content fyne.CanvasObject) fyne.CanvasObject {
	bg := canvas.NewRectangle(bgColor)
	bg.CornerRadius = radius
	return container.NewStack(bg, container.NewPadded(content))
}

// newStatusDot creates a small colored circle indicating online/offline status.
func newStatusDot(online bool) (*canvas.Circle, fyne.CanvasObject) {
	c := colorOffline
	if online {
		c = colorOnline
	}
	dot := canvas.NewCircle(c)
	wrapped := container.NewGridWrap(fyne.NewSize(10, 10), dot)
	return dot, wrapped
}

type hintButton struct {
	widget.Button
	hint           string
	onHoverChanged func(target fyne.CanvasObject, hint string, active bool)
}

func newHintButton(label, hint string, tapped func(), onHoverChanged func(target fyne.CanvasObject, hint string, active bool)) *hintButton {
	return newHintButtonWithIcon(label, nil, hint, tapped, onHoverChanged)
}

func newHintButtonWithIcon(label string, icon fyne.Resource, hint string, tapped func(), onHoverChanged func(target fyne.CanvasObject, hint string, active bool)) *hintButton {
	btn := &hintButton{
		hint:           strings.TrimSpace(hint),
		onHoverChanged: onHoverChanged,
	}
	btn.Text = label
	btn.Icon = icon
	btn.OnTapped = tapped
	btn.ExtendBaseWidget(btn)
	return btn
}

func (b *hintButton) MouseIn(ev *desktop.MouseEvent) {
	b.Button.MouseIn(ev)
	if b.onHoverChanged != nil {
		b.onHoverChanged(b, b.hint, true)
	}
}

func (b *hintButton) MouseMoved(ev *desktop.MouseEvent) {
	b.Button.MouseMoved(ev)
}

func (b *hintButton) MouseOut() {
	b.Button.MouseOut()
	if b.onHoverChanged != nil {
		b.onHoverChanged(b, "", false)
	}
}

func themedColor(name fyne.ThemeColorName) color.Color {
	app := fyne.CurrentApp()
	if app == nil {
		return ctpText
	}
	return app.Settings().Theme().Color(name, app.Settings().ThemeVariant())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// wavelineTheme wraps the default theme so the app uses Catppuccin Mocha dark palette.
type wavelineTheme struct {
	fyne.Theme
}

func (t *wavelineTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return ctpBase
	case theme.ColorNameButton:
		return ctpSurface0
	case theme.ColorNameDisabled:
		return ctpOverlay0
	case theme.ColorNameForeground:
		return ctpText
	case theme.ColorNameHeaderBackground:
		return ctpMantle
	case theme.ColorNameInputBackground:
		return ctpSurface0
	case theme.ColorNameInputBorder:
		return ctpSurface2
	case theme.ColorNameMenuBackground:
		return ctpMantle
	case theme.ColorNameOverlayBackground:
		return ctpMantle
	case theme.ColorNamePlaceHolder:
		return ctpOverlay1
	case theme.ColorNamePrimary:
		return ctpBlue
	case theme.ColorNameScrollBar:
		return ctpSurface2
	case theme.ColorNameSeparator:
		return ctpSurface0
	case theme.ColorNameShadow:
		return color.NRGBA{R: 17, G: 17, B: 27, A: 128}
	case theme.ColorNameHover:
		return ctpSurface1
	case theme.ColorNameFocus:
		return ctpBlue
	case theme.ColorNameForegroundOnPrimary:
		return ctpBase
	case theme.ColorNameSelection:
		return ctpSurface1
	case theme.ColorNameHyperlink:
		return ctpBlue
	default:
		return t.Theme.Color(name, variant)
	}
}

// newWavelineTheme returns a theme that matches the app's dark UI for overlays and tooltips.
func newWavelineTheme() fyne.Theme {
	return &wavelineTheme{Theme: theme.DefaultTheme()}
}
