package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// tapLabel is a plain text label that reacts to taps and reports hover
// through the same hint callback the toolbar buttons use, so pointing at
// the chat header surfaces its hint in the status bar.
type tapLabel struct {
	widget.BaseWidget
	text  string
	style fyne.TextStyle
	color color.Color

	hint           string
	onTapped       func()
	onHoverChanged func(target fyne.CanvasObject, hint string, active bool)
}

func newTapLabel(text, hint string, onTapped func(), onHoverChanged func(target fyne.CanvasObject, hint string, active bool)) *tapLabel {
	label := &tapLabel{
		text:           text,
		color:          themedColor(theme.ColorNameForeground),
		hint:           hint,
		onTapped:       onTapped,
		onHoverChanged: onHoverChanged,
	}
	label.ExtendBaseWidget(label)
	return label
}

func (l *tapLabel) SetText(text string) {
	if l.text == text {
		return
	}
	l.text = text
	l.Refresh()
}

func (l *tapLabel) SetTextStyle(style fyne.TextStyle) {
	l.style = style
	l.Refresh()
}

func (l *tapLabel) SetColor(c color.Color) {
	l.color = c
	l.Refresh()
}

func (l *tapLabel) Tapped(_ *fyne.PointEvent) {
	if l.onTapped != nil {
		l.onTapped()
	}
}

func (l *tapLabel) MouseIn(_ *desktop.MouseEvent) {
	if l.onHoverChanged != nil {
		l.onHoverChanged(l, l.hint, true)
	}
}

func (l *tapLabel) MouseMoved(_ *desktop.MouseEvent) {}

func (l *tapLabel) MouseOut() {
	if l.onHoverChanged != nil {
		l.onHoverChanged(l, "", false)
	}
}

func (l *tapLabel) Cursor() desktop.Cursor {
	if l.onTapped == nil {
		return desktop.DefaultCursor
	}
	return desktop.PointerCursor
}

func (l *tapLabel) CreateRenderer() fyne.WidgetRenderer {
	text := canvas.NewText(l.text, l.color)
	text.TextStyle = l.style
	text.Alignment = fyne.TextAlignLeading
	return &tapLabelRenderer{label: l, text: text}
}

type tapLabelRenderer struct {
	label *tapLabel
	text  *canvas.Text
}

func (r *tapLabelRenderer) Layout(size fyne.Size) {
	r.text.Resize(size)
}

func (r *tapLabelRenderer) MinSize() fyne.Size {
	return r.text.MinSize()
}

func (r *tapLabelRenderer) Refresh() {
	r.text.Text = r.label.text
	r.text.TextStyle = r.label.style
	r.text.Color = r.label.color
	r.text.Refresh()
}

func (r *tapLabelRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.text}
}

func (r *tapLabelRenderer) Destroy() {}
