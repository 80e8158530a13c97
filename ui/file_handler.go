package ui

import (
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
)

// PickerFunc opens a platform-specific picker and returns selected file paths.
type PickerFunc func() ([]string, error)

// FileHandler keeps file picker logic decoupled from the send path, so the
// attachment flow is testable with an injected picker.
type FileHandler struct {
	picker PickerFunc
}

// NewFileHandler constructs a file handler with an injected picker function.
func NewFileHandler(picker PickerFunc) *FileHandler {
	return &FileHandler{picker: picker}
}

// PickPaths opens the configured picker.
func (h *FileHandler) PickPaths() ([]string, error) {
	if h == nil || h.picker == nil {
		return nil, errors.New("file picker is not configured")
	}
	return h.picker()
}

// PickFile returns the first selected path for call sites that only need one.
func (h *FileHandler) PickFile() (string, error) {
	paths, err := h.PickPaths()
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", errors.New("no file selected")
	}
	return paths[0], nil
}

// pickFilePath shows the native open dialog and blocks until the user picks
// a file or cancels. Callers run it off the UI goroutine.
func (c *controller) pickFilePath() ([]string, error) {
	type pickResult struct {
		path string
		err  error
	}
	result := make(chan pickResult, 1)

	fyne.Do(func() {
		dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil {
				result <- pickResult{err: err}
				return
			}
			if reader == nil {
				result <- pickResult{err: errFilePickerCancelled}
				return
			}
			path := reader.URI().Path()
			_ = reader.Close()
			result <- pickResult{path: path}
		}, c.window)
	})

	r := <-result
	if r.err != nil {
		return nil, r.err
	}
	return []string{r.path}, nil
}
