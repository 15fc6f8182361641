// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility available")

// Available reports whether a clipboard backend (xclip, xsel, wl-copy,
// pbcopy or the Windows API) was found.
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	text, err := cb.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard read: %w", err)
	}
	return text, nil
}
