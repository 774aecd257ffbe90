package fragments

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/fragments/errors"
)

// Fingerprint computes a content fingerprint over the fragments of seq in order.
// Two builds with the same fingerprint handed the renderer identical input.
func Fingerprint(baseDir string, seq Sequence) (string, error) {
	var body strings.Builder
	for _, p := range seq {
		path := p
		if baseDir != "" && !filepath.IsAbs(p) {
			path = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ferrors.ErrFragmentReadFailed, p, err)
		}
		body.Write(data)
		body.WriteString("\n")
	}
	return mdfp.CalculateFingerprintFromParts("", body.String()), nil
}
