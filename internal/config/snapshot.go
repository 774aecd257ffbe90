package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
)

// Snapshot computes a stable hash of the configuration fields that affect rendered output.
// Logging, history, metrics and notification settings are excluded. Worklist order is
// significant since it is the build order.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("source.root", c.Source.Root)
	w("source.layout", string(c.Source.Layout))
	w("source.extension", c.Source.Extension)
	w("source.sentinel", c.Source.Sentinel)
	w("output.root", c.Output.Root)
	w("renderer.executable", c.Renderer.Executable)
	for _, k := range artifact.Kinds() {
		s := c.Renderer.Settings(k)
		prefix := "renderer." + k.String()
		w(prefix+".format", s.Format)
		w(prefix+".theme", s.Theme)
		w(prefix+".highlight_style", s.HighlightStyle)
		w(prefix+".stylesheets", strings.Join(s.Stylesheets, ","))
		w("lessons."+k.String(), strings.Join(c.Lessons.For(k), ","))
	}
	w("extract.command", strings.Join(c.Extract.Command, " "))
	return hex.EncodeToString(h.Sum(nil))
}
