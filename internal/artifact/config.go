package artifact

// Settings holds the renderer options that vary between artifact kinds.
// An empty field means the renderer default is used and no flag is emitted.
type Settings struct {
	Format         string
	Theme          string
	HighlightStyle string
	Stylesheets    []string
}

// Overrides replaces individual Settings fields; nil fields keep the default.
type Overrides struct {
	Format         *string  `yaml:"format,omitempty"`
	Theme          *string  `yaml:"theme,omitempty"`
	HighlightStyle *string  `yaml:"highlight_style,omitempty"`
	Stylesheets    []string `yaml:"stylesheets,omitempty"`
}

var defaults = map[Kind]Settings{
	SlideDeck: {
		Format:         "revealjs",
		Theme:          "simple",
		HighlightStyle: "kate",
		Stylesheets:    []string{"../../slide-style.css", "../../code-style.css"},
	},
	ExerciseSheet: {
		Stylesheets: []string{"../../code-style.css"},
	},
}

// DefaultSettings returns a copy of the built-in settings for k.
func DefaultSettings(k Kind) Settings {
	s := defaults[k]
	s.Stylesheets = append([]string(nil), s.Stylesheets...)
	return s
}

// Apply returns s with every non-nil override applied.
func (s Settings) Apply(o Overrides) Settings {
	out := s
	if o.Format != nil {
		out.Format = *o.Format
	}
	if o.Theme != nil {
		out.Theme = *o.Theme
	}
	if o.HighlightStyle != nil {
		out.HighlightStyle = *o.HighlightStyle
	}
	if o.Stylesheets != nil {
		out.Stylesheets = append([]string(nil), o.Stylesheets...)
	} else {
		out.Stylesheets = append([]string(nil), s.Stylesheets...)
	}
	return out
}

// RenderConfig is the ordered renderer flag list shared by every lesson of a kind.
// Only the output path varies per lesson and is added by Args.
type RenderConfig struct {
	Kind  Kind
	flags []string
}

// Resolve maps a kind and its settings to the renderer flags, in fixed order:
// format, theme, highlight style, stylesheets.
func Resolve(k Kind, s Settings) RenderConfig {
	var flags []string
	if s.Format != "" {
		flags = append(flags, "-t", s.Format)
	}
	if s.Theme != "" {
		flags = append(flags, "-V", "theme="+s.Theme)
	}
	if s.HighlightStyle != "" {
		flags = append(flags, "--highlight-style="+s.HighlightStyle)
	}
	for _, css := range s.Stylesheets {
		flags = append(flags, "--css", css)
	}
	return RenderConfig{Kind: k, flags: flags}
}

// Flags returns a copy of the kind-constant flags.
func (c RenderConfig) Flags() []string {
	return append([]string(nil), c.flags...)
}

// Args returns the full flag list for one lesson: the kind flags followed by the
// output target and the standalone document flag.
func (c RenderConfig) Args(outputPath string) []string {
	args := make([]string, 0, len(c.flags)+3)
	args = append(args, c.flags...)
	return append(args, "-o", outputPath, "-s")
}
