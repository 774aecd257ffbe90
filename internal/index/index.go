// Package index writes index.html into the output root, linking every
// rendered slide deck and exercise sheet.
package index

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FileName is the index page written under the output root.
const FileName = "index.html"

// Entry is one linked artifact.
type Entry struct {
	// Section groups entries, e.g. "slides" or "exercises".
	Section string
	Lesson  string
	Title   string
	// Href is relative to the output root, always slash-separated.
	Href string
}

// NewEntry builds an entry for the artifact at outputPath, relative to root.
// The title comes from the artifact's <title> element, falling back to the
// lesson name in title case.
func NewEntry(root, section, lesson, outputPath string) Entry {
	rel, err := filepath.Rel(root, outputPath)
	if err != nil {
		rel = filepath.Base(outputPath)
	}
	e := Entry{Section: section, Lesson: lesson, Href: filepath.ToSlash(rel)}
	if f, err := os.Open(outputPath); err == nil {
		e.Title = ExtractTitle(f)
		_ = f.Close()
	}
	if e.Title == "" {
		e.Title = FallbackTitle(lesson)
	}
	return e
}

// ExtractTitle returns the trimmed text of the first <title> element, or "".
func ExtractTitle(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.Join(strings.Fields(extractText(n)), " ")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return text.String()
}

// FallbackTitle turns a lesson directory name such as "ex_part_1" into "Ex Part 1".
func FallbackTitle(lesson string) string {
	words := strings.FieldsFunc(lesson, func(r rune) bool { return r == '_' || r == '-' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Markdown returns the index body as Markdown, one section per distinct
// Section in first-seen order.
func Markdown(title string, entries []Entry) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", escape(title))

	var sections []string
	bySection := map[string][]Entry{}
	for _, e := range entries {
		if _, ok := bySection[e.Section]; !ok {
			sections = append(sections, e.Section)
		}
		bySection[e.Section] = append(bySection[e.Section], e)
	}
	for _, s := range sections {
		fmt.Fprintf(&buf, "\n## %s\n\n", escape(FallbackTitle(s)))
		for _, e := range bySection[s] {
			fmt.Fprintf(&buf, "- [%s](<%s>)\n", escape(e.Title), path.Clean(e.Href))
		}
	}
	return buf.Bytes()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`", `<`, `\<`,
)

func escape(s string) string { return markdownEscaper.Replace(s) }

var page = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// Render converts the Markdown listing to a standalone HTML page.
func Render(title string, entries []Entry) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(Markdown(title, entries), &body); err != nil {
		return nil, fmt.Errorf("convert index markdown: %w", err)
	}
	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())}) // #nosec G203 -- goldmark output with raw HTML disabled
	if err != nil {
		return nil, fmt.Errorf("render index page: %w", err)
	}
	return out.Bytes(), nil
}

// PageMode is the permission of index.html: readable by a web server running
// as another user, like the renderer's own artifacts.
const PageMode = 0o644

// Write renders the index and writes it atomically to root/index.html.
func Write(root, title string, entries []Entry) (string, error) {
	data, err := Render(title, entries)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, FileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, PageMode); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	if err := os.Chmod(tmp, PageMode); err != nil {
		return "", fmt.Errorf("chmod index: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("rename index: %w", err)
	}
	return target, nil
}
