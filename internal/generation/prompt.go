package generation

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/scry-studio/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt is a rendered system and user message pair.
type Prompt struct {
	System string
	User   string
}

// promptData represents the data passed to the prompt templates
type promptData struct {
	Title   string
	Text    string
	Options Options
	Node    domain.Node
	Outline string
}

// prompts renders the embedded prompt templates.
type prompts struct {
	tmpl *template.Template
}

// loadPrompts parses the embedded prompt templates.
func loadPrompts() (*prompts, error) {
	tmpl, err := template.New("prompts").ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", ErrInvalidConfig, err)
	}
	return &prompts{tmpl: tmpl}, nil
}

// render executes the "<name>.system" and "<name>.user" templates.
func (p *prompts) render(name string, data promptData) (Prompt, error) {
	system, err := p.execute(name+".system", data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := p.execute(name+".user", data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

func (p *prompts) execute(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// outline renders a mind map as an indented list, children under their parent.
func outline(m *domain.MindMap) string {
	if m == nil || len(m.Nodes) == 0 {
		return ""
	}

	children := make(map[string][]domain.Node)
	known := make(map[string]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		known[n.ID] = true
	}
	var roots []domain.Node
	for _, n := range m.Nodes {
		if n.ParentID == "" || !known[n.ParentID] {
			roots = append(roots, n)
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	var b strings.Builder
	visited := make(map[string]bool, len(m.Nodes))
	var walk func(n domain.Node, depth int)
	walk = func(n domain.Node, depth int) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		fmt.Fprintf(&b, "%s- %s [%s]\n", strings.Repeat("  ", depth), n.Label, n.ID)
		for _, c := range children[n.ID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return b.String()
}
