// Package terminal renders view commands as styled lines on a terminal.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tjfontaine/blackstories-client/internal/view"
)

const ruleWidth = 60

// Sink writes commands to w. It is safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
}

var _ view.Sink = (*Sink)(nil)

// New creates a sink for w. Colors follow what w supports; a plain writer
// gets unstyled text.
func New(w io.Writer) *Sink {
	return &Sink{
		w:      w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Render implements view.Sink.
func (s *Sink) Render(c view.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.Kind {
	case view.KindClear:
		fmt.Fprintln(s.w, s.styles.rule.Render(strings.Repeat("─", ruleWidth)))
	case view.KindMessage:
		s.message(c)
	case view.KindStatus:
		fmt.Fprintln(s.w, s.styles.status.Render(c.Text))
	case view.KindPromptInput:
		fmt.Fprintln(s.w, s.styles.prompt.Render("Tu pregunta (/hint, /solve <solución>, /save, /quit):"))
	case view.KindPromptChoice:
		for i, choice := range c.Choices {
			fmt.Fprintf(s.w, "  %s %s\n", s.styles.choice.Render(fmt.Sprintf("[%d]", i+1)), choice)
		}
		fmt.Fprintln(s.w, s.styles.prompt.Render("Elige una respuesta (número o texto, /save, /quit):"))
	case view.KindOfferSave:
		fmt.Fprintln(s.w, s.styles.prompt.Render("Escribe /save para guardar la conversación."))
	}
}

func (s *Sink) message(c view.Command) {
	text := c.Text
	if c.HTML {
		text = plainText(text)
	}
	st := s.styles.lane(c.Lane)
	if c.Speaker == "" {
		fmt.Fprintln(s.w, st.Render(text))
		return
	}
	fmt.Fprintf(s.w, "%s %s\n", st.Bold(true).Render(c.Speaker+":"), st.Render(text))
}

// plainText flattens pre-rendered summary markup for the terminal. Block
// elements and <br> become line breaks; script and style bodies are dropped.
func plainText(markup string) string {
	var b strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break // io.EOF; a string reader has no other failure
		}
		switch tt {
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); {
			case a == atom.Script || a == atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			case a == atom.Br || blockElement(a):
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); {
			case a == atom.Script || a == atom.Style:
				if skip > 0 {
					skip--
				}
			case blockElement(a):
				b.WriteByte('\n')
			}
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func blockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}
