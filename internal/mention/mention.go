// Package mention implements the @-mention autocomplete engine over the
// composition text and caret.
package mention

import (
	"strings"

	"github.com/classline/classline/internal/models"
)

// Span marks the detected @token in rune offsets, start inclusive and end
// exclusive. Start points at the '@'.
type Span struct {
	Start int
	End   int
}

// Detect looks for a trailing token of '@' followed by zero or more
// non-space, non-'@' runes ending at the caret. Caret is a rune offset.
func Detect(text string, caret int) (query string, span Span, ok bool) {
	runes := []rune(text)
	if caret < 0 || caret > len(runes) {
		return "", Span{}, false
	}

	i := caret
	for i > 0 {
		r := runes[i-1]
		if r == '@' {
			return string(runes[i:caret]), Span{Start: i - 1, End: caret}, true
		}
		if r == ' ' || r == '\t' || r == '\n' {
			return "", Span{}, false
		}
		i--
	}
	return "", Span{}, false
}

// Engine tracks the suggestion list state across edits.
type Engine struct {
	candidates []*models.User

	open      bool
	query     string
	span      Span
	filtered  []*models.User
	highlight int
}

// NewEngine creates an Engine over the candidate list.
func NewEngine(candidates []*models.User) *Engine {
	return &Engine{candidates: candidates}
}

// SetCandidates replaces the candidate list and re-filters if open.
func (e *Engine) SetCandidates(candidates []*models.User) {
	e.candidates = candidates
	if e.open {
		e.applyFilter(e.query, true)
	}
}

// Update re-runs detection against the current text and caret. Loss of the
// trailing @token pattern closes the list without mutating text.
func (e *Engine) Update(text string, caret int) bool {
	query, span, ok := Detect(text, caret)
	if !ok {
		e.Close()
		return false
	}

	changed := !e.open || query != e.query
	e.open = true
	e.span = span
	e.applyFilter(query, changed)
	return true
}

// applyFilter filters candidates by case-insensitive substring on display
// name. The highlight resets to zero whenever the filtered set changes.
func (e *Engine) applyFilter(query string, reset bool) {
	e.query = query
	lowered := strings.ToLower(query)
	e.filtered = e.filtered[:0]
	for _, candidate := range e.candidates {
		if strings.Contains(strings.ToLower(candidate.Name), lowered) {
			e.filtered = append(e.filtered, candidate)
		}
	}
	if reset {
		e.highlight = 0
	}
	if e.highlight >= len(e.filtered) {
		e.highlight = 0
	}
}

// Open reports whether the suggestion list is showing.
func (e *Engine) Open() bool { return e.open }

// Query returns the token text after the '@'.
func (e *Engine) Query() string { return e.query }

// Suggestions returns the filtered candidate list.
func (e *Engine) Suggestions() []*models.User {
	out := make([]*models.User, len(e.filtered))
	copy(out, e.filtered)
	return out
}

// Highlight returns the highlighted index.
func (e *Engine) Highlight() int { return e.highlight }

// Move shifts the highlighted index by delta, clamped within bounds.
func (e *Engine) Move(delta int) {
	if !e.open || len(e.filtered) == 0 {
		return
	}
	e.highlight += delta
	if e.highlight < 0 {
		e.highlight = 0
	}
	if e.highlight >= len(e.filtered) {
		e.highlight = len(e.filtered) - 1
	}
}

// Confirm replaces exactly the detected token span with "@<fullName> " and
// returns the new text with the caret positioned just after the inserted
// space. Returns ok false when nothing is highlighted.
func (e *Engine) Confirm(text string) (newText string, newCaret int, ok bool) {
	if !e.open || e.highlight >= len(e.filtered) {
		return text, -1, false
	}
	selected := e.filtered[e.highlight]

	runes := []rune(text)
	if e.span.Start < 0 || e.span.End > len(runes) || e.span.Start > e.span.End {
		return text, -1, false
	}

	inserted := []rune("@" + selected.Name + " ")
	out := make([]rune, 0, len(runes)-(e.span.End-e.span.Start)+len(inserted))
	out = append(out, runes[:e.span.Start]...)
	out = append(out, inserted...)
	caret := len(out)
	out = append(out, runes[e.span.End:]...)

	e.Close()
	return string(out), caret, true
}

// Close dismisses the suggestion list without mutating text.
func (e *Engine) Close() {
	e.open = false
	e.query = ""
	e.span = Span{}
	e.filtered = e.filtered[:0]
	e.highlight = 0
}
