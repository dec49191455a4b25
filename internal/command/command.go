// Package command turns the interpreter's untrusted JSON payload into one of
// three typed commands.
//
// Validation is a presence check against a fixed field set per action. Values
// are carried through as text; the resource collaborator owns type and range
// rules. The one exception is the transaction date, which falls back to today
// when it does not parse.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-commands/internal/domain"
)

type Action string

const (
	ActionCreateTransaction Action = "create_transaction"
	ActionCreateTodo        Action = "create_todo"
	ActionCreatePost        Action = "create_post"
)

// requiredFields lists, per action, the keys that must be present.
var requiredFields = map[Action][]string{
	ActionCreateTransaction: {"title", "amount", "kind", "date"},
	ActionCreateTodo:        {"title", "status"},
	ActionCreatePost:        {"title", "content"},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"02 Jan 2006",
	"2 January 2006",
}

// Payload is the decoded top-level JSON object from the interpreter.
type Payload map[string]json.RawMessage

// Command is implemented by Transaction, Todo and Post.
type Command interface {
	Action() Action
}

type Transaction struct {
	Title  string
	Amount string
	Kind   string
	Date   time.Time
}

type Todo struct {
	Title  string
	Status string
}

type Post struct {
	Title   string
	Content string
}

func (Transaction) Action() Action { return ActionCreateTransaction }
func (Todo) Action() Action        { return ActionCreateTodo }
func (Post) Action() Action        { return ActionCreatePost }

// InvalidError reports an unknown action or missing required fields.
type InvalidError struct {
	Action        string
	UnknownAction bool
	Missing       []string
}

func (e *InvalidError) Error() string {
	if e.UnknownAction {
		return fmt.Sprintf("command: unknown action %q", e.Action)
	}
	return fmt.Sprintf("command: %s missing fields: %s", e.Action, strings.Join(e.Missing, ", "))
}

// Validate checks p against the required fields of its action and builds
// the typed command. now supplies the fallback date.
func Validate(p Payload, now time.Time) (Command, error) {
	action := Action(p.text("action"))
	required, ok := requiredFields[action]
	if !ok {
		return nil, &InvalidError{Action: string(action), UnknownAction: true}
	}
	if missing := p.missing(required); len(missing) > 0 {
		return nil, &InvalidError{Action: string(action), Missing: missing}
	}

	switch action {
	case ActionCreateTransaction:
		return Transaction{
			Title:  p.text("title"),
			Amount: p.text("amount"),
			Kind:   p.text("kind"),
			Date:   normalizeDate(p.text("date"), now),
		}, nil
	case ActionCreateTodo:
		status := p.text("status")
		if p.isNull("status") {
			status = domain.TodoPending
		}
		return Todo{Title: p.text("title"), Status: status}, nil
	default:
		title := p.text("title")
		body := p.text("content")
		if p.isNull("content") {
			body = title
		}
		return Post{Title: title, Content: body}, nil
	}
}

func (p Payload) missing(required []string) []string {
	var out []string
	for _, f := range required {
		if _, ok := p[f]; !ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// text renders a field without coercion: strings are unquoted, null and
// absent fields are empty, anything else is its compact JSON literal.
// isNull reports whether key is absent or JSON null. An empty string is
// a value and is left for the resource rules to judge.
func (p Payload) isNull(key string) bool {
	raw, ok := p[key]
	if !ok {
		return true
	}
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func (p Payload) text(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func normalizeDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
