package budget

import (
	"errors"
	"fmt"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// EditorState is a step of the ring-limit edit flow.
type EditorState int

const (
	Closed EditorState = iota
	Open
	Editing
	Saved
	Cancelled
)

func (s EditorState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Editing:
		return "editing"
	case Saved:
		return "saved"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EditorState(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("invalid editor transition")

// Draft is the uncommitted edit held by an Editor.
type Draft struct {
	Category string
	Input    string
}

// Editor walks one limit edit through closed, open and editing to saved or
// cancelled. The draft never touches committed limits; Save hands the parsed
// value back to the caller to commit.
type Editor struct {
	state EditorState
	draft Draft
}

// NewEditor returns a closed editor.
func NewEditor() *Editor {
	return &Editor{}
}

func (e *Editor) State() EditorState { return e.state }

func (e *Editor) Draft() Draft { return e.draft }

// Open starts an edit for category, seeding the draft with its current limit.
// A finished editor may be reopened.
func (e *Editor) Open(category string, current decimal.Decimal) error {
	if e.state == Open || e.state == Editing {
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, e.state)
	}
	e.state = Open
	e.draft = Draft{Category: core.NormalizeCategory(category), Input: current.String()}
	return nil
}

// Edit replaces the draft. The category may be changed while editing.
func (e *Editor) Edit(category, input string) error {
	if e.state != Open && e.state != Editing {
		return fmt.Errorf("%w: edit from %s", ErrInvalidTransition, e.state)
	}
	e.state = Editing
	if category != "" {
		e.draft.Category = core.NormalizeCategory(category)
	}
	e.draft.Input = input
	return nil
}

// Save parses the draft and finishes the edit. An unparseable or
// non-positive amount leaves the editor where it was.
func (e *Editor) Save() (string, decimal.Decimal, error) {
	if e.state != Open && e.state != Editing {
		return "", decimal.Zero, fmt.Errorf("%w: save from %s", ErrInvalidTransition, e.state)
	}
	limit, err := core.ParseAmount(e.draft.Input)
	if err != nil {
		return "", decimal.Zero, core.ErrInvalidLimit
	}
	e.state = Saved
	return e.draft.Category, limit, nil
}

// Cancel discards the draft with no side effects.
func (e *Editor) Cancel() {
	if e.state == Open || e.state == Editing {
		e.state = Cancelled
		e.draft = Draft{}
	}
}
