package pgruntime

import (
	"fmt"
	"strings"
)

// Cursor is a scripted cursor: a fixed row set the session serves to OPEN,
// FETCH and CLOSE statements in execution order.
type Cursor struct {
	Name   string
	Rows   [][]Value
	pos    int
	isOpen bool
}

// CursorSet holds the cursors a session can open, keyed case-insensitively.
type CursorSet struct {
	cursors map[string]*Cursor
}

// NewCursorSet creates an empty set.
func NewCursorSet() *CursorSet {
	return &CursorSet{cursors: make(map[string]*Cursor)}
}

// Declare registers a cursor with its scripted rows.
func (cs *CursorSet) Declare(name string, rows [][]Value) {
	cs.cursors[normalize(name)] = &Cursor{Name: name, Rows: rows}
}

// Get looks a cursor up by name.
func (cs *CursorSet) Get(name string) (*Cursor, bool) {
	c, ok := cs.cursors[normalize(name)]
	return c, ok
}

// Open positions the cursor before its first row.
func (c *Cursor) Open() error {
	if c.isOpen {
		return fmt.Errorf("cursor %s is already open", c.Name)
	}
	c.isOpen = true
	c.pos = 0
	return nil
}

// Close closes the cursor.
func (c *Cursor) Close() error {
	if !c.isOpen {
		return fmt.Errorf("cursor %s is not open", c.Name)
	}
	c.isOpen = false
	return nil
}

// Fetch returns the next row and whether a row was produced. Fetching past
// the end keeps returning no row, like the target dialect.
func (c *Cursor) Fetch() ([]Value, bool, error) {
	if !c.isOpen {
		return nil, false, fmt.Errorf("cursor %s is not open", c.Name)
	}
	if c.pos >= len(c.Rows) {
		return nil, false, nil
	}
	row := c.Rows[c.pos]
	c.pos++
	return row, true, nil
}

// IsOpen reports the cursor's real open state, for asserting that shadow
// flags track it.
func (c *Cursor) IsOpen() bool {
	return c.isOpen
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
