package project

import (
	"fmt"

	"github.com/roxplc/rox/logix"
)

// Tag is one named data point in a controller or program. A tag with a
// non-empty AliasFor owns no storage of its own; it reinterprets the
// referenced tag (possibly a member or bit of it).
type Tag struct {
	name        string
	DataType    string
	Description string
	Alias       string
	Constant    bool

	scope logix.TagScope
}

// NewTag builds an unattached tag. Scope is assigned when the tag is
// added to a table.
func NewTag(name, dataType string) *Tag {
	return &Tag{name: name, DataType: dataType}
}

// NewAliasTag builds an unattached alias tag pointing at target, which
// may carry a member path ("Conveyor.Motor" or "Local:1:I.Data").
func NewAliasTag(name, target string) *Tag {
	return &Tag{name: name, Alias: target}
}

// Name implements logix.Tag.
func (t *Tag) Name() string { return t.name }

// Scope implements logix.Tag. Unattached tags report controller scope.
func (t *Tag) Scope() logix.TagScope { return t.scope }

// AliasFor implements logix.Tag.
func (t *Tag) AliasFor() string { return t.Alias }

// TagTable is an ordered, name-unique tag collection. It implements
// logix.TagTable and stamps each added tag with the table's scope.
type TagTable struct {
	scope  logix.TagScope
	order  []string
	byName map[string]*Tag
}

// NewTagTable builds an empty table whose tags carry the given scope.
func NewTagTable(scope logix.TagScope) *TagTable {
	return &TagTable{scope: scope, byName: make(map[string]*Tag)}
}

// Add inserts a tag, rejecting duplicates by name.
func (tt *TagTable) Add(t *Tag) error {
	if _, ok := tt.byName[t.name]; ok {
		return fmt.Errorf("%w: tag %q", ErrDuplicate, t.name)
	}
	t.scope = tt.scope
	tt.byName[t.name] = t
	tt.order = append(tt.order, t.name)
	return nil
}

// Remove deletes a tag by name.
func (tt *TagTable) Remove(name string) error {
	if _, ok := tt.byName[name]; !ok {
		return fmt.Errorf("%w: tag %q", ErrNotFound, name)
	}
	delete(tt.byName, name)
	for i, n := range tt.order {
		if n == name {
			tt.order = append(tt.order[:i], tt.order[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup implements logix.TagTable.
func (tt *TagTable) Lookup(name string) (logix.Tag, bool) {
	if tt == nil {
		return nil, false
	}
	t, ok := tt.byName[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// Get returns the concrete tag by name.
func (tt *TagTable) Get(name string) (*Tag, bool) {
	t, ok := tt.byName[name]
	return t, ok
}

// Names returns tag names in insertion order.
func (tt *TagTable) Names() []string {
	out := make([]string, len(tt.order))
	copy(out, tt.order)
	return out
}

// Len returns the number of tags.
func (tt *TagTable) Len() int { return len(tt.byName) }

// Tags returns tags in insertion order.
func (tt *TagTable) Tags() []*Tag {
	out := make([]*Tag, 0, len(tt.order))
	for _, n := range tt.order {
		out = append(out, tt.byName[n])
	}
	return out
}
