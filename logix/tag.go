package logix

import "strings"

// ---------------------------------------------------------------------------
// Tag resolution: collaborator interfaces + resolver
// ---------------------------------------------------------------------------

// TagScope is the visibility of a tag.
type TagScope int

const (
	// ScopeController tags are visible controller-wide.
	ScopeController TagScope = iota

	// ScopeProgram tags are local to one program or AOI.
	ScopeProgram
)

func (s TagScope) String() string {
	if s == ScopeProgram {
		return "program"
	}
	return "controller"
}

// Tag is the collaborator interface for a named tag. An alias tag carries
// a non-empty AliasFor referencing another tag, possibly with a trailing
// member path ("Tag2.Member" or "Local:1:I.Data").
type Tag interface {
	Name() string
	Scope() TagScope
	AliasFor() string
}

// TagTable looks tags up by base name.
type TagTable interface {
	Lookup(name string) (Tag, bool)
}

// Resolver binds the tag tables an operand consults: the instruction's
// immediate container table (program or AOI local) first, then the
// controller-global table. Container is the program name used for
// "Program:<name>." qualified prefixes. AOIs holds the custom-instruction
// names whose operands classify as Output.
type Resolver struct {
	Local     TagTable
	Global    TagTable
	Container string
	AOIs      map[string]bool
}

// maxAliasDepth bounds alias-chain walks. Cyclic aliasing is an
// external-data error; the walk stops rather than spinning.
const maxAliasDepth = 64

// IsAOI reports whether name is a registered Add-On Instruction.
func (r *Resolver) IsAOI(name string) bool {
	if r == nil {
		return false
	}
	return r.AOIs[name]
}

// Lookup consults the local table, then the global table.
func (r *Resolver) Lookup(name string) (Tag, bool) {
	if r == nil {
		return nil, false
	}
	if r.Local != nil {
		if t, ok := r.Local.Lookup(name); ok {
			return t, true
		}
	}
	if r.Global != nil {
		if t, ok := r.Global.Lookup(name); ok {
			return t, true
		}
	}
	return nil, false
}

// aliasBaseName extracts the base tag name from an AliasFor reference:
// the leftmost dot segment, stripped of any module address suffix
// ("Local:1:I.Data.3" -> "Local").
func aliasBaseName(aliasFor string) string {
	base := aliasFor
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[:i]
	}
	return base
}

// parentTag resolves the tag an alias points at, or nil when the target
// is absent from both tables (hardware address, missing data).
func (r *Resolver) parentTag(t Tag) Tag {
	if t.AliasFor() == "" {
		return nil
	}
	if parent, ok := r.Lookup(aliasBaseName(t.AliasFor())); ok {
		return parent
	}
	return nil
}

// BaseTag follows the alias chain from t until a tag with no AliasFor is
// reached. A tag whose alias target cannot be resolved is its own base.
func (r *Resolver) BaseTag(t Tag) Tag {
	if r == nil || t == nil {
		return t
	}
	cur := t
	for i := 0; i < maxAliasDepth; i++ {
		if cur.AliasFor() == "" {
			return cur
		}
		parent := r.parentTag(cur)
		if parent == nil {
			return cur
		}
		if parent.AliasFor() == "" {
			return parent
		}
		cur = parent
	}
	return cur
}

// aliasString substitutes alias targets for aliased-away names,
// recursively, carrying any member path segments the alias references
// plus the operand's own trailing path.
func (r *Resolver) aliasString(t Tag, additional string, depth int) string {
	if t.AliasFor() == "" || depth >= maxAliasDepth {
		return t.Name() + additional
	}

	parent := r.parentTag(t)
	if parent == nil {
		return t.AliasFor() + additional
	}

	// Keep the member path the alias itself carries ("Tag2.Member" keeps
	// ".Member" in front of the operand's own trailing path).
	if i := strings.IndexByte(t.AliasFor(), '.'); i >= 0 {
		additional = t.AliasFor()[i:] + additional
	}
	return r.aliasString(parent, additional, depth+1)
}
