// Package snapshot captures a parsed controller as a canonical CBOR
// document with a SHA-256 digest, for cheap change detection between
// tool runs.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roxplc/rox/project"
)

// cborEncMode uses canonical options so the same controller always
// encodes to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the stable, order-preserving image of a controller.
type Snapshot struct {
	Controller string    `cbor:"1,keyasint"`
	Type       string    `cbor:"2,keyasint"`
	CommPath   string    `cbor:"3,keyasint"`
	Tags       []Tag     `cbor:"4,keyasint"`
	Programs   []Program `cbor:"5,keyasint"`
	Modules    []Module  `cbor:"6,keyasint"`
	AOIs       []string  `cbor:"7,keyasint"`
}

// Tag is one tag row: name, datatype, and alias target.
type Tag struct {
	Name     string `cbor:"1,keyasint"`
	DataType string `cbor:"2,keyasint,omitempty"`
	AliasFor string `cbor:"3,keyasint,omitempty"`
}

// Program captures one program with its local tags and routines.
type Program struct {
	Name        string    `cbor:"1,keyasint"`
	MainRoutine string    `cbor:"2,keyasint,omitempty"`
	Tags        []Tag     `cbor:"3,keyasint,omitempty"`
	Routines    []Routine `cbor:"4,keyasint,omitempty"`
}

// Routine captures rung text and comments in execution order.
type Routine struct {
	Name  string `cbor:"1,keyasint"`
	Rungs []Rung `cbor:"2,keyasint,omitempty"`
}

// Rung is one row: text defines equality, the comment rides along.
type Rung struct {
	Text    string `cbor:"1,keyasint"`
	Comment string `cbor:"2,keyasint,omitempty"`
}

// Module is one hardware module row.
type Module struct {
	Name          string `cbor:"1,keyasint"`
	CatalogNumber string `cbor:"2,keyasint,omitempty"`
}

// Capture builds a snapshot from the controller's current state. All
// collections keep their model insertion order, so two identical
// controllers capture identically.
func Capture(c *project.Controller) *Snapshot {
	s := &Snapshot{
		Controller: c.Name(),
		Type:       c.Type,
		CommPath:   c.CommPath,
	}
	for _, t := range c.Tags.Tags() {
		s.Tags = append(s.Tags, Tag{Name: t.Name(), DataType: t.DataType, AliasFor: t.Alias})
	}
	for _, p := range c.Programs() {
		ps := Program{Name: p.Name(), MainRoutine: p.MainRoutineName}
		for _, t := range p.Tags.Tags() {
			ps.Tags = append(ps.Tags, Tag{Name: t.Name(), DataType: t.DataType, AliasFor: t.Alias})
		}
		for _, rt := range p.Routines() {
			rs := Routine{Name: rt.Name()}
			for _, r := range rt.Rungs() {
				rs.Rungs = append(rs.Rungs, Rung{Text: r.Text(), Comment: r.Comment()})
			}
			ps.Routines = append(ps.Routines, rs)
		}
		s.Programs = append(s.Programs, ps)
	}
	for _, m := range c.Modules() {
		s.Modules = append(s.Modules, Module{Name: m.Name(), CatalogNumber: m.CatalogNumber})
	}
	for _, a := range c.AOIs() {
		s.AOIs = append(s.AOIs, a.Name())
	}
	return s
}

// Marshal serializes a snapshot to canonical CBOR bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &s, nil
}

// Digest returns the hex SHA-256 of the snapshot's canonical encoding.
func Digest(s *Snapshot) (string, error) {
	data, err := Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
