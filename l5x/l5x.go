// Package l5x converts RSLogix 5000 L5X export documents to and from the
// project model. A loaded Document keeps its XML tree, so sections this
// tooling does not model (datatypes, task schedules, safety data) survive
// a load/modify/save cycle untouched; only the sections the model owns
// are regenerated on save.
package l5x

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"

	"github.com/roxplc/rox/project"
)

var (
	// ErrNotL5X indicates the document has no RSLogix5000Content root.
	ErrNotL5X = errors.New("not an L5X document")

	// ErrNoController indicates an L5X document with no Controller
	// element.
	ErrNoController = errors.New("L5X document has no controller")
)

// Document pairs a parsed controller with the XML tree it came from.
type Document struct {
	doc  *etree.Document
	ctrl *project.Controller
}

// Controller returns the parsed controller model.
func (d *Document) Controller() *project.Controller { return d.ctrl }

// LoadFile reads and converts an L5X file.
func LoadFile(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return fromTree(doc)
}

// Read reads and converts an L5X document from r.
func Read(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read L5X: %w", err)
	}
	return fromTree(doc)
}

// Parse converts an in-memory L5X document.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse L5X: %w", err)
	}
	return fromTree(doc)
}

// New builds a document skeleton around an existing controller model,
// for output that did not start from an L5X file.
func New(c *project.Controller) *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("RSLogix5000Content")
	root.CreateAttr("SchemaRevision", "1.0")
	root.CreateAttr("TargetName", c.Name())
	root.CreateAttr("TargetType", "Controller")
	root.CreateElement("Controller")
	return &Document{doc: doc, ctrl: c}
}

// ---------------------------------------------------------------------------
// XML -> model
// ---------------------------------------------------------------------------

func fromTree(doc *etree.Document) (*Document, error) {
	root := doc.SelectElement("RSLogix5000Content")
	if root == nil {
		return nil, ErrNotL5X
	}
	ce := root.SelectElement("Controller")
	if ce == nil {
		return nil, ErrNoController
	}

	c := project.NewController(ce.SelectAttrValue("Name", ""))
	c.Type = ce.SelectAttrValue("ProcessorType", "")
	c.CommPath = ce.SelectAttrValue("CommPath", "")
	c.MajorRev, _ = strconv.Atoi(ce.SelectAttrValue("MajorRev", "0"))
	c.MinorRev, _ = strconv.Atoi(ce.SelectAttrValue("MinorRev", "0"))
	c.Description = childText(ce, "Description")

	// AOI definitions first: their names must classify as opcodes before
	// any rung text parses.
	if defs := ce.SelectElement("AddOnInstructionDefinitions"); defs != nil {
		for _, ae := range defs.SelectElements("AddOnInstructionDefinition") {
			aoi, err := parseAOI(ae)
			if err != nil {
				return nil, err
			}
			if err := c.AddAOI(aoi); err != nil {
				return nil, err
			}
		}
	}

	if tags := ce.SelectElement("Tags"); tags != nil {
		for _, te := range tags.SelectElements("Tag") {
			if err := c.Tags.Add(parseTag(te)); err != nil {
				return nil, fmt.Errorf("controller tags: %w", err)
			}
		}
	}

	if mods := ce.SelectElement("Modules"); mods != nil {
		for _, me := range mods.SelectElements("Module") {
			m := project.NewModule(
				me.SelectAttrValue("Name", ""),
				me.SelectAttrValue("CatalogNumber", ""),
			)
			m.Vendor = me.SelectAttrValue("Vendor", "")
			m.ParentModule = me.SelectAttrValue("ParentModule", "")
			m.Inhibited = me.SelectAttrValue("Inhibited", "false") == "true"
			if err := c.AddModule(m); err != nil {
				return nil, fmt.Errorf("modules: %w", err)
			}
		}
	}

	if progs := ce.SelectElement("Programs"); progs != nil {
		for _, pe := range progs.SelectElements("Program") {
			if err := parseProgram(c, pe); err != nil {
				return nil, err
			}
		}
	}

	return &Document{doc: doc, ctrl: c}, nil
}

func parseTag(te *etree.Element) *project.Tag {
	name := te.SelectAttrValue("Name", "")
	var t *project.Tag
	if alias := te.SelectAttrValue("AliasFor", ""); alias != "" {
		t = project.NewAliasTag(name, alias)
	} else {
		t = project.NewTag(name, te.SelectAttrValue("DataType", ""))
	}
	t.Constant = te.SelectAttrValue("Constant", "false") == "true"
	t.Description = childText(te, "Description")
	return t
}

func parseProgram(c *project.Controller, pe *etree.Element) error {
	p := project.NewProgram(pe.SelectAttrValue("Name", ""))
	p.MainRoutineName = pe.SelectAttrValue("MainRoutineName", "")
	p.Disabled = pe.SelectAttrValue("Disabled", "false") == "true"
	p.Description = childText(pe, "Description")

	if tags := pe.SelectElement("Tags"); tags != nil {
		for _, te := range tags.SelectElements("Tag") {
			if err := p.Tags.Add(parseTag(te)); err != nil {
				return fmt.Errorf("program %s tags: %w", p.Name(), err)
			}
		}
	}

	// Attach before routines load so rung text parses with the program's
	// resolver bound to the controller's global table.
	if err := c.AddProgram(p); err != nil {
		return err
	}

	if routines := pe.SelectElement("Routines"); routines != nil {
		for _, re := range routines.SelectElements("Routine") {
			if err := parseRoutine(p, re); err != nil {
				return fmt.Errorf("program %s: %w", p.Name(), err)
			}
		}
	}
	return nil
}

func parseRoutine(p *project.Program, re *etree.Element) error {
	rt := project.NewRoutine(re.SelectAttrValue("Name", ""))
	rt.Description = childText(re, "Description")
	if err := p.AddRoutine(rt); err != nil {
		return err
	}

	content := re.SelectElement("RLLContent")
	if content == nil {
		return nil
	}
	for _, rue := range content.SelectElements("Rung") {
		text := childText(rue, "Text")
		comment := childText(rue, "Comment")
		if _, err := rt.AddRung(text, comment, -1); err != nil {
			number := rue.SelectAttrValue("Number", "?")
			return fmt.Errorf("routine %s rung %s: %w", rt.Name(), number, err)
		}
	}
	return nil
}

func parseAOI(ae *etree.Element) (*project.AddOnInstruction, error) {
	aoi := project.NewAddOnInstruction(ae.SelectAttrValue("Name", ""))
	aoi.Revision = ae.SelectAttrValue("Revision", "")
	aoi.Description = childText(ae, "Description")

	if params := ae.SelectElement("Parameters"); params != nil {
		for _, pe := range params.SelectElements("Parameter") {
			aoi.Parameters = append(aoi.Parameters, project.Parameter{
				Name:     pe.SelectAttrValue("Name", ""),
				DataType: pe.SelectAttrValue("DataType", ""),
				Usage:    parseUsage(pe.SelectAttrValue("Usage", "Input")),
				Required: pe.SelectAttrValue("Required", "false") == "true",
			})
		}
	}

	if locals := ae.SelectElement("LocalTags"); locals != nil {
		for _, te := range locals.SelectElements("LocalTag") {
			t := project.NewTag(te.SelectAttrValue("Name", ""), te.SelectAttrValue("DataType", ""))
			t.Description = childText(te, "Description")
			if err := aoi.LocalTags.Add(t); err != nil {
				return nil, fmt.Errorf("aoi %s local tags: %w", aoi.Name(), err)
			}
		}
	}

	if routines := ae.SelectElement("Routines"); routines != nil {
		for _, re := range routines.SelectElements("Routine") {
			rt := project.NewRoutine(re.SelectAttrValue("Name", ""))
			if err := aoi.AddRoutine(rt); err != nil {
				return nil, err
			}
			if content := re.SelectElement("RLLContent"); content != nil {
				for _, rue := range content.SelectElements("Rung") {
					if _, err := rt.AddRung(childText(rue, "Text"), childText(rue, "Comment"), -1); err != nil {
						return nil, fmt.Errorf("aoi %s routine %s: %w", aoi.Name(), rt.Name(), err)
					}
				}
			}
		}
	}
	return aoi, nil
}

func parseUsage(s string) project.ParameterUsage {
	switch s {
	case "Output":
		return project.UsageOutput
	case "InOut":
		return project.UsageInOut
	default:
		return project.UsageInput
	}
}

func childText(e *etree.Element, name string) string {
	if child := e.SelectElement(name); child != nil {
		return child.Text()
	}
	return ""
}

// ---------------------------------------------------------------------------
// model -> XML
// ---------------------------------------------------------------------------

// Sync writes the controller model back into the retained XML tree. The
// Tags, Programs, Modules and AddOnInstructionDefinitions sections are
// regenerated in place; all other Controller children pass through.
func (d *Document) Sync() error {
	root := d.doc.SelectElement("RSLogix5000Content")
	if root == nil {
		return ErrNotL5X
	}
	root.CreateAttr("TargetName", d.ctrl.Name())
	ce := root.SelectElement("Controller")
	if ce == nil {
		return ErrNoController
	}

	c := d.ctrl
	ce.CreateAttr("Name", c.Name())
	if c.Type != "" {
		ce.CreateAttr("ProcessorType", c.Type)
	}
	if c.MajorRev != 0 || c.MinorRev != 0 {
		ce.CreateAttr("MajorRev", strconv.Itoa(c.MajorRev))
		ce.CreateAttr("MinorRev", strconv.Itoa(c.MinorRev))
	}
	if c.CommPath != "" {
		ce.CreateAttr("CommPath", c.CommPath)
	}
	if c.Description != "" {
		setCData(replaceChild(ce, "Description"), c.Description)
	}

	d.syncAOIs(ce)
	d.syncTags(replaceChild(ce, "Tags"), c.Tags)
	d.syncPrograms(ce)
	d.syncModules(ce)
	return nil
}

func (d *Document) syncTags(tags *etree.Element, table *project.TagTable) {
	for _, t := range table.Tags() {
		te := tags.CreateElement("Tag")
		te.CreateAttr("Name", t.Name())
		if t.Alias != "" {
			te.CreateAttr("TagType", "Alias")
			te.CreateAttr("AliasFor", t.Alias)
		} else {
			te.CreateAttr("TagType", "Base")
			te.CreateAttr("DataType", t.DataType)
		}
		if t.Constant {
			te.CreateAttr("Constant", "true")
		}
		if t.Description != "" {
			setCData(te.CreateElement("Description"), t.Description)
		}
	}
}

func (d *Document) syncPrograms(ce *etree.Element) {
	progs := replaceChild(ce, "Programs")
	for _, p := range d.ctrl.Programs() {
		pe := progs.CreateElement("Program")
		pe.CreateAttr("Name", p.Name())
		if p.MainRoutineName != "" {
			pe.CreateAttr("MainRoutineName", p.MainRoutineName)
		}
		if p.Disabled {
			pe.CreateAttr("Disabled", "true")
		}
		if p.Description != "" {
			setCData(pe.CreateElement("Description"), p.Description)
		}
		d.syncTags(pe.CreateElement("Tags"), p.Tags)

		routines := pe.CreateElement("Routines")
		for _, rt := range p.Routines() {
			syncRoutine(routines, rt)
		}
	}
}

func syncRoutine(routines *etree.Element, rt *project.Routine) {
	re := routines.CreateElement("Routine")
	re.CreateAttr("Name", rt.Name())
	re.CreateAttr("Type", "RLL")
	if rt.Description != "" {
		setCData(re.CreateElement("Description"), rt.Description)
	}
	content := re.CreateElement("RLLContent")
	for _, r := range rt.Rungs() {
		rue := content.CreateElement("Rung")
		rue.CreateAttr("Number", strconv.Itoa(r.Number()))
		rue.CreateAttr("Type", "N")
		if r.Comment() != "" {
			setCData(rue.CreateElement("Comment"), r.Comment())
		}
		setCData(rue.CreateElement("Text"), r.Text())
	}
}

func (d *Document) syncModules(ce *etree.Element) {
	mods := replaceChild(ce, "Modules")
	for _, m := range d.ctrl.Modules() {
		me := mods.CreateElement("Module")
		me.CreateAttr("Name", m.Name())
		me.CreateAttr("CatalogNumber", m.CatalogNumber)
		if m.Vendor != "" {
			me.CreateAttr("Vendor", m.Vendor)
		}
		if m.ParentModule != "" {
			me.CreateAttr("ParentModule", m.ParentModule)
		}
		if m.Inhibited {
			me.CreateAttr("Inhibited", "true")
		}
	}
}

func (d *Document) syncAOIs(ce *etree.Element) {
	aois := d.ctrl.AOIs()
	if len(aois) == 0 {
		return
	}
	defs := replaceChild(ce, "AddOnInstructionDefinitions")
	for _, aoi := range aois {
		ae := defs.CreateElement("AddOnInstructionDefinition")
		ae.CreateAttr("Name", aoi.Name())
		if aoi.Revision != "" {
			ae.CreateAttr("Revision", aoi.Revision)
		}
		if aoi.Description != "" {
			setCData(ae.CreateElement("Description"), aoi.Description)
		}

		params := ae.CreateElement("Parameters")
		for _, param := range aoi.Parameters {
			pe := params.CreateElement("Parameter")
			pe.CreateAttr("Name", param.Name)
			pe.CreateAttr("DataType", param.DataType)
			pe.CreateAttr("Usage", param.Usage.String())
			if param.Required {
				pe.CreateAttr("Required", "true")
			}
		}

		locals := ae.CreateElement("LocalTags")
		for _, t := range aoi.LocalTags.Tags() {
			te := locals.CreateElement("LocalTag")
			te.CreateAttr("Name", t.Name())
			te.CreateAttr("DataType", t.DataType)
		}

		routines := ae.CreateElement("Routines")
		for _, rt := range aoi.Routines() {
			syncRoutine(routines, rt)
		}
	}
}

// replaceChild swaps the named Controller child for a fresh empty one at
// the same tree position, appending when absent.
func replaceChild(parent *etree.Element, name string) *etree.Element {
	fresh := etree.NewElement(name)
	if old := parent.SelectElement(name); old != nil {
		index := old.Index()
		parent.RemoveChild(old)
		parent.InsertChildAt(index, fresh)
	} else {
		parent.AddChild(fresh)
	}
	return fresh
}

// setCData stores text as a CDATA section, matching how the design tool
// exports rung text and comments.
func setCData(e *etree.Element, text string) {
	e.SetCData(text)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// Bytes syncs the model and serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	if err := d.Sync(); err != nil {
		return nil, err
	}
	d.doc.Indent(2)
	return d.doc.WriteToBytes()
}

// WriteTo syncs the model and writes the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if err := d.Sync(); err != nil {
		return 0, err
	}
	d.doc.Indent(2)
	return d.doc.WriteTo(w)
}

// SaveFile syncs the model and writes the document to path.
func (d *Document) SaveFile(path string) error {
	if err := d.Sync(); err != nil {
		return err
	}
	d.doc.Indent(2)
	return d.doc.WriteToFile(path)
}
