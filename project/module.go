package project

// Module is one piece of configured hardware: the controller itself, a
// network adapter, or an I/O block hanging off one.
type Module struct {
	name          string
	Description   string
	CatalogNumber string
	Vendor        string
	ParentModule  string
	Inhibited     bool
}

// NewModule builds a module record.
func NewModule(name, catalogNumber string) *Module {
	return &Module{name: name, CatalogNumber: catalogNumber}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }
