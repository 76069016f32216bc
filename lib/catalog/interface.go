package catalog

// Mapping declares how an external object is exposed to the query layer
type Mapping struct {
	// Name is the catalog-unique mapping name
	Name string

	// ExternalName is the name of the backing object (map name, topic, ...)
	ExternalName string

	// Connector selects the connector type resolving this mapping
	Connector string

	// Options holds connector-specific settings
	Options map[string]string
}

// Table is a resolved, queryable catalog object
type Table struct {
	Mapping Mapping

	// Fields are the resolved column names in declaration order
	Fields []string
}

// ITableResolver is the catalog surface the query layer depends on.
type ITableResolver interface {
	// CreateMapping validates and stores a mapping. With replace an
	// existing mapping of the same name is overwritten; with ifNotExists an
	// existing mapping is left untouched without an error. With neither,
	// an existing name is an error.
	CreateMapping(mapping Mapping, replace, ifNotExists bool) error

	// RemoveMapping drops a mapping by name. A missing name is an error
	// unless ifExists is set.
	RemoveMapping(name string, ifExists bool) error

	// MappingNames returns the names of all stored mappings
	MappingNames() []string

	// Tables returns the resolved table objects of all stored mappings
	Tables() []Table

	// RegisterListener subscribes to catalog changes. Listeners are invoked
	// after every successful create or remove.
	RegisterListener(listener ITableListener)
}

// ITableListener is notified when the set of tables changes
type ITableListener interface {
	OnTableChanged()
}

// IConnectorResolver validates a mapping and resolves its table object.
// Implementations know the available connector types and their options.
type IConnectorResolver interface {
	Resolve(mapping Mapping) (Table, error)
}
