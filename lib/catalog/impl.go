package catalog

import (
	"fmt"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("catalog")

type tableResolver struct {
	connectors IConnectorResolver

	// mapping name -> resolved table
	tables *xsync.MapOf[string, Table]

	listenerMu sync.RWMutex
	listeners  []ITableListener
}

// NewTableResolver creates a resolver validating mappings through the given
// connector resolver
func NewTableResolver(connectors IConnectorResolver) ITableResolver {
	return &tableResolver{
		connectors: connectors,
		tables:     xsync.NewMapOf[string, Table](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ITableResolver)
// --------------------------------------------------------------------------

func (r *tableResolver) CreateMapping(mapping Mapping, replace, ifNotExists bool) error {
	if mapping.Name == "" {
		return fmt.Errorf("mapping name must not be empty")
	}

	table, err := r.connectors.Resolve(mapping)
	if err != nil {
		return fmt.Errorf("cannot resolve mapping %q: %w", mapping.Name, err)
	}

	if replace {
		r.tables.Store(mapping.Name, table)
	} else {
		if _, loaded := r.tables.LoadOrStore(mapping.Name, table); loaded {
			if ifNotExists {
				return nil
			}
			return fmt.Errorf("mapping %q already exists", mapping.Name)
		}
	}

	Logger.Infof("Created mapping %q via connector %q", mapping.Name, mapping.Connector)
	r.notify()
	return nil
}

func (r *tableResolver) RemoveMapping(name string, ifExists bool) error {
	if _, loaded := r.tables.LoadAndDelete(name); !loaded {
		if ifExists {
			return nil
		}
		return fmt.Errorf("mapping %q does not exist", name)
	}

	Logger.Infof("Removed mapping %q", name)
	r.notify()
	return nil
}

func (r *tableResolver) MappingNames() []string {
	var names []string
	r.tables.Range(func(name string, _ Table) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (r *tableResolver) Tables() []Table {
	var tables []Table
	r.tables.Range(func(_ string, table Table) bool {
		tables = append(tables, table)
		return true
	})
	return tables
}

func (r *tableResolver) RegisterListener(listener ITableListener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (r *tableResolver) notify() {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	for _, l := range r.listeners {
		l.OnTableChanged()
	}
}
