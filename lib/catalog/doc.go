// Package catalog resolves SQL mappings to live table objects.
//
// A mapping declares how an external data object (a grid map, a change
// stream, a remote table) is exposed to the query layer. The resolver
// validates mappings through a connector resolver, caches the resulting
// table objects and notifies registered listeners on every catalog change
// so dependent plans can be invalidated.
//
// All catalog state lives in concurrent maps; every operation is safe for
// concurrent use.
package catalog
