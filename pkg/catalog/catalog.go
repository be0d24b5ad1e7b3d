// Package catalog holds the process-wide, read-mostly table and index
// descriptors (C4): for each table, its columns, primary-key column (always
// column 0), optional LRU column, optional ordering constraint, and the
// list of secondary indexes targeting it; for each index, its target table
// and column.
package catalog

import (
	"github.com/pkg/errors"

	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

// Compile-time-ish limits (spec.md §6 "Configuration").
const (
	MaxNumTables      = 256
	MaxNumIndices     = 1024
	MaxColumnPerTable = 64
)

// NoColumn marks the absence of an optional column reference (LRU column,
// constraint column).
const NoColumn = -1

// NoIndex marks the absence of an optional index reference.
const NoIndex = -1

// Column describes one table column.
type Column struct {
	Name string
	Type keycodec.Type
}

// OrderingConstraint declares that Column must remain monotonic with
// respect to the indexed column of the secondary index IndexID.
type OrderingConstraint struct {
	IndexID   int
	Column    int
	Ascending bool
}

// Table is a table descriptor. IDs are never reused once assigned (spec.md
// §9 Open Questions: "IDs are not reused on drop").
type Table struct {
	ID                int
	Name              string
	Columns           []Column
	LRUColumn         int // NoColumn if the table has none
	Constraint        *OrderingConstraint
	SecondaryIndexIDs []int
	VirtualPKIndexID  int // NoIndex until assigned

	// AutoIncrement is bumped after every successful INSERT/REPLACE whose PK
	// column is INT/LONG, to max(AutoIncrement, pk+1) (spec.md §4.5,
	// "Update auto-increment PK counter per column type"). [ADDED]
	AutoIncrement uint32
}

// PKColumn returns the column descriptor for the table's primary key,
// which is always column 0.
func (t *Table) PKColumn() Column { return t.Columns[0] }

// IsNarrow reports whether this table qualifies for the two-column "narrow"
// (OTHER_BT) encoding: exactly PK plus one other column.
func (t *Table) IsNarrow() bool { return len(t.Columns) == 2 }

// Index is a secondary-index descriptor.
type Index struct {
	ID        int
	Name      string
	TableID   int
	Column    int
	Ascending bool
}

// Catalog is the process-wide table/index descriptor store.
type Catalog struct {
	tables     []*Table
	indexes    []*Index
	tableByName map[string]int
	indexByName map[string]int
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		tableByName: make(map[string]int),
		indexByName: make(map[string]int),
	}
}

// AddTable registers a new table descriptor and returns it.
func (c *Catalog) AddTable(name string, columns []Column, lruColumn int) (*Table, error) {
	if len(c.tables) >= MaxNumTables {
		return nil, errors.New("catalog: MAX_NUM_TABLES exceeded")
	}
	if len(columns) == 0 || len(columns) > MaxColumnPerTable {
		return nil, errors.Errorf("catalog: table %q has %d columns, must be 1..%d", name, len(columns), MaxColumnPerTable)
	}
	if _, exists := c.tableByName[name]; exists {
		return nil, errors.Errorf("catalog: table %q already exists", name)
	}
	t := &Table{
		ID:               len(c.tables),
		Name:             name,
		Columns:          append([]Column(nil), columns...),
		LRUColumn:        lruColumn,
		VirtualPKIndexID: NoIndex,
	}
	c.tables = append(c.tables, t)
	c.tableByName[name] = t.ID
	return t, nil
}

// AddIndex registers a new secondary index targeting table tableID's
// column, and records it against that table's SecondaryIndexIDs.
func (c *Catalog) AddIndex(name string, tableID, column int, ascending bool) (*Index, error) {
	if len(c.indexes) >= MaxNumIndices {
		return nil, errors.New("catalog: MAX_NUM_INDICES exceeded")
	}
	t, ok := c.TableByID(tableID)
	if !ok {
		return nil, errors.Errorf("catalog: unknown table id %d", tableID)
	}
	if column < 0 || column >= len(t.Columns) {
		return nil, errors.Errorf("catalog: column %d out of range for table %q", column, t.Name)
	}
	if _, exists := c.indexByName[name]; exists {
		return nil, errors.Errorf("catalog: index %q already exists", name)
	}
	idx := &Index{
		ID:        len(c.indexes),
		Name:      name,
		TableID:   tableID,
		Column:    column,
		Ascending: ascending,
	}
	c.indexes = append(c.indexes, idx)
	c.indexByName[name] = idx.ID
	t.SecondaryIndexIDs = append(t.SecondaryIndexIDs, idx.ID)
	return idx, nil
}

// SetOrderingConstraint declares that tableID's column must remain
// monotonic with respect to indexID's indexed column (spec.md §3 "ordering
// constraint").
func (c *Catalog) SetOrderingConstraint(tableID, indexID, column int) error {
	t, ok := c.TableByID(tableID)
	if !ok {
		return errors.Errorf("catalog: unknown table id %d", tableID)
	}
	idx, ok := c.IndexByID(indexID)
	if !ok {
		return errors.Errorf("catalog: unknown index id %d", indexID)
	}
	if idx.TableID != tableID {
		return errors.Errorf("catalog: index %q does not target table %q", idx.Name, t.Name)
	}
	t.Constraint = &OrderingConstraint{IndexID: indexID, Column: column, Ascending: idx.Ascending}
	return nil
}

// TableByID returns the table with the given id.
func (c *Catalog) TableByID(id int) (*Table, bool) {
	if id < 0 || id >= len(c.tables) {
		return nil, false
	}
	return c.tables[id], true
}

// TableByName returns the table with the given name.
func (c *Catalog) TableByName(name string) (*Table, bool) {
	id, ok := c.tableByName[name]
	if !ok {
		return nil, false
	}
	return c.tables[id], true
}

// IndexByID returns the index with the given id.
func (c *Catalog) IndexByID(id int) (*Index, bool) {
	if id < 0 || id >= len(c.indexes) {
		return nil, false
	}
	return c.indexes[id], true
}

// IndexByName returns the index with the given name.
func (c *Catalog) IndexByName(name string) (*Index, bool) {
	id, ok := c.indexByName[name]
	if !ok {
		return nil, false
	}
	return c.indexes[id], true
}

// IndexesOnTable returns the full list of secondary index ids targeting
// tableID, computed once per write per spec.md §4.4.
func (c *Catalog) IndexesOnTable(tableID int) []int {
	t, ok := c.TableByID(tableID)
	if !ok {
		return nil
	}
	return t.SecondaryIndexIDs
}
