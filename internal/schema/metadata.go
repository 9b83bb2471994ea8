// Package schema declares the relational tables and creates or drops them in dependency order.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	bunschema "github.com/uptrace/bun/schema"
)

// ForeignKey references RefTable(RefColumn) from Column
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Check is a named CHECK constraint
type Check struct {
	Name string
	Expr string
}

// Index is a named non-unique index
type Index struct {
	Name    string
	Columns []string
}

// Table declares one relational table. Columns come from the bun tags on Model.
type Table struct {
	Name        string
	Model       interface{}
	ForeignKeys []ForeignKey
	Checks      []Check
	Indexes     []Index
}

// Metadata is an ordered set of table declarations
type Metadata struct {
	tables []Table
	order  []int // create order, indexes into tables
}

// NewMetadata validates the declarations and computes create order.
// Referenced tables come before the tables that reference them; ties keep declaration order.
func NewMetadata(tables ...Table) (*Metadata, error) {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		if t.Name == "" || t.Model == nil {
			return nil, fmt.Errorf("table %d: name and model are required", i)
		}
		if _, dup := index[t.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", t.Name)
		}
		index[t.Name] = i
	}

	// deps[i] counts unresolved parents of table i; children[j] lists tables referencing j
	deps := make([]int, len(tables))
	children := make([][]int, len(tables))
	for i, t := range tables {
		seen := make(map[int]bool)
		for _, fk := range t.ForeignKeys {
			j, ok := index[fk.RefTable]
			if !ok {
				return nil, fmt.Errorf("table %s: foreign key %s references unknown table %s", t.Name, fk.Column, fk.RefTable)
			}
			if j == i || seen[j] {
				continue
			}
			seen[j] = true
			deps[i]++
			children[j] = append(children[j], i)
		}
	}

	var ready []int
	for i := range tables {
		if deps[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(tables))
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, c := range children[next] {
			deps[c]--
			if deps[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != len(tables) {
		var cyclic []string
		for i, d := range deps {
			if d > 0 {
				cyclic = append(cyclic, tables[i].Name)
			}
		}
		return nil, fmt.Errorf("foreign key cycle between tables %v", cyclic)
	}

	return &Metadata{tables: tables, order: order}, nil
}

// MustNewMetadata is like NewMetadata but panics on error
func MustNewMetadata(tables ...Table) *Metadata {
	m, err := NewMetadata(tables...)
	if err != nil {
		panic(err)
	}
	return m
}

// Tables returns the declarations in declaration order
func (m *Metadata) Tables() []Table {
	out := make([]Table, len(m.tables))
	copy(out, m.tables)
	return out
}

// CreateOrder returns table names parents first
func (m *Metadata) CreateOrder() []string {
	names := make([]string, len(m.order))
	for i, idx := range m.order {
		names[i] = m.tables[idx].Name
	}
	return names
}

// DropOrder returns table names children first
func (m *Metadata) DropOrder() []string {
	names := m.CreateOrder()
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// CreateAll creates every missing table, then (re)applies check constraints and indexes.
// Safe to run against a schema that already exists.
func (m *Metadata) CreateAll(ctx context.Context, db bun.IDB) error {
	for _, idx := range m.order {
		t := m.tables[idx]
		if _, err := createTableQuery(db, t).Exec(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		for _, c := range t.Checks {
			if _, err := checkQuery(db, t, c).Exec(ctx); err != nil {
				return fmt.Errorf("add constraint %s on %s: %w", c.Name, t.Name, err)
			}
		}
		for _, ix := range t.Indexes {
			if _, err := indexQuery(db, t, ix).Exec(ctx); err != nil {
				return fmt.Errorf("create index %s on %s: %w", ix.Name, t.Name, err)
			}
		}
	}
	return nil
}

// DropAll drops every declared table, children first. Missing tables are skipped.
func (m *Metadata) DropAll(ctx context.Context, db bun.IDB) error {
	for i := len(m.order) - 1; i >= 0; i-- {
		t := m.tables[m.order[i]]
		if _, err := db.NewDropTable().Model(t.Model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table %s: %w", t.Name, err)
		}
	}
	return nil
}

// Statements renders the CreateAll DDL without executing it
func (m *Metadata) Statements(db bun.IDB) ([]string, error) {
	fmter := bunschema.NewFormatter(db.Dialect())
	var stmts []string
	appendStmt := func(q bunschema.QueryAppender) error {
		b, err := q.AppendQuery(fmter, nil)
		if err != nil {
			return err
		}
		stmts = append(stmts, string(b))
		return nil
	}

	for _, idx := range m.order {
		t := m.tables[idx]
		if err := appendStmt(createTableQuery(db, t)); err != nil {
			return nil, fmt.Errorf("render table %s: %w", t.Name, err)
		}
		for _, c := range t.Checks {
			if err := appendStmt(checkQuery(db, t, c)); err != nil {
				return nil, fmt.Errorf("render constraint %s: %w", c.Name, err)
			}
		}
		for _, ix := range t.Indexes {
			if err := appendStmt(indexQuery(db, t, ix)); err != nil {
				return nil, fmt.Errorf("render index %s: %w", ix.Name, err)
			}
		}
	}
	return stmts, nil
}

func createTableQuery(db bun.IDB, t Table) *bun.CreateTableQuery {
	q := db.NewCreateTable().Model(t.Model).IfNotExists()
	for _, fk := range t.ForeignKeys {
		q = q.ForeignKey("(?) REFERENCES ? (?)",
			bun.Ident(fk.Column), bun.Ident(fk.RefTable), bun.Ident(fk.RefColumn))
	}
	return q
}

// CHECK constraints have no bun tag; drop-then-add keeps the statement idempotent
func checkQuery(db bun.IDB, t Table, c Check) *bun.RawQuery {
	return db.NewRaw("ALTER TABLE ? DROP CONSTRAINT IF EXISTS ?, ADD CONSTRAINT ? CHECK (?)",
		bun.Ident(t.Name), bun.Ident(c.Name), bun.Ident(c.Name), bun.Safe(c.Expr))
}

func indexQuery(db bun.IDB, t Table, ix Index) *bun.CreateIndexQuery {
	return db.NewCreateIndex().
		Model(t.Model).
		Index(ix.Name).
		Column(ix.Columns...).
		IfNotExists()
}
