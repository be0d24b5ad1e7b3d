// Package testutil builds ready-to-use engine fixtures for tests across the
// module, the way the teacher's testutil built a mock-storage-backed tree:
// one call gets a caller a populated Engine instead of hand-wiring a
// catalog, data trees, and index trees in every test file.
package testutil

import (
	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/engine"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

// NewEngine returns an empty engine with no logger attached, suitable for
// any test that doesn't care about log output.
func NewEngine() *engine.Engine {
	return engine.New(nil)
}

// WidgetsFixture is a small two-column table plus a secondary index, the
// shape most single-row mutator tests need.
type WidgetsFixture struct {
	Engine  *engine.Engine
	Table   *catalog.Table
	Index   *catalog.Index
}

// NewWidgetsFixture creates table "widgets(pk int, tag int)" with a
// secondary index on tag, and returns it ready for inserts.
func NewWidgetsFixture() (*WidgetsFixture, error) {
	e := NewEngine()
	tbl, err := e.CreateTable("widgets", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "tag", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	if err != nil {
		return nil, err
	}
	idx, err := e.CreateIndex("widgets_by_tag", tbl.ID, 1, true)
	if err != nil {
		return nil, err
	}
	return &WidgetsFixture{Engine: e, Table: tbl, Index: idx}, nil
}
