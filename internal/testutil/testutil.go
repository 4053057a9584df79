// Package testutil provides common testing utilities shared by idaframe
// package tests: an in-memory SQLite session seeded with sample data and a
// recording fake for code paths that need vendor-only SQL.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/paveg/idaframe/internal/frame"
)

// FakeConn records every statement and simulates table creation. It
// satisfies ae.Conn without a database, for SQL that only the vendor
// runtime can execute.
type FakeConn struct {
	mu         sync.Mutex
	tables     map[string]bool
	Statements []string // Query and Exec statements in order
	Probes     []string // TableExists calls in order

	QueryErr error
	ExecErr  error
	ProbeErr error

	// ResultColumns and ResultData shape the frame every Query returns.
	ResultColumns []string
	ResultData    [][]any
}

// NewFakeConn creates a FakeConn where the given tables already exist.
func NewFakeConn(tables ...string) *FakeConn {
	c := &FakeConn{tables: make(map[string]bool)}
	for _, t := range tables {
		c.tables[strings.ToUpper(t)] = true
	}
	return c
}

// Query records query and returns the configured result.
func (c *FakeConn) Query(_ context.Context, query string, _ ...any) (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Statements = append(c.Statements, query)
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	return frame.FromColumns(c.ResultColumns, c.resultData(), nil)
}

func (c *FakeConn) resultData() [][]any {
	if c.ResultData != nil {
		return c.ResultData
	}
	return make([][]any, len(c.ResultColumns))
}

// Exec records query. A CREATE TABLE statement marks its table as existing.
func (c *FakeConn) Exec(_ context.Context, query string, _ ...any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Statements = append(c.Statements, query)
	if c.ExecErr != nil {
		return 0, c.ExecErr
	}
	if strings.HasPrefix(query, "CREATE TABLE ") {
		if fields := strings.Fields(query); len(fields) > 2 {
			c.tables[strings.ToUpper(fields[2])] = true
		}
	}
	return 0, nil
}

// TableExists records the probe and reports whether the table was created.
func (c *FakeConn) TableExists(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Probes = append(c.Probes, name)
	if c.ProbeErr != nil {
		return false, c.ProbeErr
	}
	return c.tables[strings.ToUpper(name)], nil
}

// StatementCount returns the number of recorded Query and Exec statements.
func (c *FakeConn) StatementCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Statements)
}

// LastStatement returns the most recent statement, or "" when none was run.
func (c *FakeConn) LastStatement() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Statements) == 0 {
		return ""
	}
	return c.Statements[len(c.Statements)-1]
}
