// Package backendtest provides a recording Backend for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/teemow/sheetsgate/internal/backend"
)

// Stub is a backend.Backend that records every call. Each operation returns
// the value of the matching func field when set, and Result otherwise.
type Stub struct {
	// Result is returned by operations whose func field is nil and whose
	// result type is any.
	Result any
	// Err, when set, is returned by every operation without a func field.
	Err error

	GetSheetDataFunc      func(context.Context, backend.GetSheetDataParams) (any, error)
	GetSheetFormulasFunc  func(context.Context, backend.GetSheetFormulasParams) ([][]any, error)
	UpdateCellsFunc       func(context.Context, backend.UpdateCellsParams) (any, error)
	BatchUpdateCellsFunc  func(context.Context, backend.BatchUpdateCellsParams) (any, error)
	AddRowsFunc           func(context.Context, backend.AddRowsParams) (any, error)
	CreateSpreadsheetFunc func(context.Context, backend.CreateSpreadsheetParams) (*backend.SpreadsheetInfo, error)
	CreateSheetFunc       func(context.Context, backend.CreateSheetParams) (*backend.SheetInfo, error)
	ListSpreadsheetsFunc  func(context.Context) ([]backend.SpreadsheetSummary, error)
	ListSheetsFunc        func(context.Context, backend.ListSheetsParams) ([]string, error)
	ShareSpreadsheetFunc  func(context.Context, backend.ShareSpreadsheetParams) (*backend.ShareResult, error)
	RenameSheetFunc       func(context.Context, backend.RenameSheetParams) (any, error)
	CopySheetFunc         func(context.Context, backend.CopySheetParams) (*backend.CopyResult, error)

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded invocation.
type Call struct {
	Method string
	Params any
}

var _ backend.Backend = (*Stub)(nil)

func (s *Stub) record(method string, params any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Params: params})
}

// Calls returns a copy of the recorded calls.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of recorded calls.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastCall returns the most recent call, or false if there was none.
func (s *Stub) LastCall() (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return Call{}, false
	}
	return s.calls[len(s.calls)-1], true
}

func (s *Stub) GetSheetData(ctx context.Context, p backend.GetSheetDataParams) (any, error) {
	s.record("GetSheetData", p)
	if s.GetSheetDataFunc != nil {
		return s.GetSheetDataFunc(ctx, p)
	}
	return s.Result, s.Err
}

func (s *Stub) GetSheetFormulas(ctx context.Context, p backend.GetSheetFormulasParams) ([][]any, error) {
	s.record("GetSheetFormulas", p)
	if s.GetSheetFormulasFunc != nil {
		return s.GetSheetFormulasFunc(ctx, p)
	}
	return [][]any{}, s.Err
}

func (s *Stub) UpdateCells(ctx context.Context, p backend.UpdateCellsParams) (any, error) {
	s.record("UpdateCells", p)
	if s.UpdateCellsFunc != nil {
		return s.UpdateCellsFunc(ctx, p)
	}
	return s.Result, s.Err
}

func (s *Stub) BatchUpdateCells(ctx context.Context, p backend.BatchUpdateCellsParams) (any, error) {
	s.record("BatchUpdateCells", p)
	if s.BatchUpdateCellsFunc != nil {
		return s.BatchUpdateCellsFunc(ctx, p)
	}
	return s.Result, s.Err
}

func (s *Stub) AddRows(ctx context.Context, p backend.AddRowsParams) (any, error) {
	s.record("AddRows", p)
	if s.AddRowsFunc != nil {
		return s.AddRowsFunc(ctx, p)
	}
	return s.Result, s.Err
}

func (s *Stub) CreateSpreadsheet(ctx context.Context, p backend.CreateSpreadsheetParams) (*backend.SpreadsheetInfo, error) {
	s.record("CreateSpreadsheet", p)
	if s.CreateSpreadsheetFunc != nil {
		return s.CreateSpreadsheetFunc(ctx, p)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &backend.SpreadsheetInfo{SpreadsheetID: "stub-spreadsheet", Title: p.Title, Folder: "root"}, nil
}

func (s *Stub) CreateSheet(ctx context.Context, p backend.CreateSheetParams) (*backend.SheetInfo, error) {
	s.record("CreateSheet", p)
	if s.CreateSheetFunc != nil {
		return s.CreateSheetFunc(ctx, p)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &backend.SheetInfo{SheetID: 1, Title: p.Title, Index: 1, SpreadsheetID: p.SpreadsheetID}, nil
}

func (s *Stub) ListSpreadsheets(ctx context.Context) ([]backend.SpreadsheetSummary, error) {
	s.record("ListSpreadsheets", nil)
	if s.ListSpreadsheetsFunc != nil {
		return s.ListSpreadsheetsFunc(ctx)
	}
	return []backend.SpreadsheetSummary{}, s.Err
}

func (s *Stub) ListSheets(ctx context.Context, p backend.ListSheetsParams) ([]string, error) {
	s.record("ListSheets", p)
	if s.ListSheetsFunc != nil {
		return s.ListSheetsFunc(ctx, p)
	}
	return []string{}, s.Err
}

func (s *Stub) ShareSpreadsheet(ctx context.Context, p backend.ShareSpreadsheetParams) (*backend.ShareResult, error) {
	s.record("ShareSpreadsheet", p)
	if s.ShareSpreadsheetFunc != nil {
		return s.ShareSpreadsheetFunc(ctx, p)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &backend.ShareResult{Successes: []backend.ShareSuccess{}, Failures: []backend.ShareFailure{}}, nil
}

func (s *Stub) RenameSheet(ctx context.Context, p backend.RenameSheetParams) (any, error) {
	s.record("RenameSheet", p)
	if s.RenameSheetFunc != nil {
		return s.RenameSheetFunc(ctx, p)
	}
	return s.Result, s.Err
}

func (s *Stub) CopySheet(ctx context.Context, p backend.CopySheetParams) (*backend.CopyResult, error) {
	s.record("CopySheet", p)
	if s.CopySheetFunc != nil {
		return s.CopySheetFunc(ctx, p)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &backend.CopyResult{Copy: s.Result}, nil
}
