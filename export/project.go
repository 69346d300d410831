package export

import (
	"context"
	"io"
)

// RowStream yields header-aligned string rows. The first row is the header;
// Next returns io.EOF when exhausted.
type RowStream interface {
	Next(ctx context.Context) ([]string, error)
}

// projector turns a record stream into a header-plus-cells row stream with
// transformations applied. It holds at most one record at a time and is
// restartable only if the upstream iterator is.
type projector struct {
	template   Template
	source     RecordIterator
	headerSent bool
}

func newProjector(tmpl Template, source RecordIterator) *projector {
	return &projector{template: tmpl, source: source}
}

func (p *projector) Next(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.headerSent {
		p.headerSent = true
		return p.template.Labels(), nil
	}

	rec, err := p.source.Next(ctx)
	if err != nil {
		return nil, err
	}

	cells := make([]string, len(p.template.Columns))
	for i, col := range p.template.Columns {
		cells[i] = transformCell(rec, col)
	}
	return cells, nil
}

// sliceIterator iterates an in-memory record slice.
type sliceIterator struct {
	records []Record
	pos     int
}

func newSliceIterator(records []Record) *sliceIterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.records) {
		return nil, io.EOF
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, nil
}

func (it *sliceIterator) Close() error {
	return nil
}

// limitIterator yields at most n records from a shared upstream iterator
// without closing it, so consecutive chunks slice one adapter stream.
type limitIterator struct {
	source RecordIterator
	remain int
}

func newLimitIterator(source RecordIterator, n int) *limitIterator {
	return &limitIterator{source: source, remain: n}
}

func (it *limitIterator) Next(ctx context.Context) (Record, error) {
	if it.remain <= 0 {
		return nil, io.EOF
	}
	rec, err := it.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	it.remain--
	return rec, nil
}

func (it *limitIterator) Close() error {
	return nil
}
