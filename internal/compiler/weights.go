package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/gridroute/internal/weights"
)

// CompileWeights parses a CUE value into a weight table. Rows may be given
// in row form or as [dst, src, factor] triples; both forms may be mixed and
// are merged by weights.Table.Normalize.
//
//	weights: coarsen: {
//		rows: [{dst: 0, terms: [{src: 2, factor: 0.25}, {src: 3, factor: 0.75}]}]
//		triples: [[1, 0, 1.0]]
//	}
func CompileWeights(v cue.Value) (*weights.Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	t := &weights.Table{}

	if rv := v.LookupPath(cue.ParsePath("rows")); rv.Exists() {
		rows, err := rv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for rows.Next() {
			row, err := compileRow(rows.Value())
			if err != nil {
				return nil, err
			}
			t.Rows = append(t.Rows, row)
		}
	}

	if tv := v.LookupPath(cue.ParsePath("triples")); tv.Exists() {
		triples, err := tv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for triples.Next() {
			row, err := compileTriple(triples.Value())
			if err != nil {
				return nil, err
			}
			t.Rows = append(t.Rows, row)
		}
	}

	if len(t.Rows) == 0 {
		return nil, &CompileError{Field: "rows", Message: "at least one row or triple is required", Pos: v.Pos()}
	}
	return t.Normalize(), nil
}

func compileRow(v cue.Value) (weights.Row, error) {
	var row weights.Row
	dst, err := v.LookupPath(cue.ParsePath("dst")).Int64()
	if err != nil {
		return row, &CompileError{Field: "dst", Message: "dst must be an integer", Pos: v.Pos()}
	}
	row.Dst = int(dst)
	terms, err := v.LookupPath(cue.ParsePath("terms")).List()
	if err != nil {
		return row, &CompileError{Field: "terms", Message: "terms must be a list", Pos: v.Pos()}
	}
	for terms.Next() {
		tv := terms.Value()
		src, err := tv.LookupPath(cue.ParsePath("src")).Int64()
		if err != nil {
			return row, &CompileError{Field: "src", Message: "src must be an integer", Pos: tv.Pos()}
		}
		f, err := tv.LookupPath(cue.ParsePath("factor")).Float64()
		if err != nil {
			return row, &CompileError{Field: "factor", Message: "factor must be a number", Pos: tv.Pos()}
		}
		row.Terms = append(row.Terms, weights.Term{Src: int(src), Factor: f})
	}
	return row, nil
}

func compileTriple(v cue.Value) (weights.Row, error) {
	iter, err := v.List()
	if err != nil {
		return weights.Row{}, formatCUEError(err)
	}
	var vals []cue.Value
	for iter.Next() {
		vals = append(vals, iter.Value())
	}
	if len(vals) != 3 {
		return weights.Row{}, &CompileError{
			Field:   "triples",
			Message: fmt.Sprintf("triple has %d entries, want [dst, src, factor]", len(vals)),
			Pos:     v.Pos(),
		}
	}
	dst, err1 := vals[0].Int64()
	src, err2 := vals[1].Int64()
	f, err3 := vals[2].Float64()
	if err1 != nil || err2 != nil || err3 != nil {
		return weights.Row{}, &CompileError{Field: "triples", Message: "triple must be [int, int, number]", Pos: v.Pos()}
	}
	return weights.Row{Dst: int(dst), Terms: []weights.Term{{Src: int(src), Factor: f}}}, nil
}
