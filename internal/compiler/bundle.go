package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/gridroute/internal/weights"
)

// Bundle holds every layout and weight table defined by one CUE package.
type Bundle struct {
	Layouts map[string]*Layout
	Weights map[string]*weights.Table
}

// LayoutNames returns the layout names in sorted order.
func (b *Bundle) LayoutNames() []string {
	names := make([]string, 0, len(b.Layouts))
	for n := range b.Layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WeightNames returns the weight table names in sorted order.
func (b *Bundle) WeightNames() []string {
	names := make([]string, 0, len(b.Weights))
	for n := range b.Weights {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Layout returns the named layout.
func (b *Bundle) Layout(name string) (*Layout, error) {
	l, ok := b.Layouts[name]
	if !ok {
		return nil, fmt.Errorf("layout %q is not defined", name)
	}
	return l, nil
}

// Table returns the named weight table.
func (b *Bundle) Table(name string) (*weights.Table, error) {
	t, ok := b.Weights[name]
	if !ok {
		return nil, fmt.Errorf("weights %q are not defined", name)
	}
	return t, nil
}

// CompileString compiles CUE source holding layout and weights structs.
func CompileString(filename, src string) (*Bundle, []error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileValue(v)
}

// LoadDir loads the CUE package in dir and compiles it.
func LoadDir(dir string) (*Bundle, []error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances in %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileValue(v)
}

// CompileValue compiles every field under layout and weights. All compile
// errors are collected.
func CompileValue(v cue.Value) (*Bundle, []error) {
	b := &Bundle{
		Layouts: make(map[string]*Layout),
		Weights: make(map[string]*weights.Table),
	}
	var errs []error

	if lv := v.LookupPath(cue.ParsePath("layout")); lv.Exists() {
		iter, err := lv.Fields()
		if err != nil {
			return nil, []error{formatCUEError(err)}
		}
		for iter.Next() {
			l, err := CompileLayout(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("layout.%s: %w", iter.Selector(), err))
				continue
			}
			b.Layouts[l.Name] = l
		}
	}

	if wv := v.LookupPath(cue.ParsePath("weights")); wv.Exists() {
		iter, err := wv.Fields()
		if err != nil {
			return nil, []error{formatCUEError(err)}
		}
		for iter.Next() {
			t, err := CompileWeights(iter.Value())
			if err != nil {
				errs = append(errs, fmt.Errorf("weights.%s: %w", iter.Selector(), err))
				continue
			}
			b.Weights[iter.Selector().String()] = t
		}
	}

	if len(b.Layouts) == 0 && len(b.Weights) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no layouts or weights found"))
	}
	return b, errs
}
