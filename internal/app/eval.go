package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/model"
)

// Eval prints the values of the configured symbols: numbers for scalars,
// triples for vectors and the bounds and volume of features.
func (a *App) Eval(ctx context.Context) error {
	models, err := a.loadModels(ctx)
	if err != nil {
		return err
	}

	values := make(map[string]cty.Value, len(a.config.EvalSymbols))
	for _, name := range a.config.EvalSymbols {
		v, err := evalSymbol(ctx, models, name)
		if err != nil {
			return err
		}
		values[name] = v
	}

	if a.config.JSON {
		obj := cty.ObjectVal(values)
		out, err := ctyjson.Marshal(obj, obj.Type())
		if err != nil {
			return fmt.Errorf("failed to encode values: %w", err)
		}
		fmt.Fprintln(a.outW, string(out))
		return nil
	}
	for _, name := range a.config.EvalSymbols {
		fmt.Fprintf(a.outW, "%s = %s\n", name, formatValue(values[name]))
	}
	return nil
}

// evalSymbol evaluates name in the first model that defines it.
func evalSymbol(ctx context.Context, models []*model.Model, name string) (cty.Value, error) {
	for _, m := range models {
		sym, ok := m.Lookup(name)
		if !ok {
			continue
		}
		v, err := symbolValue(ctx, sym)
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to evaluate '%s' in %s: %w", name, m.Path, err)
		}
		return v, nil
	}
	return cty.NilVal, fmt.Errorf("undefined symbol '%s'", name)
}

func symbolValue(ctx context.Context, sym *model.Symbol) (cty.Value, error) {
	switch sym.Kind {
	case model.ScalarSymbol:
		x, err := sym.Value.(cad.Scalar).Value()
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(x), nil

	case model.VectorSymbol:
		v, err := sym.Value.(cad.Vector).Value()
		if err != nil {
			return cty.NilVal, err
		}
		return vecVal(v), nil

	case model.DatumSymbol:
		fr, err := sym.Value.(cad.Datum).Frame()
		if err != nil {
			return cty.NilVal, err
		}
		return cty.ObjectVal(map[string]cty.Value{
			"kind":   cty.StringVal(fr.Kind.String()),
			"origin": vecVal(fr.Origin),
			"dir":    vecVal(fr.Dir),
		}), nil

	case model.FeatureSymbol:
		f := sym.Value.(*cad.Feature)
		if err := f.Build(ctx); err != nil {
			return cty.NilVal, err
		}
		s, err := f.Shape()
		if err != nil {
			return cty.NilVal, err
		}
		lo, hi := s.BoundingBox(0)
		return cty.ObjectVal(map[string]cty.Value{
			"type":   cty.StringVal(f.TypeName()),
			"bbox":   cty.TupleVal([]cty.Value{vecVal(lo), vecVal(hi)}),
			"volume": cty.NumberFloatVal(s.Volume()),
		}), nil

	case model.SetSymbol:
		set := sym.Value.(*cad.FeatureSet)
		ids, err := set.IDs()
		if err != nil {
			return cty.NilVal, err
		}
		elems := make([]cty.Value, len(ids))
		for i, id := range ids {
			elems[i] = cty.NumberIntVal(int64(id))
		}
		list := cty.ListValEmpty(cty.Number)
		if len(elems) > 0 {
			list = cty.ListVal(elems)
		}
		return cty.ObjectVal(map[string]cty.Value{
			"kind": cty.StringVal(set.Kind().String()),
			"ids":  list,
		}), nil

	case model.ActionSymbol:
		r, ok := sym.Value.(model.Reporter)
		if !ok {
			return cty.NilVal, fmt.Errorf("%s actions have no value", sym.Value.(model.Action).Kind())
		}
		if err := sym.Value.(model.Action).Run(ctx); err != nil {
			return cty.NilVal, err
		}
		values, err := r.Values()
		if err != nil {
			return cty.NilVal, err
		}
		return cty.ObjectVal(values), nil
	}
	return cty.NilVal, fmt.Errorf("symbols of kind %s cannot be evaluated", sym.Kind)
}

func vecVal(v geom.Vec3) cty.Value {
	return cty.TupleVal([]cty.Value{cty.NumberFloatVal(v[0]), cty.NumberFloatVal(v[1]), cty.NumberFloatVal(v[2])})
}

// formatValue renders v compactly for terminal output.
func formatValue(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	if !v.IsKnown() {
		return "(unknown)"
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case ty == cty.String:
		return strconv.Quote(v.AsString())
	case ty == cty.Bool:
		return strconv.FormatBool(v.True())
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		parts := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			parts = append(parts, formatValue(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ty.IsObjectType() || ty.IsMapType():
		m := v.AsValueMap()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " = " + formatValue(m[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return v.GoString()
}
