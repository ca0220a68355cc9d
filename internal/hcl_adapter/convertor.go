package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/iscadgo/internal/config"
	"github.com/vk/iscadgo/internal/ctxlog"
)

// parametersFromExpr converts the `parameters` object. Numbers become
// scalar parameters and lists of three numbers vector parameters.
func parametersFromExpr(ctx context.Context, expr hcl.Expression) (map[string]*config.Parameter, error) {
	logger := ctxlog.FromContext(ctx)

	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parameters must be an object: %w", diags)
	}
	out := make(map[string]*config.Parameter, len(pairs))
	for _, pair := range pairs {
		key, diags := pair.Key.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		if key.Type() != cty.String || key.IsNull() {
			return nil, fmt.Errorf("parameter names must be strings, at %s", pair.Key.Range())
		}
		name := key.AsString()
		if !hclsyntax.ValidIdentifier(name) {
			return nil, fmt.Errorf("parameter name %q is not a valid identifier, at %s", name, pair.Key.Range())
		}
		if _, ok := out[name]; ok {
			return nil, fmt.Errorf("parameter '%s' is defined twice, at %s", name, pair.Key.Range())
		}

		val, diags := pair.Value.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		p, err := parameterFromValue(name, val)
		if err != nil {
			return nil, fmt.Errorf("%w, at %s", err, pair.Value.Range())
		}
		p.Range = hcl.RangeBetween(pair.Key.Range(), pair.Value.Range())
		logger.Debug("Parameter converted.", "parameter", p.String())
		out[name] = p
	}
	return out, nil
}

func parameterFromValue(name string, val cty.Value) (*config.Parameter, error) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, fmt.Errorf("parameter '%s' has no value", name)
	}
	ty := val.Type()
	switch {
	case ty == cty.Number:
		var x float64
		if err := gocty.FromCtyValue(val, &x); err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", name, err)
		}
		return &config.Parameter{Name: name, Kind: config.ScalarParameter, Scalar: x}, nil

	case ty.IsTupleType() || ty.IsListType():
		if val.LengthInt() != 3 {
			return nil, fmt.Errorf("vector parameter '%s' needs 3 components, got %d", name, val.LengthInt())
		}
		list, err := convert.Convert(val, cty.List(cty.Number))
		if err != nil {
			return nil, fmt.Errorf("vector parameter '%s' must hold numbers: %w", name, err)
		}
		var xs []float64
		if err := gocty.FromCtyValue(list, &xs); err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", name, err)
		}
		p := &config.Parameter{Name: name, Kind: config.VectorParameter}
		copy(p.Vector[:], xs)
		return p, nil
	}
	return nil, fmt.Errorf("parameter '%s' must be a number or a list of 3 numbers, not %s", name, ty.FriendlyName())
}

// exprPresent reports whether an optional attribute was written in the
// file. gohcl fills omitted attributes with a zero-width placeholder.
func exprPresent(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	return rng.End.Byte > rng.Start.Byte
}
