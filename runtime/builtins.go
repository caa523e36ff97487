package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/values"
)

// registerBuiltins installs the core builtin namespace: every entry is a
// registry.BuiltinFunc keyed by its Python name.
func registerBuiltins(reg *registry.Registry) error {
	table := map[string]registry.BuiltinFunc{
		"print":      biPrint,
		"len":        biLen,
		"repr":       biRepr,
		"str":        biStr,
		"int":        biInt,
		"float":      biFloat,
		"bool":       biBool,
		"abs":        biAbs,
		"min":        biMin,
		"max":        biMax,
		"sum":        biSum,
		"range":      biRange,
		"list":       biList,
		"tuple":      biTuple,
		"dict":       biDict,
		"set":        biSet,
		"sorted":     biSorted,
		"isinstance": biIsinstance,
		"type":       biType,
		"getattr":    biGetattr,
		"setattr":    biSetattr,
		"hasattr":    biHasattr,
	}
	for name, fn := range table {
		if _, err := reg.RegisterBuiltin(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func str(ctx registry.BuiltinCallContext, v values.Value) string {
	if s, ok := asStr(ctx.Heap(), v); ok {
		return s
	}
	return ctx.Heap().Repr(v, ctx.Interns())
}

func asStr(h *heap.Heap, v values.Value) (string, bool) {
	if !v.IsRef() {
		return "", false
	}
	s, ok := h.Get(v.AsHeapId()).(*heap.Str)
	if !ok {
		return "", false
	}
	return s.S, true
}

func allocStr(ctx registry.BuiltinCallContext, s string) (values.Value, error) {
	id, err := ctx.Heap().Allocate(&heap.Str{S: s})
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

// biPrint implements Python's print(*args, sep=' ', end='\n'): joins each
// argument's str() form with sep and writes end afterward via the host's
// WriteOutput.
func biPrint(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	sep := " "
	end := "\n"
	if v, ok := kwargs["sep"]; ok {
		sep = str(ctx, v)
	}
	if v, ok := kwargs["end"]; ok {
		end = str(ctx, v)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = str(ctx, a)
	}
	ctx.WriteOutput(strings.Join(parts, sep) + end)
	return values.NewNone(), nil
}

func biLen(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 1 {
		return values.Value{}, ctx.Raise("TypeError", "len() takes exactly one argument (%d given)", len(args))
	}
	n, ok := lengthOf(ctx.Heap(), args[0])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "object of type '%s' has no len()", ctx.Heap().TypeName(args[0]))
	}
	return values.NewInt(int64(n)), nil
}

func lengthOf(h *heap.Heap, v values.Value) (int, bool) {
	if !v.IsRef() {
		return 0, false
	}
	switch d := h.Get(v.AsHeapId()).(type) {
	case *heap.Str:
		return len([]rune(d.S)), true
	case *heap.Bytes:
		return len(d.B), true
	case *heap.List:
		return len(d.Items), true
	case *heap.Tuple:
		return len(d.Items), true
	case *heap.Dict:
		return len(d.Order), true
	case *heap.Set:
		return len(d.Order), true
	case *heap.FrozenSet:
		return len(d.Order), true
	default:
		return 0, false
	}
}

func biRepr(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 1 {
		return values.Value{}, ctx.Raise("TypeError", "repr() takes exactly one argument")
	}
	return allocStr(ctx, ctx.Heap().Repr(args[0], ctx.Interns()))
}

func biStr(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) == 0 {
		return allocStr(ctx, "")
	}
	return allocStr(ctx, str(ctx, args[0]))
}

func biBool(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) == 0 {
		return values.NewBool(false), nil
	}
	return values.NewBool(ctx.Heap().Truthy(args[0])), nil
}

func biInt(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) == 0 {
		return values.NewInt(0), nil
	}
	v := args[0]
	switch v.Kind() {
	case values.KindInt:
		return v, nil
	case values.KindFloat:
		return values.NewInt(int64(v.AsFloat())), nil
	case values.KindBool:
		return values.NewInt(v.AsInt()), nil
	}
	if s, ok := asStr(ctx.Heap(), v); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return values.Value{}, ctx.Raise("ValueError", "invalid literal for int() with base 10: %s", strconv.Quote(s))
		}
		return values.NewInt(n), nil
	}
	return values.Value{}, ctx.Raise("TypeError", "int() argument must be a string or a number, not '%s'", ctx.Heap().TypeName(v))
}

func biFloat(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) == 0 {
		return values.NewFloat(0), nil
	}
	v := args[0]
	switch v.Kind() {
	case values.KindFloat:
		return v, nil
	case values.KindInt:
		return values.NewFloat(float64(v.AsInt())), nil
	case values.KindBool:
		return values.NewFloat(float64(v.AsInt())), nil
	}
	if s, ok := asStr(ctx.Heap(), v); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return values.Value{}, ctx.Raise("ValueError", "could not convert string to float: %s", strconv.Quote(s))
		}
		return values.NewFloat(f), nil
	}
	return values.Value{}, ctx.Raise("TypeError", "float() argument must be a string or a number, not '%s'", ctx.Heap().TypeName(v))
}

func biAbs(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 1 {
		return values.Value{}, ctx.Raise("TypeError", "abs() takes exactly one argument")
	}
	switch v := args[0]; v.Kind() {
	case values.KindInt:
		n := v.AsInt()
		if n < 0 {
			n = -n
		}
		return values.NewInt(n), nil
	case values.KindFloat:
		f := v.AsFloat()
		if f < 0 {
			f = -f
		}
		return values.NewFloat(f), nil
	default:
		return values.Value{}, ctx.Raise("TypeError", "bad operand type for abs(): '%s'", ctx.Heap().TypeName(v))
	}
}

func numericLess(h *heap.Heap, a, b values.Value) (bool, error) {
	c, err := h.Cmp(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

func biMin(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	return extremum(ctx, args, true)
}

func biMax(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	return extremum(ctx, args, false)
}

func extremum(ctx registry.BuiltinCallContext, args []values.Value, wantMin bool) (values.Value, error) {
	items := args
	if len(args) == 1 {
		if seq, ok := sequenceOf(ctx.Heap(), args[0]); ok {
			items = seq
		}
	}
	if len(items) == 0 {
		return values.Value{}, ctx.Raise("ValueError", "min()/max() arg is an empty sequence")
	}
	best := items[0]
	for _, v := range items[1:] {
		less, err := numericLess(ctx.Heap(), v, best)
		if err != nil {
			return values.Value{}, ctx.Raise("TypeError", "%s", err.Error())
		}
		if less == wantMin {
			best = v
		}
	}
	ctx.Heap().IncRefValue(best)
	return best, nil
}

func biSum(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) == 0 {
		return values.Value{}, ctx.Raise("TypeError", "sum() takes at least one argument")
	}
	items, ok := sequenceOf(ctx.Heap(), args[0])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "'%s' object is not iterable", ctx.Heap().TypeName(args[0]))
	}
	start := values.NewInt(0)
	if len(args) > 1 {
		start = args[1]
	}
	isFloat := start.Kind() == values.KindFloat
	var fsum float64
	var isum int64
	if isFloat {
		fsum = start.AsFloat()
	} else {
		isum = start.AsInt()
	}
	for _, v := range items {
		switch v.Kind() {
		case values.KindFloat:
			if !isFloat {
				fsum = float64(isum)
				isFloat = true
			}
			fsum += v.AsFloat()
		case values.KindInt:
			if isFloat {
				fsum += float64(v.AsInt())
			} else {
				isum += v.AsInt()
			}
		default:
			return values.Value{}, ctx.Raise("TypeError", "unsupported operand type(s) for +: 'int' and '%s'", ctx.Heap().TypeName(v))
		}
	}
	if isFloat {
		return values.NewFloat(fsum), nil
	}
	return values.NewInt(isum), nil
}

func sequenceOf(h *heap.Heap, v values.Value) ([]values.Value, bool) {
	if !v.IsRef() {
		return nil, false
	}
	switch d := h.Get(v.AsHeapId()).(type) {
	case *heap.List:
		return d.Items, true
	case *heap.Tuple:
		return d.Items, true
	case *heap.Range:
		var out []values.Value
		if d.Step > 0 {
			for i := d.Start; i < d.Stop; i += d.Step {
				out = append(out, values.NewInt(i))
			}
		} else if d.Step < 0 {
			for i := d.Start; i > d.Stop; i += d.Step {
				out = append(out, values.NewInt(i))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func biRange(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].AsInt()
	case 2:
		start, stop = args[0].AsInt(), args[1].AsInt()
	case 3:
		start, stop, step = args[0].AsInt(), args[1].AsInt(), args[2].AsInt()
		if step == 0 {
			return values.Value{}, ctx.Raise("ValueError", "range() arg 3 must not be zero")
		}
	default:
		return values.Value{}, ctx.Raise("TypeError", "range expected 1 to 3 arguments, got %d", len(args))
	}
	id, err := ctx.Heap().Allocate(&heap.Range{Start: start, Stop: stop, Step: step})
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

func biList(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	items, err := collectIterable(ctx, args)
	if err != nil {
		return values.Value{}, err
	}
	id, aerr := ctx.Heap().Allocate(&heap.List{Items: items})
	if aerr != nil {
		return values.Value{}, aerr
	}
	return values.NewRef(id), nil
}

func biTuple(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	items, err := collectIterable(ctx, args)
	if err != nil {
		return values.Value{}, err
	}
	id, aerr := ctx.Heap().Allocate(&heap.Tuple{Items: items})
	if aerr != nil {
		return values.Value{}, aerr
	}
	return values.NewRef(id), nil
}

func collectIterable(ctx registry.BuiltinCallContext, args []values.Value) ([]values.Value, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) != 1 {
		return nil, ctx.Raise("TypeError", "expected at most 1 argument, got %d", len(args))
	}
	items, ok := sequenceOf(ctx.Heap(), args[0])
	if !ok {
		return nil, ctx.Raise("TypeError", "'%s' object is not iterable", ctx.Heap().TypeName(args[0]))
	}
	out := append([]values.Value(nil), items...)
	for _, v := range out {
		ctx.Heap().IncRefValue(v)
	}
	return out, nil
}

func biDict(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	d := heap.NewDict()
	for k, v := range kwargs {
		keyID, err := ctx.Heap().Allocate(&heap.Str{S: k})
		if err != nil {
			return values.Value{}, err
		}
		keyVal := values.NewRef(keyID)
		dk, err := ctx.Heap().HashKey(keyVal)
		if err != nil {
			return values.Value{}, err
		}
		d.Order = append(d.Order, dk)
		d.Keys[dk] = keyVal
		d.Values[dk] = v
		ctx.Heap().IncRefValue(v)
	}
	id, err := ctx.Heap().Allocate(d)
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

func biSet(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	items, err := collectIterable(ctx, args)
	if err != nil {
		return values.Value{}, err
	}
	s := heap.NewSet()
	for _, v := range items {
		dk, herr := ctx.Heap().HashKey(v)
		if herr != nil {
			return values.Value{}, herr
		}
		if _, exists := s.Values[dk]; exists {
			ctx.Heap().DecRefValue(v)
			continue
		}
		s.Order = append(s.Order, dk)
		s.Values[dk] = v
	}
	id, aerr := ctx.Heap().Allocate(s)
	if aerr != nil {
		return values.Value{}, aerr
	}
	return values.NewRef(id), nil
}

func biSorted(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 1 {
		return values.Value{}, ctx.Raise("TypeError", "sorted() takes exactly one argument")
	}
	items, ok := sequenceOf(ctx.Heap(), args[0])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "'%s' object is not iterable", ctx.Heap().TypeName(args[0]))
	}
	out := append([]values.Value(nil), items...)
	reverse := false
	if v, ok := kwargs["reverse"]; ok {
		reverse = ctx.Heap().Truthy(v)
	}
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		c, err := ctx.Heap().Cmp(out[i], out[j])
		if err != nil {
			sortErr = err
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if sortErr != nil {
		return values.Value{}, ctx.Raise("TypeError", "%s", sortErr.Error())
	}
	for _, v := range out {
		ctx.Heap().IncRefValue(v)
	}
	id, err := ctx.Heap().Allocate(&heap.List{Items: out})
	if err != nil {
		return values.Value{}, err
	}
	return values.NewRef(id), nil
}

func biIsinstance(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 2 {
		return values.Value{}, ctx.Raise("TypeError", "isinstance() takes exactly two arguments")
	}
	inst, clsArg := args[0], args[1]
	candidates := []values.Value{clsArg}
	if items, ok := sequenceOf(ctx.Heap(), clsArg); ok {
		candidates = items
	}
	for _, c := range candidates {
		if isInstanceOf(ctx.Heap(), inst, c) {
			return values.NewBool(true), nil
		}
	}
	return values.NewBool(false), nil
}

func isInstanceOf(h *heap.Heap, inst, class values.Value) bool {
	if !inst.IsRef() || !class.IsRef() {
		return matchesPrimitiveType(h, inst, class)
	}
	instData, ok := h.Get(inst.AsHeapId()).(*heap.Instance)
	if !ok {
		return matchesPrimitiveType(h, inst, class)
	}
	targetClass, ok := h.Get(class.AsHeapId()).(*heap.ClassObject)
	if !ok {
		return false
	}
	instClass, ok := h.Get(instData.Class.AsHeapId()).(*heap.ClassObject)
	if !ok {
		return false
	}
	for _, m := range instClass.MRO {
		mc, ok := h.Get(m.AsHeapId()).(*heap.ClassObject)
		if ok && mc.Name == targetClass.Name {
			return true
		}
	}
	return false
}

// matchesPrimitiveType handles isinstance() against a builtin type name for
// values that aren't Instances (ints, strings, lists, ...); classArg must
// resolve to a ClassObject whose Name matches heap.TypeName(v) since
// primitive types have no ClassObject of their own to walk an MRO through.
func matchesPrimitiveType(h *heap.Heap, v, class values.Value) bool {
	if !class.IsRef() {
		return false
	}
	c, ok := h.Get(class.AsHeapId()).(*heap.ClassObject)
	if !ok {
		return false
	}
	return c.Name == h.TypeName(v)
}

func biType(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 1 {
		return values.Value{}, ctx.Raise("TypeError", "type() takes exactly one argument")
	}
	v := args[0]
	if v.IsRef() {
		if inst, ok := ctx.Heap().Get(v.AsHeapId()).(*heap.Instance); ok {
			ctx.Heap().IncRefValue(inst.Class)
			return inst.Class, nil
		}
	}
	return allocStr(ctx, fmt.Sprintf("<class '%s'>", ctx.Heap().TypeName(v)))
}

func biGetattr(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) < 2 {
		return values.Value{}, ctx.Raise("TypeError", "getattr expected at least 2 arguments")
	}
	name, ok := asStr(ctx.Heap(), args[1])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "getattr(): attribute name must be string")
	}
	inst, ok := instanceOf(ctx.Heap(), args[0])
	if !ok {
		if len(args) == 3 {
			ctx.Heap().IncRefValue(args[2])
			return args[2], nil
		}
		return values.Value{}, ctx.Raise("AttributeError", "object has no attribute '%s'", name)
	}
	if v, ok := inst.Attrs[name]; ok {
		ctx.Heap().IncRefValue(v)
		return v, nil
	}
	if len(args) == 3 {
		ctx.Heap().IncRefValue(args[2])
		return args[2], nil
	}
	return values.Value{}, ctx.Raise("AttributeError", "object has no attribute '%s'", name)
}

func biSetattr(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 3 {
		return values.Value{}, ctx.Raise("TypeError", "setattr expected exactly 3 arguments")
	}
	name, ok := asStr(ctx.Heap(), args[1])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "setattr(): attribute name must be string")
	}
	inst, ok := instanceOf(ctx.Heap(), args[0])
	if !ok {
		return values.Value{}, ctx.Raise("AttributeError", "'%s' object attributes are read-only", ctx.Heap().TypeName(args[0]))
	}
	if old, exists := inst.Attrs[name]; exists {
		ctx.Heap().DecRefValue(old)
	}
	ctx.Heap().IncRefValue(args[2])
	inst.Attrs[name] = args[2]
	return values.NewNone(), nil
}

func biHasattr(ctx registry.BuiltinCallContext, args []values.Value, kwargs map[string]values.Value) (values.Value, error) {
	if len(args) != 2 {
		return values.Value{}, ctx.Raise("TypeError", "hasattr expected exactly 2 arguments")
	}
	name, ok := asStr(ctx.Heap(), args[1])
	if !ok {
		return values.Value{}, ctx.Raise("TypeError", "hasattr(): attribute name must be string")
	}
	inst, ok := instanceOf(ctx.Heap(), args[0])
	if !ok {
		return values.NewBool(false), nil
	}
	_, exists := inst.Attrs[name]
	return values.NewBool(exists), nil
}

func instanceOf(h *heap.Heap, v values.Value) (*heap.Instance, bool) {
	if !v.IsRef() {
		return nil, false
	}
	inst, ok := h.Get(v.AsHeapId()).(*heap.Instance)
	return inst, ok
}
