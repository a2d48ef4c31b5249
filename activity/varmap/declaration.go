package varmap

import "fmt"

// Kind is the direction of a declaration.
type Kind int

// Declaration kinds.
const (
	KindIn Kind = iota + 1
	KindInject
	KindOut
)

func (k Kind) String() string {
	switch k {
	case KindIn:
		return "in"
	case KindInject:
		return "inject"
	case KindOut:
		return "out"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Declaration is one In, Out or Inject entry of a step.
type Declaration struct {
	Kind     Kind
	Filter   Filter
	Name     string
	Override bool
}

// In imports variables from the outer context. Once any In is declared the
// task sees only what In and Inject provide.
func In(f Filter) Declaration { return Declaration{Kind: KindIn, Filter: f} }

// Out exports variables from the inner context. Without any Out, every key
// the task wrote is exported.
func Out(f Filter) Declaration { return Declaration{Kind: KindOut, Filter: f} }

// OutWithOuter exports the mapping fn computes from both contexts.
func OutWithOuter(fn OuterFunc) Declaration {
	return Declaration{Kind: KindOut, Filter: outerFilter{fn: fn}}
}

// Inject passes keys through only when the outer context has them. f is a
// KeyList, a RenameMap, or a mapping filter merged unconditionally.
func Inject(f Filter) Declaration { return Declaration{Kind: KindInject, Filter: f} }

// InjectVar computes variable name with f unless the outer context already
// has it, in which case the outer value is passed through.
func InjectVar(name string, f Filter) Declaration {
	return Declaration{Kind: KindInject, Filter: f, Name: name}
}

// InjectOverride always computes variable name with f.
func InjectOverride(name string, f Filter) Declaration {
	return Declaration{Kind: KindInject, Filter: f, Name: name, Override: true}
}

// expand turns d into set-variable stages, resolving method references.
func (d Declaration) expand(methods Methods) ([]SetVariable, error) {
	onMissing := MissingError
	switch d.Kind {
	case KindInject:
		onMissing = MissingSkip
	case KindOut:
		onMissing = MissingNil
	case KindIn:
	default:
		return nil, fmt.Errorf("unknown declaration kind %v", d.Kind)
	}

	f := d.Filter
	if ref, ok := f.(MethodRef); ok {
		fn, err := methods.Resolve(string(ref))
		if err != nil {
			return nil, err
		}
		f = Callable{Fn: fn}
	}

	if d.Name != "" {
		switch f.(type) {
		case Callable, CircuitStep:
		default:
			return nil, fmt.Errorf("%s %q requires a callable filter, got %T", d.Kind, d.Name, d.Filter)
		}
		return []SetVariable{{VariableName: d.Name, Name: d.Name, Filter: f, Conditional: !d.Override}}, nil
	}

	switch f := f.(type) {
	case KeyList:
		out := make([]SetVariable, 0, len(f))
		for _, k := range f {
			out = append(out, SetVariable{VariableName: k, Name: k, Filter: readKey{key: k}, OnMissing: onMissing})
		}
		return out, nil
	case RenameMap:
		out := make([]SetVariable, 0, len(f))
		for _, r := range f {
			out = append(out, SetVariable{VariableName: r.To, Name: r.From, Filter: readKey{key: r.From}, OnMissing: onMissing})
		}
		return out, nil
	case Callable, CircuitStep, outerFilter:
		return []SetVariable{{Name: d.Kind.String(), Filter: f}}, nil
	case nil:
		return nil, fmt.Errorf("%s declaration has no filter", d.Kind)
	default:
		return nil, fmt.Errorf("unsupported %s filter %T", d.Kind, f)
	}
}
