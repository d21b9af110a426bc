package interpreter

// FunctionSource is anything the registry can dispatch to. The set is
// closed: *SystemFunction, *ContextFunction and *DefinedFunction.
type FunctionSource interface {
	Signature() FunctionSignature
	sourceKind() string
}

var (
	_ FunctionSource = &SystemFunction{}
	_ FunctionSource = &ContextFunction{}
	_ FunctionSource = &DefinedFunction{}
)

// FunctionScope is the append-only function registry. Lookups return
// candidates in registration order so the first compatible entry wins.
type FunctionScope struct {
	sources []FunctionSource
	byName  map[string][]int
}

// NewFunctionScope returns a registry seeded with the system built-ins
// followed by the context built-ins.
func NewFunctionScope() *FunctionScope {
	f := &FunctionScope{byName: make(map[string][]int)}
	for _, fn := range systemFunctions {
		f.add(fn)
	}
	for _, fn := range contextFunctions {
		f.add(fn)
	}
	return f
}

func (f *FunctionScope) add(src FunctionSource) {
	name := src.Signature().Name
	f.byName[name] = append(f.byName[name], len(f.sources))
	f.sources = append(f.sources, src)
}

// Candidates returns every entry registered under name, oldest first.
func (f *FunctionScope) Candidates(name string) []FunctionSource {
	positions := f.byName[name]
	candidates := make([]FunctionSource, len(positions))
	for i, pos := range positions {
		candidates[i] = f.sources[pos]
	}
	return candidates
}

func (f *FunctionScope) Len() int {
	return len(f.sources)
}

// Defined returns the user functions in registration order.
func (f *FunctionScope) Defined() []*DefinedFunction {
	var defined []*DefinedFunction
	for _, src := range f.sources {
		if fn, ok := src.(*DefinedFunction); ok {
			defined = append(defined, fn)
		}
	}
	return defined
}
