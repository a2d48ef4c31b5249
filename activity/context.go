package activity

import "sort"

// Vars is an insertion-ordered string-keyed map. It backs Context and the
// per-invocation variable-mapping aggregate.
//
// Vars is not safe for concurrent use; each invocation owns its own.
type Vars struct {
	keys   []string
	values map[string]any
}

// NewVars returns an empty Vars.
func NewVars() *Vars {
	return &Vars{values: make(map[string]any)}
}

// VarsFromMap copies m into a new Vars. Keys are ordered lexically since
// Go maps carry no order.
func VarsFromMap(m map[string]any) *Vars {
	v := NewVars()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, m[k])
	}
	return v
}

// Set stores value under key. An existing key keeps its position.
func (v *Vars) Set(key string, value any) {
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Get returns the value stored under key.
func (v *Vars) Get(key string) (any, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Has reports whether key is present.
func (v *Vars) Has(key string) bool {
	_, ok := v.values[key]
	return ok
}

// Len returns the number of keys.
func (v *Vars) Len() int { return len(v.keys) }

// Keys returns the keys in insertion order.
func (v *Vars) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Each calls fn for every key in insertion order.
func (v *Vars) Each(fn func(key string, value any)) {
	for _, k := range v.keys {
		fn(k, v.values[k])
	}
}

// Merge sets every key of other on v, in other's order.
func (v *Vars) Merge(other *Vars) {
	if other == nil {
		return
	}
	other.Each(v.Set)
}

// Clone returns an independent copy.
func (v *Vars) Clone() *Vars {
	out := NewVars()
	out.Merge(v)
	return out
}

// Map returns the contents as a plain map.
func (v *Vars) Map() map[string]any {
	out := make(map[string]any, len(v.keys))
	for _, k := range v.keys {
		out[k] = v.values[k]
	}
	return out
}

// Context is the business context threaded through an invocation.
//
// It has two layers: a read-only shadow holding what the context was built
// from, and a mutable layer holding every write made since. Reads see the
// mutable layer first. Decompose separates them, which is how the default
// output mapping exports only what a task wrote.
type Context struct {
	shadow  *Vars
	mutable *Vars
}

// NewContext returns a Context whose shadow layer is a copy of initial.
func NewContext(initial map[string]any) *Context {
	return &Context{shadow: VarsFromMap(initial), mutable: NewVars()}
}

// ContextFrom returns a Context whose shadow layer is a copy of vars,
// preserving its order.
func ContextFrom(vars *Vars) *Context {
	shadow := NewVars()
	shadow.Merge(vars)
	return &Context{shadow: shadow, mutable: NewVars()}
}

// Get returns the value for key.
func (c *Context) Get(key string) (any, bool) {
	if v, ok := c.mutable.Get(key); ok {
		return v, true
	}
	return c.shadow.Get(key)
}

// Value returns the value for key, or nil when absent.
func (c *Context) Value(key string) any {
	v, _ := c.Get(key)
	return v
}

// Has reports whether key is present in either layer.
func (c *Context) Has(key string) bool {
	return c.mutable.Has(key) || c.shadow.Has(key)
}

// Set writes key into the mutable layer.
func (c *Context) Set(key string, value any) {
	c.mutable.Set(key, value)
}

// Keys returns shadow keys followed by keys first written to the mutable layer.
func (c *Context) Keys() []string {
	keys := c.shadow.Keys()
	for _, k := range c.mutable.keys {
		if !c.shadow.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Vars returns the merged view as a new ordered Vars.
func (c *Context) Vars() *Vars {
	out := NewVars()
	for _, k := range c.Keys() {
		out.Set(k, c.Value(k))
	}
	return out
}

// ToMap returns the merged view as a plain map.
func (c *Context) ToMap() map[string]any {
	return c.Vars().Map()
}

// Decompose returns copies of the shadow and mutable layers.
func (c *Context) Decompose() (shadow, mutable *Vars) {
	return c.shadow.Clone(), c.mutable.Clone()
}

// Keywords returns the merged view as keyword arguments.
func (c *Context) Keywords() Keywords {
	return Keywords(c.ToMap())
}

// FlowOptions travel alongside the context through every row. They are
// not subject to variable mapping.
type FlowOptions map[string]any

// Args are the arguments of the circuit interface.
type Args struct {
	Ctx  *Context
	Flow FlowOptions
}

// Keywords are the named arguments a step or filter receives.
type Keywords map[string]any

// Require returns the value for key or a *MissingInputError.
func (k Keywords) Require(key string) (any, error) {
	v, ok := k[key]
	if !ok {
		return nil, &MissingInputError{Key: key}
	}
	return v, nil
}

// RequireAll checks that every key is present.
func (k Keywords) RequireAll(keys ...string) error {
	for _, key := range keys {
		if _, ok := k[key]; !ok {
			return &MissingInputError{Key: key}
		}
	}
	return nil
}
