package plugins

// Context is a layered key/value scope handed to plugins and templates.
// Lookups search from the newest layer down; writes go to the newest layer.
type Context struct {
	layers []map[string]any
	Assets *Assets
}

// NewContext creates a context with one layer holding values.
func NewContext(values map[string]any) *Context {
	base := make(map[string]any, len(values))
	for k, v := range values {
		base[k] = v
	}
	return &Context{layers: []map[string]any{base}, Assets: NewAssets()}
}

// Push opens a new layer, optionally pre-filled.
func (c *Context) Push(values ...map[string]any) {
	layer := make(map[string]any)
	for _, v := range values {
		for key, value := range v {
			layer[key] = value
		}
	}
	c.layers = append(c.layers, layer)
}

// Pop discards the newest layer. The base layer is never removed.
func (c *Context) Pop() {
	if len(c.layers) > 1 {
		c.layers = c.layers[:len(c.layers)-1]
	}
}

// Depth reports the number of layers.
func (c *Context) Depth() int {
	return len(c.layers)
}

func (c *Context) Get(key string) (any, bool) {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if v, ok := c.layers[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Context) Set(key string, value any) {
	c.layers[len(c.layers)-1][key] = value
}

// Update writes every entry of values into the newest layer.
func (c *Context) Update(values map[string]any) {
	for k, v := range values {
		c.Set(k, v)
	}
}

// Flatten merges all layers into one map, newer layers winning.
func (c *Context) Flatten() map[string]any {
	out := make(map[string]any)
	for _, layer := range c.layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Derive returns a single-layer copy of c that shares its asset registry.
func (c *Context) Derive() *Context {
	return &Context{layers: []map[string]any{c.Flatten()}, Assets: c.Assets}
}
