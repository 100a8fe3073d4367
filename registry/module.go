package registry

// Module is a unit of external kernel code. Its only capability is to
// populate a registry; the engine calls RegisterFunctions exactly once per
// module before validation begins.
type Module interface {
	Name() string
	RegisterFunctions(f *Functions) error
}

// ModuleFunc adapts a plain registration function into a Module.
type ModuleFunc struct {
	Label string
	Fn    func(f *Functions) error
}

// Name returns the module label.
func (m ModuleFunc) Name() string { return m.Label }

// RegisterFunctions calls the wrapped function.
func (m ModuleFunc) RegisterFunctions(f *Functions) error { return m.Fn(f) }

// Install registers every module into f, stopping at the first failure.
func Install(f *Functions, modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterFunctions(f); err != nil {
			return err
		}
	}
	return nil
}
