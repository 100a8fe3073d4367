package kernels

import (
	"github.com/sarchlab/tilebench/environment"
	"github.com/sarchlab/tilebench/registry"
)

// Register installs every builtin kernel into f.
func Register(f *registry.Functions) error {
	for _, v := range Variants() {
		if err := f.RegisterChecked(v.Name, registry.KindConvolution, v.Fn, v.check); err != nil {
			return err
		}
	}
	micro := []struct {
		name  string
		kind  registry.Kind
		entry any
	}{
		{"sum", registry.KindOneArray, Sum},
		{"strided_sum", registry.KindOneArray1Arg, StridedSum},
		{"dot", registry.KindTwoArrays, Dot},
		{"vector_add", registry.KindThreeArrays, VectorAdd},
		{"byte_sum", registry.KindRawBytes, ByteSum},
		{"alloc_fill", registry.KindAllocTest, AllocFill},
	}
	for _, m := range micro {
		if err := f.Register(m.name, m.kind, m.entry); err != nil {
			return err
		}
	}
	return nil
}

// check rejects a cell whose tile_size the variant's schedule cannot use.
// Buffer lengths are checked when the convolution environment binds.
func (v Variant) check(params map[string]uint64) error {
	tile, err := environment.ParameterSet(params).Int32(environment.ParamTileSize)
	if err != nil {
		return err
	}
	_, err = v.Schedule(tile)
	return err
}

// Builtin is the Module form of Register.
var Builtin registry.Module = registry.ModuleFunc{Label: "builtin", Fn: Register}
