// Package loader loads kernel modules built with -buildmode=plugin.
//
// A module is a Go plugin exporting
//
//	func RegisterFunctions(f *registry.Functions) error
//
// (a variant without the error result is accepted too). The loader checks
// the ELF header before handing the file to the plugin runtime so that a
// wrong file fails with a readable message instead of a dlopen error.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"plugin"
	"runtime"

	"github.com/sarchlab/tilebench/registry"
)

// ErrModuleLoad wraps every failure to open or bind a module.
var ErrModuleLoad = errors.New("module load failed")

// EntryPoint is the symbol every module must export.
const EntryPoint = "RegisterFunctions"

var hostMachines = map[string]elf.Machine{
	"amd64":   elf.EM_X86_64,
	"arm64":   elf.EM_AARCH64,
	"riscv64": elf.EM_RISCV,
	"ppc64le": elf.EM_PPC64,
	"s390x":   elf.EM_S390,
}

// HostMachine returns the ELF machine of the running binary, if known.
func HostMachine() (elf.Machine, bool) {
	m, ok := hostMachines[runtime.GOARCH]
	return m, ok
}

// Inspect checks that path is a 64-bit ELF shared object for the host
// machine.
func Inspect(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to open ELF file: %v", ErrModuleLoad, path, err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("%w: %s: not a 64-bit ELF file", ErrModuleLoad, path)
	}
	if f.Type != elf.ET_DYN {
		return fmt.Errorf("%w: %s: not a shared object (type: %v)", ErrModuleLoad, path, f.Type)
	}
	if host, ok := HostMachine(); ok && f.Machine != host {
		return fmt.Errorf("%w: %s: built for machine %v, host is %v", ErrModuleLoad, path, f.Machine, host)
	}
	return nil
}

// Load opens the module at path and returns it unregistered.
func Load(path string) (registry.Module, error) {
	if err := Inspect(path); err != nil {
		return nil, err
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModuleLoad, path, err)
	}
	sym, err := p.Lookup(EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModuleLoad, path, err)
	}
	return bind(path, sym)
}

func bind(path string, sym any) (registry.Module, error) {
	switch fn := sym.(type) {
	case func(*registry.Functions) error:
		return registry.ModuleFunc{Label: path, Fn: fn}, nil
	case func(*registry.Functions):
		return registry.ModuleFunc{Label: path, Fn: func(f *registry.Functions) error {
			fn(f)
			return nil
		}}, nil
	}
	return nil, fmt.Errorf("%w: %s: %s has type %T", ErrModuleLoad, path, EntryPoint, sym)
}

// LoadAll loads every path in order and stops at the first failure.
func LoadAll(paths []string) ([]registry.Module, error) {
	modules := make([]registry.Module, 0, len(paths))
	for _, path := range paths {
		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}
