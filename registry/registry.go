package registry

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownFunction is returned when a name has no FunctionRecord.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrSignatureMismatch is returned when an entry point does not have the
	// function type owned by its Kind.
	ErrSignatureMismatch = errors.New("entry point does not match kind")
)

// FunctionRecord is one registered kernel.
type FunctionRecord struct {
	// Name is unique within a Functions registry.
	Name string
	// Kind selects the environment that can bind Entry.
	Kind Kind
	// Entry is a value of the function type owned by Kind.
	Entry any
	// Check, if set, rejects parameter cells Entry cannot run on.
	Check Check
}

// Check validates one sweep cell's parameters for a kernel before any
// measurement starts.
type Check func(params map[string]uint64) error

// Functions maps kernel names to FunctionRecords. It is built once at
// startup and handed to the engine; it is not safe for concurrent mutation.
type Functions struct {
	records map[string]FunctionRecord
}

// NewFunctions creates an empty registry.
func NewFunctions() *Functions {
	return &Functions{records: make(map[string]FunctionRecord)}
}

// Register inserts or overwrites the record for name. Re-registering a name
// replaces the earlier record so that loaded modules can override builtins.
func (f *Functions) Register(name string, kind Kind, entry any) error {
	return f.RegisterChecked(name, kind, entry, nil)
}

// RegisterChecked is Register with a precondition check run for every
// sweep cell during validation.
func (f *Functions) RegisterChecked(name string, kind Kind, entry any, check Check) error {
	if name == "" {
		return fmt.Errorf("register: empty function name")
	}
	if !kind.Matches(entry) {
		return fmt.Errorf("register %s as %s (got %T): %w", name, kind, entry, ErrSignatureMismatch)
	}
	f.records[name] = FunctionRecord{Name: name, Kind: kind, Entry: entry, Check: check}
	return nil
}

// MustRegister is Register for builtin tables whose signatures are fixed at
// compile time.
func (f *Functions) MustRegister(name string, kind Kind, entry any) {
	if err := f.Register(name, kind, entry); err != nil {
		panic(err)
	}
}

// Resolve looks up a record by name.
func (f *Functions) Resolve(name string) (FunctionRecord, error) {
	rec, ok := f.records[name]
	if !ok {
		return FunctionRecord{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return rec, nil
}

// Names returns every registered name in sorted order.
func (f *Functions) Names() []string {
	names := make([]string, 0, len(f.records))
	for name := range f.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered functions.
func (f *Functions) Len() int {
	return len(f.records)
}

// Expand replaces the pseudo-name "ALL" with every registered name. Other
// names are returned unchanged and in order.
func (f *Functions) Expand(names []string) []string {
	for _, n := range names {
		if n == "ALL" {
			return f.Names()
		}
	}
	return names
}
