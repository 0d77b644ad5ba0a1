package updater

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// --------------------------------------------------------------------------
// Built-in Updaters
// --------------------------------------------------------------------------

// Sum adds incoming element-wise (the default merge)
func Sum(incoming, stored tensor.Value) error {
	return stored.AddInPlace(incoming)
}

// Max keeps the element-wise maximum
func Max(incoming, stored tensor.Value) error {
	return elementwise(incoming, stored, func(in, st float32) float32 {
		if in > st {
			return in
		}
		return st
	})
}

// Min keeps the element-wise minimum
func Min(incoming, stored tensor.Value) error {
	return elementwise(incoming, stored, func(in, st float32) float32 {
		if in < st {
			return in
		}
		return st
	})
}

// Assign replaces the stored value (last writer wins)
func Assign(incoming, stored tensor.Value) error {
	return stored.CopyFrom(incoming)
}

// SGD returns an updater treating pushes as gradients: stored -= lr * incoming
func SGD(lr float32) store.Updater {
	return func(incoming, stored tensor.Value) error {
		return elementwise(incoming, stored, func(in, st float32) float32 {
			return st - lr*in
		})
	}
}

// Avg returns an updater adding incoming/n, so n pushes per step average into the stored value
func Avg(n int) store.Updater {
	scale := 1 / float32(n)
	return func(incoming, stored tensor.Value) error {
		return elementwise(incoming, stored, func(in, st float32) float32 {
			return st + in*scale
		})
	}
}

// elementwise applies fn to all element pairs and writes the result into stored
func elementwise(incoming, stored tensor.Value, fn func(in, st float32) float32) error {
	if err := tensor.CheckShape(stored, incoming); err != nil {
		return err
	}
	dst := stored.Data()
	for i, v := range incoming.Data() {
		dst[i] = fn(v, dst[i])
	}
	return nil
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// factory builds an updater from its (possibly empty) argument
type factory func(arg string) (store.Updater, error)

func noArg(name string, fn store.Updater) factory {
	return func(arg string) (store.Updater, error) {
		if arg != "" {
			return nil, fmt.Errorf("updater %s takes no argument", name)
		}
		return fn, nil
	}
}

var registry = map[string]factory{
	"sum":    noArg("sum", Sum),
	"max":    noArg("max", Max),
	"min":    noArg("min", Min),
	"assign": noArg("assign", Assign),
	"sgd": func(arg string) (store.Updater, error) {
		lr, err := strconv.ParseFloat(arg, 32)
		if err != nil || lr <= 0 {
			return nil, fmt.Errorf("sgd needs a positive learning rate, got %q", arg)
		}
		return SGD(float32(lr)), nil
	},
	"avg": func(arg string) (store.Updater, error) {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("avg needs a positive number of contributors, got %q", arg)
		}
		return Avg(n), nil
	},
}

// Names returns the names of all built-in updaters
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse resolves an updater description such as "sum", "max" or "sgd(0.01)".
// An empty description resolves to Sum.
func Parse(desc string) (store.Updater, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return Sum, nil
	}

	name, arg := desc, ""
	if open := strings.IndexByte(desc, '('); open >= 0 {
		if !strings.HasSuffix(desc, ")") {
			return nil, fmt.Errorf("invalid updater %q: missing closing parenthesis", desc)
		}
		name, arg = desc[:open], strings.TrimSpace(desc[open+1:len(desc)-1])
	}

	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown updater %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(arg)
}
