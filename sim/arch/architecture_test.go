package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Architecture {
	t.Helper()
	a, err := ParseArchitecture([]byte(doc))
	require.NoError(t, err)
	return a
}

func TestLoadArchitecture_HouseExample(t *testing.T) {
	a, err := LoadArchitecture("../../examples/house.yaml")
	require.NoError(t, err)

	assert.Equal(t, "house", a.Root)
	assert.Equal(t, "s", a.TimeUnit)
	assert.Len(t, a.Atomics, 5)
	assert.Len(t, a.Coupled, 2)
	assert.Equal(t, []string{"heater", "room", "thermostat"}, a.Coupled["heating"].Submodels)
	assert.Equal(t, "celsius-to-fahrenheit", a.Coupled["heating"].ReexportedEvents[1].Converter)
	assert.Equal(t, 600, a.Atomics["clock"].Params["period"])
	assert.NoError(t, a.Validate())
}

func TestLoadArchitecture_MissingFile(t *testing.T) {
	_, err := LoadArchitecture("does-not-exist.yaml")
	assert.ErrorContains(t, err, "reading architecture")
}

func TestParseArchitecture_RejectsUnknownFields(t *testing.T) {
	_, err := ParseArchitecture([]byte(`
root: r
atomics:
  x: {kind: generator, parms: {period: 1}}
`))
	assert.ErrorContains(t, err, "parms")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing root", `
atomics: {x: {kind: k}}`, "root is required"},
		{"bad global unit", `
root: x
time_unit: fortnight
atomics: {x: {kind: k}}`, "time_unit"},
		{"id declared twice", `
root: r
atomics: {x: {kind: k}, r: {kind: k}}
coupled: {r: {submodels: [x]}}`, "both atomic and coupled"},
		{"undeclared root", `
root: nowhere
atomics: {x: {kind: k}}`, `root "nowhere" is not declared`},
		{"atomic without kind", `
root: x
atomics: {x: {}}`, "kind is required"},
		{"atomic with bad unit", `
root: x
atomics: {x: {kind: k, time_unit: parsec}}`, `atomic "x": time_unit`},
		{"unknown tie break", `
root: r
atomics: {x: {kind: k}, y: {kind: k}}
coupled: {r: {submodels: [x, y], tie_break: coin}}`, "unknown tie_break"},
		{"undeclared submodel", `
root: r
atomics: {x: {kind: k}}
coupled: {r: {submodels: [x, ghost]}}`, `submodel "ghost" is not declared`},
		{"root as submodel", `
root: r
atomics: {x: {kind: k}}
coupled: {r: {submodels: [x]}, s: {submodels: [r]}}`, "cannot be a submodel"},
		{"two parents", `
root: r
atomics: {x: {kind: k}, y: {kind: k}}
coupled: {r: {submodels: [x, m]}, m: {submodels: [x, y]}}`, "submodel of both"},
		{"orphan", `
root: r
atomics: {x: {kind: k}, y: {kind: k}, orphan: {kind: k}}
coupled: {r: {submodels: [x, y]}}`, `"orphan" is not reachable`},
		{"cycle", `
root: r
atomics: {x: {kind: k}, y: {kind: k}}
coupled: {r: {submodels: [x, y]}, a: {submodels: [b]}, b: {submodels: [a]}}`, "containment cycle"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := mustParse(t, tc.doc).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_UnitsDefaultToGlobal(t *testing.T) {
	a := mustParse(t, `
root: r
time_unit: ms
atomics: {x: {kind: k}, y: {kind: k, time_unit: us}}
coupled: {r: {submodels: [x, y], tie_break: first}}`)
	assert.NoError(t, a.Validate())
}

func TestParams(t *testing.T) {
	p := Params{"n": 3, "big": int64(7), "f": 1.5, "s": "on", "b": true}

	f, err := p.Float("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)
	f, err = p.Float("f", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
	f, err = p.Float("absent", 9)
	require.NoError(t, err)
	assert.Equal(t, 9.0, f)
	_, err = p.Float("s", 0)
	assert.ErrorContains(t, err, `param "s"`)

	n, err := p.Int("big", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = p.Int("f", 0)
	assert.Error(t, err)

	s, err := p.String("s", "")
	require.NoError(t, err)
	assert.Equal(t, "on", s)
	_, err = p.String("n", "")
	assert.Error(t, err)

	b, err := p.Bool("b", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = p.Bool("absent", true)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = p.Bool("s", false)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterKind("b", nil)
	reg.RegisterKind("a", nil)
	reg.RegisterConverter("id", nil)

	assert.Equal(t, []string{"a", "b"}, reg.Kinds())
	assert.Panics(t, func() { reg.RegisterKind("a", nil) })
	assert.Panics(t, func() { reg.RegisterConverter("id", nil) })

	_, err := reg.Kind("c")
	assert.ErrorContains(t, err, "valid: [a b]")

	conv, err := reg.Converter("")
	assert.NoError(t, err)
	assert.Nil(t, conv)
	_, err = reg.Converter("missing")
	assert.ErrorContains(t, err, `unknown converter "missing"`)
}
