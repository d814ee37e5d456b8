package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan:
// - Exported const/function/interface/type/enum/class are recorded
// - Non-exported declarations are not
// - Doc comments directly above an export land in jsdoc
// - Re-exports record the public name with kind const
// - Anonymous default exports record name "default"
// - Signatures are one-line and whitespace-collapsed
// - size and sha256 reflect the input bytes
// - Go sources record exported (capitalized) symbols

func exportsByName(af *ApiFile) map[string]ApiExport {
	out := map[string]ApiExport{}
	for _, e := range af.Exports {
		out[e.Name] = e
	}
	return out
}

func TestFile_TypeScriptExports(t *testing.T) {
	src := []byte(`
/**
 * The answer.
 */
export const x = 1;

export function compute(a: number,
  b: number): number {
  return a + b;
}

export interface Shape { area(): number }

export type Alias = string;

export enum Color { Red, Green }

const hidden = 2;
function alsoHidden() {}
`)

	af := File("src/a.ts", src)
	require.NotNil(t, af)
	assert.Equal(t, len(src), af.Size)
	assert.Len(t, af.Sha256, 64)

	byName := exportsByName(af)
	require.Contains(t, byName, "x")
	assert.Equal(t, KindConst, byName["x"].Kind)
	assert.Equal(t, "The answer.", byName["x"].JSDoc)

	require.Contains(t, byName, "compute")
	assert.Equal(t, KindFunction, byName["compute"].Kind)
	assert.NotContains(t, byName["compute"].Signature, "\n")
	assert.Contains(t, byName["compute"].Signature, "compute(a: number, b: number)")

	assert.Equal(t, KindInterface, byName["Shape"].Kind)
	assert.Equal(t, KindType, byName["Alias"].Kind)
	assert.Equal(t, KindEnum, byName["Color"].Kind)

	assert.NotContains(t, byName, "hidden")
	assert.NotContains(t, byName, "alsoHidden")
}

func TestFile_ReExports(t *testing.T) {
	af := File("src/index.ts", []byte(`export { alpha, beta as gamma } from './impl';`))

	byName := exportsByName(af)
	require.Contains(t, byName, "alpha")
	require.Contains(t, byName, "gamma")
	assert.Equal(t, KindConst, byName["alpha"].Kind)
}

func TestFile_AnonymousDefault(t *testing.T) {
	af := File("src/main.ts", []byte(`export default { run: () => {} };`))

	byName := exportsByName(af)
	require.Contains(t, byName, "default")
	assert.Equal(t, KindConst, byName["default"].Kind)
}

func TestFile_NamedDefaultFunction(t *testing.T) {
	af := File("src/main.ts", []byte("export default function boot() {}\n"))

	byName := exportsByName(af)
	require.Contains(t, byName, "boot")
	assert.Equal(t, KindFunction, byName["boot"].Kind)
}

func TestFile_NamesUniqueWithinFile(t *testing.T) {
	af := File("src/dup.ts", []byte("export const x = 1;\nexport { x } from './other';\n"))

	count := 0
	for _, e := range af.Exports {
		if e.Name == "x" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestFile_GoPublicSymbols(t *testing.T) {
	af := File("pkg/widget.go", []byte("package pkg\n\nfunc Draw() {}\n\nfunc hidden() {}\n\ntype Widget struct{}\n\nconst Limit = 10\n"))

	byName := exportsByName(af)
	assert.Contains(t, byName, "Draw")
	assert.Contains(t, byName, "Widget")
	assert.Contains(t, byName, "Limit")
	assert.NotContains(t, byName, "hidden")
}
