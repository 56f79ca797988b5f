//go:build !hardwarefp

package fp

// software computes each operation at float64 precision and rounds the
// result down to float32 itself, rather than relying on the host's
// float32 unit to round a native single-precision operation correctly.
// This is the default backend: it needs no signal handling to observe
// sticky conditions, since the float64 intermediate it always computes
// doubles as the exact reference classify compares the rounded float32
// result against.
type software struct{}

// Default is the Ops implementation used unless built with -tags
// hardwarefp.
var Default Ops = software{}

// BackendName identifies this build's backend for vmconfig.FloatMode
// consistency logging (cmd/smvmrun).
const BackendName = "soft"

func (software) Add(a, b float32) (float32, Flags) {
	exact := float64(a) + float64(b)
	rounded := float32(exact)
	return rounded, classify(a, b, exact, rounded)
}

func (software) Sub(a, b float32) (float32, Flags) {
	exact := float64(a) - float64(b)
	rounded := float32(exact)
	return rounded, classify(a, b, exact, rounded)
}

func (software) Mul(a, b float32) (float32, Flags) {
	exact := float64(a) * float64(b)
	rounded := float32(exact)
	return rounded, classify(a, b, exact, rounded)
}

func (software) Div(a, b float32) (float32, Flags) {
	if result, flags, isZero := classifyDiv(a, b); isZero {
		return result, flags
	}
	exact := float64(a) / float64(b)
	rounded := float32(exact)
	return rounded, classify(a, b, exact, rounded)
}
