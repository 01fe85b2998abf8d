//go:build !js_eval

package statemap

// NewJSEvaluator returns nil unless the binary is built with the js_eval tag;
// CompileRule then falls back to the expr engine.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool { return false }

func jsEngineName(Evaluator) string { return "" }
