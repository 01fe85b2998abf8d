package statemap

import "time"

// JSEvaluatorOption configures the JS evaluator. The options compile in every
// build so callers need not guard them behind the js_eval tag.
type JSEvaluatorOption func(*jsSettings)

type jsSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSWithProgramCache shares compiled scripts through cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSettings) {
		s.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry through call(name, args...).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSettings) {
		if registry != nil {
			s.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts a single evaluation running longer than d. Zero
// disables the limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(s *jsSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func newJSSettings(opts []JSEvaluatorOption) jsSettings {
	s := jsSettings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
