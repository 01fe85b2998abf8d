package statemap

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache shares compiled programs through cache.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes every registered function under its
// lower cased name, plus the generic call(name, args...).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// ExprWithOptions appends raw expr compile options, for example operator
// overloads or a stricter environment.
func ExprWithOptions(opts ...exprlang.Option) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.extra = append(e.extra, opts...)
	}
}

// exprEvaluator is the default rule engine. Variables stay untyped so the
// same program serves records of any shape.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	extra    []exprlang.Option
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, annotate("expr", expression, ctx.Domain, err)
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotate("expr", "", "", ErrEmptyExpression)
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, annotate("expr", expression, "", err)
	}
	return &exprCompiledRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	cacheKey := "expr:" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			options = append(options, exprlang.Function(name, e.bind(name)))
		}
	}
	options = append(options, e.extra...)
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

func (e *exprEvaluator) bind(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

// environment exposes the record fields as top level identifiers next to
// record, now, args and metadata.
func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	fields := ctx.recordFields()
	env := make(map[string]any, len(fields)+5)
	for key, value := range fields {
		env[key] = value
	}
	env["record"] = fields
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	if e.registry != nil {
		env["call"] = e.registry.Call
	}
	return env
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, annotate("expr", r.expression, ctx.Domain, ErrUnboundRule)
	}
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, r.evaluator.environment(ctx))
	if err != nil {
		return nil, annotate("expr", r.expression, ctx.domainLabel(), err)
	}
	return result, nil
}
