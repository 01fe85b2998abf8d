package statemap

import (
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

var anySliceType = reflect.TypeOf([]any{})

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Record fields are
// declared as dynamic variables, so programs are cached per expression and
// field set.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, annotate("cel", "", ctx.Domain, ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	fields := ctx.recordFields()
	program, err := e.loadOrCompile(expression, fields)
	if err != nil {
		return nil, annotate("cel", expression, ctx.domainLabel(), err)
	}
	return e.run(ctx, expression, program, fields)
}

func (e *celEvaluator) run(ctx RuleContext, expression string, program *celProgram, fields map[string]any) (any, error) {
	out, _, err := program.program.Eval(e.activation(ctx, fields))
	if err != nil {
		return nil, annotate("cel", expression, ctx.domainLabel(), err)
	}
	return out.Value(), nil
}

// Compile defers type checking to the first evaluation unless the record
// fields are declared with CompileFields.
func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotate("cel", "", "", ErrEmptyExpression)
	}
	rule := &celCompiledRule{evaluator: e, expression: expression}
	cfg := applyCompileOptions(opts)
	if len(cfg.fields) == 0 {
		return rule, nil
	}
	declared := make(map[string]any, len(cfg.fields))
	for _, name := range cfg.fields {
		declared[name] = nil
	}
	program, err := e.loadOrCompile(expression, declared)
	if err != nil {
		return nil, annotate("cel", expression, "", err)
	}
	rule.program = program
	return rule, nil
}

func (e *celEvaluator) loadOrCompile(expression string, fields map[string]any) (*celProgram, error) {
	cacheKey := celCacheKey(expression, fields)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(fields)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(fields map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("record", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.BinaryBinding(e.callBinding()),
		)))
	}
	for key := range fields {
		if reservedIdentifier(key) {
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext, fields map[string]any) map[string]any {
	activation := make(map[string]any, len(fields)+4)
	for key, value := range fields {
		if reservedIdentifier(key) {
			continue
		}
		activation[key] = value
	}
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	activation["metadata"] = ctx.Metadata
	activation["record"] = fields
	return activation
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	program    *celProgram
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, annotate("cel", r.expression, ctx.Domain, ErrUnboundRule)
	}
	if r.program == nil {
		return r.evaluator.Evaluate(ctx, r.expression)
	}
	ctx = ctx.withDefaults()
	return r.evaluator.run(ctx, r.expression, r.program, ctx.recordFields())
}

// callBinding dispatches call("name", [args...]) to the registry.
func (e *celEvaluator) callBinding() functions.BinaryOp {
	return func(name, arguments ref.Val) ref.Val {
		fn, ok := name.Value().(string)
		if !ok {
			return types.NewErr("statemap: call name must be string")
		}
		var args []any
		if list, ok := arguments.Value().([]ref.Val); ok {
			for _, val := range list {
				args = append(args, val.Value())
			}
		} else if native, err := arguments.ConvertToNative(anySliceType); err == nil {
			args = native.([]any)
		}
		result, err := e.registry.Call(fn, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

func celCacheKey(expression string, fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "cel:" + strings.Join(keys, ",") + ":" + expression
}

func reservedIdentifier(key string) bool {
	switch key {
	case "now", "args", "metadata", "record", "call":
		return true
	}
	return false
}
