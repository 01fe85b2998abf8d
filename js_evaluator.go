//go:build js_eval

package statemap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ErrScriptTimeout reports a JS rule interrupted by JSWithTimeout.
var ErrScriptTimeout = errors.New("statemap: js rule timed out")

type jsEvaluator struct {
	jsSettings
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{jsSettings: newJSSettings(opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, annotate("js", expression, ctx.Domain, err)
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, annotate("js", "", "", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, annotate("js", expression, "", err)
	}
	return &jsCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

// run uses a fresh runtime per call; goja runtimes are not goroutine safe.
func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (any, error) {
	vm := goja.New()
	if err := e.injectContext(vm, ctx); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(ErrScriptTimeout)
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
		}
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, ctx RuleContext) error {
	fields := ctx.recordFields()
	for key, value := range fields {
		if reservedIdentifier(key) {
			continue
		}
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	bindings := map[string]any{
		"record":   fields,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	if e.registry != nil {
		bindings["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	for key, value := range bindings {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, annotate("js", r.expression, ctx.Domain, ErrUnboundRule)
	}
	ctx = ctx.withDefaults()
	value, err := r.evaluator.run(ctx, r.program)
	if err != nil {
		return nil, annotate("js", r.expression, ctx.domainLabel(), err)
	}
	return value, nil
}

func jsEvaluatorAvailable() bool {
	return true
}

func jsEngineName(e Evaluator) string {
	if _, ok := e.(*jsEvaluator); ok {
		return "js"
	}
	return ""
}
