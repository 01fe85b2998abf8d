package statemap

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-statemap/internal/hydrate"
)

// ErrRuleNotBoolean reports a rule whose result is not a boolean.
var ErrRuleNotBoolean = errors.New("statemap: rule must evaluate to a boolean")

// RuleOption configures a Rule.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	logger   EvaluatorLogger
	args     map[string]any
	metadata map[string]any
	domain   string
	fields   []string
}

// WithRuleLogger reports every evaluation to logger.
func WithRuleLogger(logger EvaluatorLogger) RuleOption {
	return func(cfg *ruleConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithRuleArgs exposes args to the expression as `args`.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = copyMetadata(args)
	}
}

// WithRuleMetadata exposes metadata to the expression as `metadata`.
func WithRuleMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = copyMetadata(metadata)
	}
}

// WithRuleDomain labels evaluation errors and log events.
func WithRuleDomain(domain string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.domain = domain
	}
}

// WithRuleFields declares the record fields the expression may reference,
// letting type checking engines reject bad expressions at compile time.
func WithRuleFields(names ...string) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.fields = append(cfg.fields, names...)
	}
}

// Rule is a compiled boolean expression evaluated against records. Record
// fields are available as top level identifiers and under `record`.
type Rule[S any] struct {
	expr     string
	engine   string
	compiled CompiledRule
	cfg      ruleConfig
}

// CompileRule compiles expression with evaluator, falling back to the expr
// engine when evaluator is nil.
func CompileRule[S any](evaluator Evaluator, expression string, opts ...RuleOption) (*Rule[S], error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	cfg := ruleConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	engine := evaluatorEngineName(evaluator)
	var compileOpts []CompileOption
	if len(cfg.fields) > 0 {
		compileOpts = append(compileOpts, CompileFields(cfg.fields...))
	}
	compiled, err := evaluator.Compile(expression, compileOpts...)
	if err != nil {
		return nil, annotate(engine, expression, cfg.domain, err)
	}
	return &Rule[S]{
		expr:     expression,
		engine:   engine,
		compiled: compiled,
		cfg:      cfg,
	}, nil
}

// Expr returns the source expression.
func (r *Rule[S]) Expr() string {
	return r.expr
}

// Match evaluates the rule against item.
func (r *Rule[S]) Match(item S) (bool, error) {
	fields, err := hydrate.Fields(item)
	if err != nil {
		return false, annotate(r.engine, r.expr, r.cfg.domain, err)
	}
	ctx := RuleContext{
		Record:   fields,
		Args:     r.cfg.args,
		Metadata: r.cfg.metadata,
		Domain:   r.cfg.domain,
	}.withDefaults()

	start := time.Now()
	value, err := r.compiled.Evaluate(ctx)
	err = annotate(r.engine, r.expr, ctx.domainLabel(), err)
	if err == nil {
		if _, ok := value.(bool); !ok {
			err = annotate(r.engine, r.expr, ctx.domainLabel(), fmt.Errorf("%w: got %T", ErrRuleNotBoolean, value))
		}
	}
	r.cfg.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   r.engine,
		Expr:     r.expr,
		Domain:   ctx.domainLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// Predicate adapts the rule for Projection.Pre. Evaluation errors are logged
// and treated as a non-match.
func (r *Rule[S]) Predicate() func(S) bool {
	return func(item S) bool {
		ok, err := r.Match(item)
		return err == nil && ok
	}
}

// RulePredicate compiles expression and returns its predicate.
func RulePredicate[S any](evaluator Evaluator, expression string, opts ...RuleOption) (func(S) bool, error) {
	rule, err := CompileRule[S](evaluator, expression, opts...)
	if err != nil {
		return nil, err
	}
	return rule.Predicate(), nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch e.(type) {
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	}
	if name := jsEngineName(e); name != "" {
		return name
	}
	return "custom"
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
