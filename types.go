package statemap

import "time"

// RuleContext carries inputs needed when evaluating a rule expression against
// a single record.
type RuleContext struct {
	Record   any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Domain labels the map the record belongs to in errors and logs.
	Domain string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) domainLabel() string {
	if ctx.Domain != "" {
		return ctx.Domain
	}
	return "unknown"
}

// recordFields returns the record as a field map, or an empty map when the
// record cannot be flattened.
func (ctx RuleContext) recordFields() map[string]any {
	if fields, ok := ctx.Record.(map[string]any); ok && fields != nil {
		return fields
	}
	return map[string]any{}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	fields []string
}

type compileFields []string

func (f compileFields) applyCompileOption(cfg *compileConfig) {
	cfg.fields = append(cfg.fields, f...)
}

// CompileFields declares the record fields an expression may reference.
// Engines that type check (CEL) compile eagerly against them; the others
// ignore the hint.
func CompileFields(names ...string) CompileOption {
	return compileFields(names)
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}
