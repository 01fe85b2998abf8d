package statemap

import (
	"errors"
	"fmt"
	"sort"
	"testing"
)

var ruleEvaluators = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
	expr string
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
		expr: `V > 1.0 && Name != "beta"`,
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
		expr: `V > 1.0 && Name != "beta"`,
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
		expr: `V > 1 && Name !== "beta"`,
	},
}

func TestRulePredicateFiltersProjection(t *testing.T) {
	state := Replace(nil, []item{
		{ID: 1, Name: "alpha", V: 1},
		{ID: 2, Name: "beta", V: 2},
		{ID: 3, Name: "gamma", V: 3},
		{ID: 4, Name: "delta", V: 4},
	}, cfg1D)

	for _, factory := range ruleEvaluators {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			if factory.name == "js" && !jsEvaluatorAvailable() {
				t.Skip("js evaluator requires the js_eval build tag")
			}
			cache := NewMemoryProgramCache()
			pred, err := RulePredicate[item](factory.new(cache, nil), factory.expr, WithRuleDomain("items"))
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got := GetAsArray(state, Filter(pred))
			ids := make([]int, 0, len(got))
			for _, i := range got {
				ids = append(ids, i.ID)
			}
			sort.Ints(ids)
			if fmt.Sprint(ids) != "[3 4]" {
				t.Fatalf("unexpected ids %v", ids)
			}
			if cache.Len() == 0 {
				t.Fatalf("expected compiled program cached")
			}
		})
	}
}

func TestRuleRecordBindingAndArgs(t *testing.T) {
	rule, err := CompileRule[map[string]any](nil, `record.Year == args.year && metadata.source == "fetch"`,
		WithRuleArgs(map[string]any{"year": "2024"}),
		WithRuleMetadata(map[string]any{"source": "fetch"}),
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := rule.Match(map[string]any{"Year": "2024"})
	if err != nil || !ok {
		t.Fatalf("expected match, got %v (%v)", ok, err)
	}
	ok, err = rule.Match(map[string]any{"Year": "2023"})
	if err != nil || ok {
		t.Fatalf("expected no match, got %v (%v)", ok, err)
	}
	if rule.Expr() == "" {
		t.Fatalf("expected expression retained")
	}
}

func TestRuleCustomFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("isEven", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("isEven expects one argument")
		}
		n, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("isEven expects a number, got %T", args[0])
		}
		return int(n)%2 == 0, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name string
		eval Evaluator
		expr string
	}{
		{name: "expr", eval: NewExprEvaluator(ExprWithFunctionRegistry(registry)), expr: `iseven(ID)`},
		{name: "cel", eval: NewCELEvaluator(CELWithFunctionRegistry(registry)), expr: `call("isEven", [ID]) == true`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rule, err := CompileRule[item](tc.eval, tc.expr)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			even, err := rule.Match(item{ID: 2})
			if err != nil || !even {
				t.Fatalf("expected even match, got %v (%v)", even, err)
			}
			odd, err := rule.Match(item{ID: 3})
			if err != nil || odd {
				t.Fatalf("expected odd mismatch, got %v (%v)", odd, err)
			}
		})
	}
}

func TestRuleErrorsAreLoggedAndTreatedAsMismatch(t *testing.T) {
	var events []EvaluatorLogEvent
	logger := EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		events = append(events, event)
	})

	rule, err := CompileRule[item](NewExprEvaluator(), `Name`, WithRuleLogger(logger), WithRuleDomain("items"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = rule.Match(item{Name: "alpha"})
	if !errors.Is(err, ErrRuleNotBoolean) {
		t.Fatalf("expected ErrRuleNotBoolean, got %v", err)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "expr" || evalErr.Domain != "items" {
		t.Fatalf("expected EvaluationError metadata, got %#v", err)
	}
	if rule.Predicate()(item{Name: "alpha"}) {
		t.Fatalf("expected predicate to reject on error")
	}
	if len(events) != 2 || events[0].Err == nil || events[0].Engine != "expr" {
		t.Fatalf("expected failed evaluations logged, got %+v", events)
	}
}

func TestCompileRuleRejectsInvalidExpressions(t *testing.T) {
	if _, err := CompileRule[item](nil, ""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
	_, err := CompileRule[item](NewExprEvaluator(), "Name ==")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "expr" {
		t.Fatalf("expected expr compile error, got %v", err)
	}

	// CEL programs are checked against the record fields, so syntax errors
	// surface on the first match unless the fields are declared up front.
	rule, err := CompileRule[item](NewCELEvaluator(), "Name ==")
	if err != nil {
		t.Fatalf("expected lazy cel compilation, got %v", err)
	}
	if _, err := rule.Match(item{Name: "alpha"}); err == nil {
		t.Fatalf("expected cel syntax error on match")
	}
	if _, err := CompileRule[item](NewCELEvaluator(), "Name ==", WithRuleFields("ID", "Name")); err == nil {
		t.Fatalf("expected eager cel compile error with declared fields")
	}
}

func TestRuleDeclaredFieldsCompileEagerly(t *testing.T) {
	cache := NewMemoryProgramCache()
	rule, err := CompileRule[item](NewCELEvaluator(CELWithProgramCache(cache)), `Name == "alpha"`, WithRuleFields("ID", "Name", "V"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := rule.Match(item{ID: 1, Name: "alpha"})
	if err != nil || !ok {
		t.Fatalf("expected match, got %v (%v)", ok, err)
	}
	ok, err = rule.Match(item{ID: 2, Name: "beta"})
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v (%v)", ok, err)
	}
}

func TestKeyFunctionRegistry(t *testing.T) {
	registry := NewKeyFunctionRegistry()
	if got := registry.Names(); len(got) != 3 || got[0] != "key" || got[1] != "path" || got[2] != "tempkey" {
		t.Fatalf("unexpected helper names %v", got)
	}
	rule, err := CompileRule[item](NewExprEvaluator(ExprWithFunctionRegistry(registry)), `key(V) == "25" && path(ID, Name) == "7/alpha"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := rule.Match(item{ID: 7, Name: "alpha", V: 25})
	if err != nil || !ok {
		t.Fatalf("expected key helpers to match, got %v (%v)", ok, err)
	}
	got, err := registry.Call("TempKey", "draft", 3)
	if err != nil || got != TemporaryKey("draft", 3) {
		t.Fatalf("unexpected tempkey result %v (%v)", got, err)
	}
	if _, err := registry.Call("key"); err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(args ...any) (any, error) { return len(args), nil }
	if err := registry.Register("Count", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("count", fn); !errors.Is(err, ErrFunctionExists) {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", fn); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}
	got, err := registry.Call("COUNT", 1, 2)
	if err != nil || got != 2 {
		t.Fatalf("unexpected call result %v (%v)", got, err)
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected missing function error")
	}
	clone := registry.Clone()
	_ = clone.Register("extra", fn)
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone to be detached: %v vs %v", registry.Names(), clone.Names())
	}
}
