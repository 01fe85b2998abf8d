package statemap

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression reports a rule compiled from an empty source.
	ErrEmptyExpression = errors.New("statemap: rule expression must not be empty")
	// ErrUnboundRule reports a compiled rule that lost its evaluator.
	ErrUnboundRule = errors.New("statemap: compiled rule has no evaluator")
)

// EvaluationError ties a failed rule to the engine, the expression source
// and the map domain the record came from.
type EvaluationError struct {
	Engine string
	Expr   string
	Domain string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	source := "<empty>"
	if e.Expr != "" {
		source = fmt.Sprintf("%q", e.Expr)
	}
	domain := e.Domain
	if domain == "" {
		domain = "unknown"
	}
	return fmt.Sprintf("statemap: %s rule %s on %s: %v", e.Engine, source, domain, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// annotate wraps err in an EvaluationError. An existing EvaluationError in
// the chain keeps its engine and only has blank fields filled in.
func annotate(engine, expr, domain string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Domain: domain, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Domain == "" {
		evalErr.Domain = domain
	}
	return evalErr
}
