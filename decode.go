package statemap

import (
	"fmt"

	"github.com/goliatone/go-statemap/internal/hydrate"
)

// DecodeOption configures DecodeRecords.
type DecodeOption[S any] func(*decodeConfig[S])

type decodeConfig[S any] struct {
	options []hydrate.DecoderOption[S]
}

// DecodeStrict rejects payload fields that S does not declare.
func DecodeStrict[S any]() DecodeOption[S] {
	return func(cfg *decodeConfig[S]) {
		cfg.options = append(cfg.options, hydrate.WithDisallowUnknownFields[S]())
	}
}

// DecodeNormalize rewrites each payload before it is decoded.
func DecodeNormalize[S any](fn func(payload map[string]any) (map[string]any, error)) DecodeOption[S] {
	return func(cfg *decodeConfig[S]) {
		if fn == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPreHook[S](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return fn(payload)
		}))
	}
}

// DecodeValidate checks every decoded record.
func DecodeValidate[S any](fn func(item S) error) DecodeOption[S] {
	return func(cfg *decodeConfig[S]) {
		if fn == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPostHook[S](func(_ hydrate.Context, item *S) error {
			return fn(*item)
		}))
	}
}

// DecodeRecords converts loosely typed payloads (for example a decoded JSON
// response) into records ready for Upsert or Replace. Errors name the domain
// and the index of the failing payload.
func DecodeRecords[S any](domain string, payloads []map[string]any, opts ...DecodeOption[S]) ([]S, error) {
	cfg := decodeConfig[S]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoder := hydrate.NewDecoder(cfg.options...)
	out := make([]S, 0, len(payloads))
	for i, payload := range payloads {
		item, err := decoder.Decode(hydrate.Context{Domain: domain, Key: fmt.Sprint(i)}, payload)
		if err != nil {
			return nil, fmt.Errorf("statemap: record %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}
