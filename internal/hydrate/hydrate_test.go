package hydrate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type resume struct {
	ResumeID  int      `json:"ResumeId"`
	Name      string   `json:"Name"`
	SortOrder int      `json:"SortOrder"`
	Tags      []string `json:"Tags,omitempty"`
}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		input     map[string]any
		options   []DecoderOption[resume]
		expect    resume
		expectErr string
	}{
		{
			name:   "plain payload",
			input:  map[string]any{"ResumeId": 7, "Name": "Backend", "SortOrder": 2},
			expect: resume{ResumeID: 7, Name: "Backend", SortOrder: 2},
		},
		{
			name:      "nil payload",
			input:     nil,
			expectErr: `payload is nil for domain "resumes"`,
		},
		{
			name:  "unknown fields rejected",
			input: map[string]any{"ResumeId": 1, "Extra": true},
			options: []DecoderOption[resume]{
				WithDisallowUnknownFields[resume](),
			},
			expectErr: "unknown field",
		},
		{
			name:  "pre hook renames legacy field",
			input: map[string]any{"Id": 3, "Name": "Legacy"},
			options: []DecoderOption[resume]{
				WithPreHook[resume](func(_ Context, payload map[string]any) (map[string]any, error) {
					if id, ok := payload["Id"]; ok {
						payload["ResumeId"] = id
						delete(payload, "Id")
					}
					return payload, nil
				}),
			},
			expect: resume{ResumeID: 3, Name: "Legacy"},
		},
		{
			name:  "post hook tags with key",
			input: map[string]any{"ResumeId": 4},
			options: []DecoderOption[resume]{
				WithPostHook[resume](func(ctx Context, r *resume) error {
					r.Tags = []string{ctx.Domain + ":" + ctx.Key}
					return nil
				}),
			},
			expect: resume{ResumeID: 4, Tags: []string{"resumes:4"}},
		},
		{
			name:  "post hook failure",
			input: map[string]any{"ResumeId": 4},
			options: []DecoderOption[resume]{
				WithPostHook[resume](func(Context, *resume) error {
					return errors.New("rejected")
				}),
			},
			expectErr: "post-hook",
		},
		{
			name:      "decode error names record",
			input:     map[string]any{"ResumeId": "seven"},
			expectErr: `decode "resumes"[4]`,
		},
		{
			name:   "unknown fields ignored by default",
			input:  map[string]any{"ResumeId": 2, "Extra": true},
			expect: resume{ResumeID: 2},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder[resume](tc.options...)
			result, err := decoder.Decode(Context{Domain: "resumes", Key: "4"}, tc.input)
			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, result) {
				t.Fatalf("decoded record mismatch:\nwant: %#v\n got: %#v", tc.expect, result)
			}
		})
	}
}

func TestDecodeDoesNotMutatePayload(t *testing.T) {
	payload := map[string]any{"Id": 3}
	decoder := NewDecoder[resume](WithPreHook[resume](func(_ Context, p map[string]any) (map[string]any, error) {
		p["ResumeId"] = p["Id"]
		delete(p, "Id")
		return p, nil
	}))
	if _, err := decoder.Decode(Context{Domain: "resumes"}, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["Id"]; !ok {
		t.Fatalf("expected caller payload untouched, got %v", payload)
	}
}

func TestFields(t *testing.T) {
	fields, err := Fields(resume{ResumeID: 5, Name: "A"})
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if fields["ResumeId"] != float64(5) || fields["Name"] != "A" {
		t.Fatalf("unexpected fields %#v", fields)
	}
	if _, ok := fields["Tags"]; ok {
		t.Fatalf("expected omitempty field dropped, got %#v", fields)
	}

	raw := map[string]any{"Year": "2024"}
	same, err := Fields(raw)
	if err != nil || same["Year"] != "2024" {
		t.Fatalf("expected map passthrough, got %#v (%v)", same, err)
	}

	empty, err := Fields(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map for nil, got %#v (%v)", empty, err)
	}

	if _, err := Fields([]int{1, 2}); err == nil {
		t.Fatalf("expected error for non-object record")
	}
}
