package validator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type sendRequest struct {
	SenderID string   `json:"sender_id" validate:"required"`
	Body     string   `json:"body" validate:"required,max=10"`
	Others   []string `json:"participant_ids" validate:"min=1,dive,required"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		input sendRequest
		want  []ValidationError
	}{
		{
			name:  "valid",
			input: sendRequest{SenderID: "a", Body: "hi", Others: []string{"b"}},
		},
		{
			name:  "missing fields use json names",
			input: sendRequest{Others: []string{"b"}},
			want: []ValidationError{
				{Field: "sender_id", Message: "is required"},
				{Field: "body", Message: "is required"},
			},
		},
		{
			name:  "too long",
			input: sendRequest{SenderID: "a", Body: "this is far too long", Others: []string{"b"}},
			want:  []ValidationError{{Field: "body", Message: "must be at most 10 characters"}},
		},
		{
			name:  "empty list",
			input: sendRequest{SenderID: "a", Body: "hi", Others: []string{}},
			want:  []ValidationError{{Field: "participant_ids", Message: "must have at least 1 entries"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateStruct(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ValidateStruct mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	v := New()
	if errs := v.Validate("", "required"); len(errs) != 1 {
		t.Errorf("empty required value: %v", errs)
	}
	if errs := v.Validate("👍", "required,max=32"); len(errs) != 0 {
		t.Errorf("valid emoji rejected: %v", errs)
	}
}
