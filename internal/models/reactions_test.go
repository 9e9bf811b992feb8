package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReactionsAdd(t *testing.T) {
	r := Reactions{}
	if err := r.Add("u1", "👍"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add("u2", "👍"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add("u1", "❤️"); !errors.Is(err, ErrReactionExists) {
		t.Errorf("second Add = %v, want ErrReactionExists", err)
	}
	if diff := cmp.Diff(Reactions{"👍": {"u1", "u2"}}, r); diff != "" {
		t.Errorf("reactions mismatch (-want +got):\n%s", diff)
	}
}

func TestReactionsChange(t *testing.T) {
	tests := []struct {
		name    string
		start   Reactions
		emoji   string
		want    Reactions
		wantErr error
	}{
		{
			name:  "moves and drops emptied key",
			start: Reactions{"👍": {"u1"}},
			emoji: "❤️",
			want:  Reactions{"❤️": {"u1"}},
		},
		{
			name:  "keeps other users",
			start: Reactions{"👍": {"u1", "u2"}},
			emoji: "❤️",
			want:  Reactions{"👍": {"u2"}, "❤️": {"u1"}},
		},
		{
			name:  "same emoji is a no-op",
			start: Reactions{"👍": {"u1"}},
			emoji: "👍",
			want:  Reactions{"👍": {"u1"}},
		},
		{
			name:    "no current reaction",
			start:   Reactions{"👍": {"u2"}},
			emoji:   "❤️",
			want:    Reactions{"👍": {"u2"}},
			wantErr: ErrNoReaction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.start.Clone()
			err := r.Change("u1", tt.emoji)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Change err = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, r); diff != "" {
				t.Errorf("reactions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReactionsRemove(t *testing.T) {
	r := Reactions{"👍": {"u1", "u2"}, "❤️": {"u3"}}

	r.Remove("u1", "👍")
	r.Remove("u3", "❤️")
	r.Remove("u9", "🎉")

	if diff := cmp.Diff(Reactions{"👍": {"u2"}}, r); diff != "" {
		t.Errorf("reactions mismatch (-want +got):\n%s", diff)
	}
}

func TestReactionsCloneIsDeep(t *testing.T) {
	r := Reactions{"👍": {"u1"}}
	c := r.Clone()
	c.Add("u2", "👍")

	if len(r["👍"]) != 1 {
		t.Errorf("original mutated through clone: %v", r)
	}
	if Reactions(nil).Clone() == nil {
		t.Error("Clone of nil should be an empty map")
	}
}

func TestReceiptsMarkIfAbsent(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Receipts{}

	if !r.MarkIfAbsent("u1", first) {
		t.Error("first mark should change the map")
	}
	if r.MarkIfAbsent("u1", first.Add(time.Hour)) {
		t.Error("second mark should not change the map")
	}
	if !r["u1"].Equal(first) {
		t.Errorf("timestamp = %v, want first write %v", r["u1"], first)
	}
}

func TestPreview(t *testing.T) {
	short := "hello"
	if got := Preview(short); got != short {
		t.Errorf("Preview(%q) = %q", short, got)
	}
	long := strings.Repeat("é", PreviewLength+10)
	if got := []rune(Preview(long)); len(got) != PreviewLength {
		t.Errorf("Preview length = %d runes, want %d", len(got), PreviewLength)
	}
}
