package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

type fakeStore struct {
	participants map[string][]string
	names        map[string]string
	err          error
}

func (f *fakeStore) ConversationParticipants(_ context.Context, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.participants[id], nil
}

func (f *fakeStore) UserConversations(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for conv, ps := range f.participants {
		for _, p := range ps {
			if p == userID {
				out = append(out, conv)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) UserDisplayName(_ context.Context, userID string) (string, error) {
	name, ok := f.names[userID]
	if !ok {
		return "", errors.New("unknown user")
	}
	return name, nil
}

func newFixture() *fakeStore {
	return &fakeStore{
		participants: map[string][]string{
			"c1": {"a", "b", "b"},
			"c2": {"a", "c"},
			"c3": {"d", "e"},
		},
		names: map[string]string{"a": "Alice"},
	}
}

func TestParticipantsOfDedupes(t *testing.T) {
	d := New(newFixture(), slogt.New(t))
	if diff := cmp.Diff([]string{"a", "b"}, d.ParticipantsOf(context.Background(), "c1")); diff != "" {
		t.Errorf("ParticipantsOf mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupFailureIsEmpty(t *testing.T) {
	store := newFixture()
	store.err = errors.New("db down")
	d := New(store, slogt.New(t))

	if got := d.ParticipantsOf(context.Background(), "c1"); len(got) != 0 {
		t.Errorf("ParticipantsOf on failure = %v, want empty", got)
	}
	if got := d.CoParticipants(context.Background(), "a"); len(got) != 0 {
		t.Errorf("CoParticipants on failure = %v, want empty", got)
	}
	if _, err := d.IsParticipant(context.Background(), "c1", "a"); err == nil {
		t.Error("IsParticipant should surface the store error")
	}
}

func TestIsParticipant(t *testing.T) {
	d := New(newFixture(), slogt.New(t))
	ok, err := d.IsParticipant(context.Background(), "c2", "c")
	if err != nil || !ok {
		t.Errorf("IsParticipant(c2, c) = %v, %v", ok, err)
	}
	ok, _ = d.IsParticipant(context.Background(), "c2", "b")
	if ok {
		t.Error("b is not in c2")
	}
}

func TestCoParticipants(t *testing.T) {
	d := New(newFixture(), slogt.New(t))
	if diff := cmp.Diff([]string{"b", "c"}, d.CoParticipants(context.Background(), "a")); diff != "" {
		t.Errorf("CoParticipants mismatch (-want +got):\n%s", diff)
	}
	if got := d.CoParticipants(context.Background(), "loner"); len(got) != 0 {
		t.Errorf("CoParticipants of a user with no conversations = %v", got)
	}
}

func TestDisplayNameOf(t *testing.T) {
	d := New(newFixture(), slogt.New(t))
	if got := d.DisplayNameOf(context.Background(), "a"); got != "Alice" {
		t.Errorf("DisplayNameOf(a) = %q", got)
	}
	if got := d.DisplayNameOf(context.Background(), "zz"); got != "" {
		t.Errorf("DisplayNameOf(unknown) = %q, want empty", got)
	}
}
