package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		current   Vote
		requested Vote
		want      Change
	}{
		{
			name:      "NewLike",
			current:   VoteNone,
			requested: VoteLike,
			want:      Change{Likes: 1, Score: 1, Points: 1, NewVote: VoteLike},
		},
		{
			name:      "NewDislike",
			current:   VoteNone,
			requested: VoteDislike,
			want:      Change{Dislikes: 1, Score: -1, NewVote: VoteDislike},
		},
		{
			name:      "ToggleOffLike",
			current:   VoteLike,
			requested: VoteLike,
			want:      Change{Likes: -1, Score: -1, Points: -1, NewVote: VoteNone},
		},
		{
			name:      "ToggleOffDislike",
			current:   VoteDislike,
			requested: VoteDislike,
			want:      Change{Dislikes: -1, Score: 1, NewVote: VoteNone},
		},
		{
			name:      "SwitchLikeToDislike",
			current:   VoteLike,
			requested: VoteDislike,
			want:      Change{Likes: -1, Dislikes: 1, Score: -2, Points: -1, NewVote: VoteDislike},
		},
		{
			name:      "SwitchDislikeToLike",
			current:   VoteDislike,
			requested: VoteLike,
			want:      Change{Likes: 1, Dislikes: -1, Score: 2, Points: 1, NewVote: VoteLike},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.current, tt.requested)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Reconcile(%q, %q) mismatch (-want +got):\n%s", tt.current, tt.requested, diff)
			}
		})
	}
}

// Every transition must keep score consistent with likes minus dislikes, and
// points consistent with likes.
func TestReconcile_DeltaInvariants(t *testing.T) {
	states := []Vote{VoteNone, VoteLike, VoteDislike}
	requests := []Vote{VoteLike, VoteDislike}

	for _, current := range states {
		for _, requested := range requests {
			ch := Reconcile(current, requested)
			if ch.Score != ch.Likes-ch.Dislikes {
				t.Errorf("Reconcile(%q, %q): score delta %d != likes %d - dislikes %d",
					current, requested, ch.Score, ch.Likes, ch.Dislikes)
			}
			if ch.Points != ch.Likes {
				t.Errorf("Reconcile(%q, %q): points delta %d does not mirror likes delta %d",
					current, requested, ch.Points, ch.Likes)
			}
		}
	}
}

// Voting the same way twice returns all counters to where they started.
func TestReconcile_ToggleRoundTrip(t *testing.T) {
	for _, v := range []Vote{VoteLike, VoteDislike} {
		first := Reconcile(VoteNone, v)
		second := Reconcile(first.NewVote, v)

		if first.Likes+second.Likes != 0 ||
			first.Dislikes+second.Dislikes != 0 ||
			first.Score+second.Score != 0 ||
			first.Points+second.Points != 0 {
			t.Errorf("Double %q vote did not cancel out: first %+v, second %+v", v, first, second)
		}
		if second.NewVote != VoteNone {
			t.Errorf("Double %q vote left state %q, want none", v, second.NewVote)
		}
	}
}
