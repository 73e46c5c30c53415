// Package feed holds the vote reconciliation rules for the global message
// feed. Reconcile is pure; the storage layer applies its deltas as atomic
// increments so concurrent voters converge.
package feed

// A Vote is a user's current vote on a feed message.
type Vote string

const (
	VoteNone    Vote = ""
	VoteLike    Vote = "like"
	VoteDislike Vote = "dislike"
)

// A Change describes the counter deltas produced by one vote action. Likes,
// Dislikes and Score apply to the message; Points and Likes also apply to the
// author's points record. NewVote is the voter's resulting vote state.
type Change struct {
	Likes    int
	Dislikes int
	Score    int
	Points   int
	NewVote  Vote
}

// Reconcile computes the effect of a user requesting a vote given their
// current vote on the same message. Repeating the current vote toggles it
// off; a differing vote switches it. Points mirror the author's like count
// exactly: every like added or removed moves points by one, and dislikes
// never move points. Score deltas keep score == likes - dislikes for every
// transition. The requested vote must be VoteLike or VoteDislike.
func Reconcile(current, requested Vote) Change {
	switch {
	case current == requested:
		// Toggle off.
		if requested == VoteLike {
			return Change{Likes: -1, Score: -1, Points: -1, NewVote: VoteNone}
		}
		return Change{Dislikes: -1, Score: 1, NewVote: VoteNone}
	case current == VoteNone:
		// New vote.
		if requested == VoteLike {
			return Change{Likes: 1, Score: 1, Points: 1, NewVote: VoteLike}
		}
		return Change{Dislikes: 1, Score: -1, NewVote: VoteDislike}
	default:
		// Switch.
		if requested == VoteLike {
			return Change{Likes: 1, Dislikes: -1, Score: 2, Points: 1, NewVote: VoteLike}
		}
		return Change{Likes: -1, Dislikes: 1, Score: -2, Points: -1, NewVote: VoteDislike}
	}
}
