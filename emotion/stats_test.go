package emotion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		labels []Emotion
		want   Stats
	}{
		{
			name:   "Empty",
			labels: nil,
			want: Stats{
				Counts:      map[Emotion]int{Neutral: 0, Angry: 0, Happy: 0, Excited: 0, Smiling: 0},
				Percentages: map[Emotion]int{Neutral: 0, Angry: 0, Happy: 0, Excited: 0, Smiling: 0},
				Total:       0,
			},
		},
		{
			name:   "RoundedPercentages",
			labels: []Emotion{Happy, Happy, Neutral},
			want: Stats{
				Counts:      map[Emotion]int{Neutral: 1, Angry: 0, Happy: 2, Excited: 0, Smiling: 0},
				Percentages: map[Emotion]int{Neutral: 33, Angry: 0, Happy: 67, Excited: 0, Smiling: 0},
				Total:       3,
			},
		},
		{
			name:   "UnknownLabelsExcluded",
			labels: []Emotion{Happy, Emotion("confused"), Neutral},
			want: Stats{
				Counts:      map[Emotion]int{Neutral: 1, Angry: 0, Happy: 1, Excited: 0, Smiling: 0},
				Percentages: map[Emotion]int{Neutral: 50, Angry: 0, Happy: 50, Excited: 0, Smiling: 0},
				Total:       2,
			},
		},
		{
			name:   "SingleEmotion",
			labels: []Emotion{Excited, Excited, Excited},
			want: Stats{
				Counts:      map[Emotion]int{Neutral: 0, Angry: 0, Happy: 0, Excited: 3, Smiling: 0},
				Percentages: map[Emotion]int{Neutral: 0, Angry: 0, Happy: 0, Excited: 100, Smiling: 0},
				Total:       3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.labels)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_PercentagesNeedNotSumTo100(t *testing.T) {
	got := Aggregate([]Emotion{Happy, Neutral, Angry})

	sum := 0
	for _, p := range got.Percentages {
		sum += p
	}
	// Three thirds round to 33 each; the aggregator does not correct the
	// rounding artifact.
	if sum != 99 {
		t.Errorf("Percentages sum = %d, want 99", sum)
	}
}

func TestAggregateByUser(t *testing.T) {
	rows := []Labeled{
		{UserID: "u1", UserName: "Ada", Emotion: Happy},
		{UserID: "u2", UserName: "Ben", Emotion: Angry},
		{UserID: "u2", UserName: "Ben", Emotion: Angry},
		{UserID: "u1", UserName: "Ada", Emotion: Neutral},
		{UserID: "u2", UserName: "Ben", Emotion: Happy},
	}

	got := AggregateByUser(rows)

	if len(got) != 2 {
		t.Fatalf("Got %d users, want 2", len(got))
	}
	if got[0].UserID != "u2" || got[0].Total != 3 {
		t.Errorf("First user = %s with total %d, want u2 with 3", got[0].UserID, got[0].Total)
	}
	if got[1].UserID != "u1" || got[1].Total != 2 {
		t.Errorf("Second user = %s with total %d, want u1 with 2", got[1].UserID, got[1].Total)
	}
	if got[0].UserName != "Ben" {
		t.Errorf("First user name = %q, want Ben", got[0].UserName)
	}
	if got[0].Counts[Angry] != 2 {
		t.Errorf("u2 angry count = %d, want 2", got[0].Counts[Angry])
	}
}

func TestAggregateByUser_Empty(t *testing.T) {
	if got := AggregateByUser(nil); len(got) != 0 {
		t.Errorf("Got %d users, want 0", len(got))
	}
}
