package incidents

import "testing"

func TestReactionFromFlag(t *testing.T) {
	if ReactionFromFlag(1) != ReactionLike || ReactionFromFlag(-1) != ReactionDislike || ReactionFromFlag(0) != ReactionNone {
		t.Fatalf("flag mapping mismatch")
	}
}

func TestReactionSummaryScore(t *testing.T) {
	s := ReactionSummary{Likes: 7, Dislikes: 3}
	if s.Score() != 4 {
		t.Fatalf("score: want=4 got=%d", s.Score())
	}
}

func TestReactionActionMutates(t *testing.T) {
	if ActionRefresh.Mutates() {
		t.Fatalf("refresh must be read-only")
	}
	if !ActionClear.Mutates() || ReactionAction("BOGUS").Valid() {
		t.Fatalf("action validity mismatch")
	}
}

func TestMembershipFromFlag(t *testing.T) {
	cases := map[int64]string{1: MembershipLike, -1: MembershipDislike, 0: ""}
	for flag, want := range cases {
		if got := MembershipFromFlag(flag); got != want {
			t.Fatalf("MembershipFromFlag(%d): want=%q got=%q", flag, want, got)
		}
	}
}
