package matching

import "testing"

func TestMatchExactSubstring(t *testing.T) {
	// The target appears verbatim: ratio saturates at 100 and containment
	// adds its full boost, so the score clears any admissible threshold.
	verdict := Match("张伟", "这是张伟的证明", 80)

	if !verdict.IsMatch {
		t.Fatal("expected a match for an exact substring occurrence")
	}
	if verdict.MatchedName != "张伟" {
		t.Fatalf("MatchedName = %q, want %q", verdict.MatchedName, "张伟")
	}
	if len(verdict.Candidates) == 0 {
		t.Fatal("expected candidates for text containing name-like runs")
	}
	if verdict.Candidates[0].Score < 80 {
		t.Fatalf("best score = %.1f, want >= 80", verdict.Candidates[0].Score)
	}
}

func TestMatchNoNamePresent(t *testing.T) {
	verdict := Match("李明", "此处无姓名信息", 80)

	if verdict.IsMatch {
		t.Fatalf("unexpected match: %q", verdict.MatchedName)
	}
	if verdict.MatchedName != "" {
		t.Fatalf("MatchedName = %q, want empty", verdict.MatchedName)
	}
	// The text still yields name-like candidate runs; they just score low.
	if len(verdict.Candidates) == 0 {
		t.Fatal("expected low-scoring candidates, got none")
	}
	for _, c := range verdict.Candidates {
		if c.Score >= 80 {
			t.Fatalf("candidate %q scored %.1f, expected all below threshold", c.Name, c.Score)
		}
	}
}

func TestMatchEmptyText(t *testing.T) {
	verdict := Match("王芳", "", 60)

	if verdict.IsMatch {
		t.Fatal("empty text must not match")
	}
	if len(verdict.Candidates) != 0 {
		t.Fatalf("empty text produced %d candidates", len(verdict.Candidates))
	}
}

func TestMatchEmptyTargetGuard(t *testing.T) {
	// The charMatch signal divides by the target length; an empty target
	// must short-circuit instead of panicking, and must never match.
	verdict := Match("", "任意的文字内容", 1)

	if verdict.IsMatch {
		t.Fatal("empty target must not match")
	}
	if verdict.MatchedName != "" {
		t.Fatalf("MatchedName = %q, want empty", verdict.MatchedName)
	}
}

func TestMatchTextWithoutNameRuns(t *testing.T) {
	verdict := Match("张伟", "no cjk characters 123", 60)
	if verdict.IsMatch || len(verdict.Candidates) != 0 {
		t.Fatalf("latin-only text produced verdict %+v", verdict)
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	// Latin-script targets rely on the verbatim-occurrence candidate.
	verdict := Match("ZhangWei", "certificate issued to zhangwei", 80)
	if !verdict.IsMatch {
		t.Fatal("expected case-insensitive match")
	}
	if verdict.MatchedName != "zhangwei" {
		t.Fatalf("MatchedName = %q, want %q", verdict.MatchedName, "zhangwei")
	}
}

func TestMatchCandidateOrdering(t *testing.T) {
	// 王小芳 shares two characters with 王芳; 张伟 shares none. The closer
	// candidate must rank first, and ordering must be descending by score.
	verdict := Match("王芳", "张伟 王小芳 (2024)", 101)

	if verdict.IsMatch {
		t.Fatal("threshold above the scale must never match")
	}
	if len(verdict.Candidates) < 2 {
		t.Fatalf("candidate count = %d, want >= 2", len(verdict.Candidates))
	}
	for i := 1; i < len(verdict.Candidates); i++ {
		if verdict.Candidates[i-1].Score < verdict.Candidates[i].Score {
			t.Fatalf("candidates not sorted: %.1f before %.1f",
				verdict.Candidates[i-1].Score, verdict.Candidates[i].Score)
		}
	}
	best := verdict.Candidates[0].Name
	if best == "张伟" {
		t.Fatalf("unrelated candidate ranked first: %q", best)
	}
}

func TestMatchThresholdBoundary(t *testing.T) {
	// An exact occurrence scores 100: matched at threshold 100, and the
	// comparison is inclusive.
	if v := Match("张伟", "张伟", 100); !v.IsMatch {
		t.Fatal("score equal to threshold must match")
	}
}

func TestSpanMatchesName(t *testing.T) {
	testCases := []struct {
		name     string
		spanText string
		matched  string
		want     bool
	}{
		{name: "span contains name", spanText: "这是张伟的证明", matched: "张伟", want: true},
		{name: "name contains span", spanText: "张伟", matched: "这是张伟", want: true},
		{name: "no overlap", spanText: "其他内容", matched: "张伟", want: false},
		{name: "case insensitive", spanText: "ZHANGWEI", matched: "zhangwei", want: true},
		{name: "empty matched name", spanText: "张伟", matched: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SpanMatchesName(tc.spanText, tc.matched); got != tc.want {
				t.Fatalf("SpanMatchesName(%q, %q) = %v, want %v", tc.spanText, tc.matched, got, tc.want)
			}
		})
	}
}
