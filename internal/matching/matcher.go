/**
 * Name reconciliation against noisy OCR text
 *
 * OCR output over scanned material is unreliable: characters get substituted,
 * split, or merged, and casing is meaningless for the scripts in use. Instead
 * of exact search, every name-like substring (a run of 2-4 CJK ideographs)
 * is scored against the target name with three fused signals:
 *
 *   ratio       SequenceMatcher-style similarity, 0-100, weight 0.5
 *   charMatch   fraction of target characters present in the candidate, x30
 *   containment 1 when either string contains the other, x20
 *
 * The weights are empirical and kept for compatibility with the established
 * scoring behavior; charMatch may exceed 1 when the target repeats a
 * character the candidate holds once, which is intentionally not corrected.
 */

package matching

import (
	"regexp"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// namePattern matches maximal runs of 2-4 CJK ideographs, the plausible
// length range for personal names in the target locale.
var namePattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}`)

// Candidate is one name-like substring with its combined score.
type Candidate struct {
	Name  string
	Score float64
}

// Verdict is the outcome of matching a target name against recognized text.
type Verdict struct {
	IsMatch     bool
	MatchedName string
	Candidates  []Candidate
}

// Match scores every name-like substring of recognizedText against targetName
// and thresholds the best combined score. Matching is case-insensitive.
// Empty recognized text or an empty target yields no match; the empty-target
// guard avoids a division by zero in the charMatch signal.
func Match(targetName, recognizedText string, threshold int) Verdict {
	target := strings.ToLower(targetName)
	text := strings.ToLower(recognizedText)

	if target == "" || text == "" {
		return Verdict{}
	}

	names := namePattern.FindAllString(text, -1)

	// A verbatim occurrence of the target is always a candidate, even when
	// the greedy run extraction buries it inside a longer run.
	if strings.Contains(text, target) && !containsString(names, target) {
		names = append([]string{target}, names...)
	}

	if len(names) == 0 {
		return Verdict{}
	}

	targetRunes := []rune(target)
	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		ratio := float64(fuzzy.Ratio(target, name))

		hits := 0
		for _, r := range targetRunes {
			if strings.ContainsRune(name, r) {
				hits++
			}
		}
		charMatch := float64(hits) / float64(len(targetRunes))

		containment := 0.0
		if strings.Contains(name, target) || strings.Contains(target, name) {
			containment = 1.0
		}

		candidates = append(candidates, Candidate{
			Name:  name,
			Score: ratio*0.5 + charMatch*30 + containment*20,
		})
	}

	// Stable sort keeps first-occurrence order among equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	verdict := Verdict{Candidates: candidates}
	if best.Score >= float64(threshold) {
		verdict.IsMatch = true
		verdict.MatchedName = best.Name
	}
	return verdict
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SpanMatchesName reports whether a recognized span's text overlaps the
// matched name: either contains the other, case-insensitively. Used to select
// the spans whose regions get highlighted.
func SpanMatchesName(spanText, matchedName string) bool {
	if matchedName == "" {
		return false
	}
	s := strings.ToLower(spanText)
	n := strings.ToLower(matchedName)
	return strings.Contains(s, n) || strings.Contains(n, s)
}
