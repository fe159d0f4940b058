// Package scoring judges and scores practice attempts, either locally from
// transcript similarity or through a remote gRPC pronunciation service.
package scoring

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/clip"
	"github.com/Coding4DevelopersByShenthuri/Elora-sub004/internal/transcript"
)

// DefaultPassThreshold is the minimum score treated as a correct attempt.
const DefaultPassThreshold = 70

// Local scores attempts from the recognized text alone. Word and character
// edit distance are blended so near-misses on single words still earn credit.
type Local struct {
	PassThreshold int
}

// IsCorrect reports whether transcript scores at or above the pass threshold.
func (l Local) IsCorrect(_ context.Context, target string, heard string) (bool, error) {
	return similarity(target, heard) >= l.threshold(), nil
}

// Score returns the blended similarity on a 0-100 scale. Words around the
// target phrase ("the cat" for "cat") do not cost points.
func (l Local) Score(_ context.Context, target string, heard string, _ clip.Clip) (int, error) {
	return similarity(target, heard), nil
}

func (l Local) threshold() int {
	if l.PassThreshold <= 0 {
		return DefaultPassThreshold
	}
	return l.PassThreshold
}

// similarity is the best blend over the whole transcript and every window of
// it as long as the target.
func similarity(target string, heard string) int {
	ref := transcript.Normalize(target)
	hyp := transcript.Normalize(heard)
	if ref == "" {
		return 0
	}

	best := blend(ref, hyp)
	refWords := strings.Fields(ref)
	hypWords := strings.Fields(hyp)
	for i := 0; i+len(refWords) <= len(hypWords) && best < 100; i++ {
		window := strings.Join(hypWords[i:i+len(refWords)], " ")
		best = max(best, blend(ref, window))
	}
	return best
}

func blend(ref string, hyp string) int {
	if ref == hyp {
		return 100
	}

	wer := ComputeWER(ref, hyp).WER
	wordScore := 1 - math.Min(wer, 1)

	distance := levenshtein([]rune(ref), []rune(hyp))
	longest := max(utf8.RuneCountInString(ref), utf8.RuneCountInString(hyp))
	charScore := 1 - float64(distance)/float64(longest)

	return Clamp(int(math.Round(100 * (wordScore + charScore) / 2)))
}

// Clamp bounds a score to 0..100.
func Clamp(score int) int {
	return min(max(score, 0), 100)
}

// WERResult holds detailed word error rate counts.
type WERResult struct {
	WER           float64
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// ComputeWER calculates (S+I+D)/N between reference and hypothesis after normalization.
func ComputeWER(reference, hypothesis string) WERResult {
	refWords := strings.Fields(transcript.Normalize(reference))
	hypWords := strings.Fields(transcript.Normalize(hypothesis))

	n := len(refWords)
	if n == 0 {
		return WERResult{}
	}
	m := len(hypWords)

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if refWords[i-1] == hypWords[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = min(d[i-1][j-1]+1, d[i-1][j]+1, d[i][j-1]+1)
		}
	}

	var subs, ins, dels int
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && refWords[i-1] == hypWords[j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}

	return WERResult{
		WER:           float64(subs+ins+dels) / float64(n),
		Substitutions: subs,
		Insertions:    ins,
		Deletions:     dels,
		RefWords:      n,
	}
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
