package reddit

import (
	"strings"
	"testing"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

func TestMergeBody_AppendsBlockToPlainPost(t *testing.T) {
	t.Parallel()

	body := "## Premier Division Round 30\n\nKick-off times below."
	merged := mergeBody(body, []string{"> **Shamrock Rovers 1-0 Bohemians** (12')"}, []string{"GOAL! Shamrock Rovers 1-0 Bohemians - Jack Byrne (12')"})

	if !strings.HasPrefix(merged, body+"\n\n"+blockStart) {
		t.Fatalf("expected block appended after original body, got=%q", merged)
	}
	if !strings.HasSuffix(merged, blockEnd) {
		t.Fatalf("expected block end marker at the end, got=%q", merged)
	}
	if !strings.Contains(merged, "* GOAL! Shamrock Rovers 1-0 Bohemians - Jack Byrne (12')") {
		t.Fatalf("expected update entry, got=%q", merged)
	}
}

func TestMergeBody_ReplacesExistingBlockInPlace(t *testing.T) {
	t.Parallel()

	first := mergeBody("intro", []string{"> **A 1-0 B** (12')"}, []string{"GOAL! A 1-0 B (12')"})
	withFooter := first + "\n\n---\n^(bot footer)"

	second := mergeBody(withFooter, []string{"> **A 2-0 B** (30')"}, []string{"GOAL! A 2-0 B (30')"})

	if strings.Count(second, blockStart) != 1 || strings.Count(second, blockEnd) != 1 {
		t.Fatalf("expected exactly one live block, got=%q", second)
	}
	if strings.Contains(second, "A 1-0 B** (12')") {
		t.Fatalf("expected scoreline to be replaced, got=%q", second)
	}
	if !strings.Contains(second, "* GOAL! A 1-0 B (12')\n* GOAL! A 2-0 B (30')") {
		t.Fatalf("expected entries in arrival order, got=%q", second)
	}
	if !strings.HasSuffix(second, "^(bot footer)") {
		t.Fatalf("expected text after the block to survive, got=%q", second)
	}
}

func TestMergeBody_RedeliveryIsNoop(t *testing.T) {
	t.Parallel()

	scores := []string{"> **A 1-0 B** (12')"}
	entries := []string{"GOAL! A 1-0 B (12')"}
	once := mergeBody("intro", scores, entries)
	twice := mergeBody(once, scores, entries)

	if once != twice {
		t.Fatalf("expected redelivered batch to leave body unchanged\nonce=%q\ntwice=%q", once, twice)
	}
}

func TestMergeBody_CapsLog(t *testing.T) {
	t.Parallel()

	summaries := make([]string, 0, maxLogLines+5)
	for i := 0; i < maxLogLines+5; i++ {
		summaries = append(summaries, "update "+strings.Repeat("x", i+1))
	}
	merged := mergeBody("", nil, summaries)

	_, _, block, ok := splitBody(merged)
	if !ok {
		t.Fatalf("expected block in merged body")
	}
	if len(block.entries) != maxLogLines {
		t.Fatalf("expected %d entries, got=%d", maxLogLines, len(block.entries))
	}
	if block.entries[0] != entryPrefix+summaries[5] {
		t.Fatalf("expected oldest entries dropped first, got=%q", block.entries[0])
	}
}

func TestScoreline(t *testing.T) {
	t.Parallel()

	minute := 67
	live := match.Snapshot{HomeTeam: "St Patrick's Athl.", AwayTeam: "Dundalk", HomeScore: 2, AwayScore: 1, Status: match.StatusInPlay, Minute: &minute}
	if got := scoreline(live); got != "> **St Patrick's Athletic 2-1 Dundalk FC** (67')" {
		t.Fatalf("unexpected live scoreline: %q", got)
	}

	live.Status = match.StatusFinished
	if got := scoreline(live); got != "> **St Patrick's Athletic 2-1 Dundalk FC** (FT)" {
		t.Fatalf("unexpected finished scoreline: %q", got)
	}
}

func TestMergeBody_RepeatedLineInLaterBatchIsKept(t *testing.T) {
	t.Parallel()

	scores := []string{"> **A 1-0 B** (FT)"}
	body := mergeBody("intro", scores, []string{"Score update: A 1-0 B (FT)"})
	body = mergeBody(body, []string{"> **A 1-1 B** (FT)"}, []string{"Score update: A 1-1 B (FT)"})
	body = mergeBody(body, scores, []string{"Score update: A 1-0 B (FT)"})

	_, _, block, ok := splitBody(body)
	if !ok {
		t.Fatalf("expected block in merged body")
	}
	want := []string{
		"* Score update: A 1-0 B (FT)",
		"* Score update: A 1-1 B (FT)",
		"* Score update: A 1-0 B (FT)",
	}
	if strings.Join(block.entries, "\n") != strings.Join(want, "\n") {
		t.Fatalf("expected corrected scoreline logged again, got=%q", block.entries)
	}
}

func TestMergeBody_RedeliveredMultiLineBatchIsNoop(t *testing.T) {
	t.Parallel()

	batch := []string{"GOAL! A 1-0 B (12')", "Red card: B - Player (20')"}
	once := mergeBody("intro", nil, []string{"Kick-off: A vs B"})
	once = mergeBody(once, nil, batch)
	twice := mergeBody(once, nil, batch)

	if once != twice {
		t.Fatalf("expected redelivered batch to leave body unchanged\nonce=%q\ntwice=%q", once, twice)
	}
}
