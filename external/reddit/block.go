package reddit

import (
	"slices"
	"strconv"
	"strings"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/valyala/bytebufferpool"
)

// Reddit markdown drops empty links, so these survive edits without showing.
const (
	blockStart   = "[](#live-updates-start)"
	blockEnd     = "[](#live-updates-end)"
	blockHeading = "### Live updates"
	scorePrefix  = "> "
	entryPrefix  = "* "
	maxLogLines  = 100
)

type liveBlock struct {
	scorelines []string
	entries    []string
}

// splitBody separates a post body into the text around the live block and the
// block itself. ok is false when the body has no block yet.
func splitBody(body string) (before, after string, block liveBlock, ok bool) {
	start := strings.Index(body, blockStart)
	if start < 0 {
		return body, "", liveBlock{}, false
	}
	rest := body[start+len(blockStart):]
	end := strings.Index(rest, blockEnd)
	if end < 0 {
		return body, "", liveBlock{}, false
	}

	for _, line := range strings.Split(rest[:end], "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, scorePrefix):
			block.scorelines = append(block.scorelines, line)
		case strings.HasPrefix(line, entryPrefix):
			block.entries = append(block.entries, line)
		}
	}
	return body[:start], rest[end+len(blockEnd):], block, true
}

// mergeBody writes scorelines and the batch's entries into the live block of
// body, creating the block at the end of the post when missing. A batch the log
// already ends with is a redelivery and is not appended again; the same line
// arriving later in a different batch is.
func mergeBody(body string, scorelines, summaries []string) string {
	before, after, block, found := splitBody(body)

	batch := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary = strings.TrimSpace(summary); summary != "" {
			batch = append(batch, entryPrefix+summary)
		}
	}
	if !endsWith(block.entries, batch) {
		block.entries = append(block.entries, batch...)
	}
	if len(block.entries) > maxLogLines {
		block.entries = block.entries[len(block.entries)-maxLogLines:]
	}
	if len(scorelines) > 0 {
		block.scorelines = scorelines
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if found {
		_, _ = buf.WriteString(before)
	} else {
		_, _ = buf.WriteString(strings.TrimRight(body, "\n"))
		if body != "" {
			_, _ = buf.WriteString("\n\n")
		}
	}
	renderBlock(buf, block)
	if found {
		_, _ = buf.WriteString(after)
	}
	return buf.String()
}

func endsWith(entries, batch []string) bool {
	if len(batch) == 0 || len(batch) > len(entries) {
		return len(batch) == 0
	}
	return slices.Equal(entries[len(entries)-len(batch):], batch)
}

func renderBlock(buf *bytebufferpool.ByteBuffer, block liveBlock) {
	_, _ = buf.WriteString(blockStart)
	_, _ = buf.WriteString("\n")
	_, _ = buf.WriteString(blockHeading)
	_, _ = buf.WriteString("\n\n")
	for _, line := range block.scorelines {
		_, _ = buf.WriteString(line)
		_, _ = buf.WriteString("\n\n")
	}
	for _, line := range block.entries {
		_, _ = buf.WriteString(line)
		_, _ = buf.WriteString("\n")
	}
	_, _ = buf.WriteString("\n")
	_, _ = buf.WriteString(blockEnd)
}

// scoreline renders "> **Home 2-1 Away** (67')".
func scoreline(snapshot match.Snapshot) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(scorePrefix)
	_, _ = buf.WriteString("**")
	_, _ = buf.WriteString(match.NormalizeTeamName(snapshot.HomeTeam))
	_, _ = buf.WriteString(" ")
	_, _ = buf.WriteString(strconv.Itoa(snapshot.HomeScore))
	_, _ = buf.WriteString("-")
	_, _ = buf.WriteString(strconv.Itoa(snapshot.AwayScore))
	_, _ = buf.WriteString(" ")
	_, _ = buf.WriteString(match.NormalizeTeamName(snapshot.AwayTeam))
	_, _ = buf.WriteString("**")

	switch snapshot.Status {
	case match.StatusInPlay:
		if snapshot.Minute != nil {
			_, _ = buf.WriteString(" (")
			_, _ = buf.WriteString(strconv.Itoa(*snapshot.Minute))
			_, _ = buf.WriteString("')")
		} else {
			_, _ = buf.WriteString(" (live)")
		}
	case match.StatusPaused:
		_, _ = buf.WriteString(" (HT)")
	case match.StatusFinished:
		_, _ = buf.WriteString(" (FT)")
	case match.StatusPostponed:
		_, _ = buf.WriteString(" (postponed)")
	case match.StatusCancelled:
		_, _ = buf.WriteString(" (cancelled)")
	}
	return buf.String()
}
