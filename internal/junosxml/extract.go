// Package junosxml salvages Junos "| display xml" replies from raw terminal
// captures. Device output is frequently dirty: ANSI noise, several replies
// glued together, replies interleaved mid-element, and unbalanced tags. The
// package extracts candidate fragments, repairs the known defects, and
// parses whatever survives into a single DOM.
package junosxml

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

const rpcClose = "</rpc-reply>"

var (
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)
	rpcOpenPattern = regexp.MustCompile(`<rpc-reply(?:\s|>|/)`)

	// fallback roots tried in order when a capture carries no rpc-reply
	fallbackRoots = []string{"chassis", "configuration", "inventory", "fpc-information", "fpc"}

	// closers synthesized for a reply cut short by an interleaved one, innermost first
	danglingTags = []string{
		"chassis-sub-sub-sub-module",
		"chassis-sub-sub-module",
		"chassis-sub-module",
		"chassis-module",
		"chassis",
		"chassis-inventory",
	}
)

// Clean strips ANSI escape sequences and control characters other than
// newline and tab.
func Clean(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

// Extract returns the XML fragments found in a raw capture. Multiple
// concatenated rpc-reply documents come back as separate fragments. A nil
// result means the capture holds nothing resembling XML.
func Extract(raw string, log logrus.FieldLogger) []string {
	text := Clean(raw)

	starts := rpcOpenPattern.FindAllStringIndex(text, -1)
	switch {
	case len(starts) > 1:
		return splitReplies(text, log)
	case len(starts) == 1:
		start := starts[0][0]
		end := strings.Index(text[start:], rpcClose)
		if end < 0 {
			log.WithField("offset", start).Debug("rpc-reply never closed, keeping everything up to the last tag")
			block := trimToLastTag(text[start:])
			return []string{closeDangling(block, log)}
		}
		return []string{text[start : start+end+len(rpcClose)]}
	}

	for _, tag := range fallbackRoots {
		open := openTagPattern(tag).FindStringIndex(text)
		closeTag := "</" + tag + ">"
		end := strings.LastIndex(text, closeTag)
		if open == nil || end < open[0] {
			continue
		}
		log.WithField("root", tag).Debug("no rpc-reply found, using fallback root element")
		return []string{text[open[0] : end+len(closeTag)]}
	}

	first := strings.Index(text, "<")
	last := strings.LastIndex(text, ">")
	if first < 0 || last <= first {
		return nil
	}
	log.WithFields(logrus.Fields{"from": first, "to": last}).Debug("no known root element, using first '<' to last '>'")
	return []string{text[first : last+1]}
}

// splitReplies walks a capture holding several rpc-reply documents. A reply
// interrupted by the start of another is cut at that point and closed off.
func splitReplies(text string, log logrus.FieldLogger) []string {
	var blocks []string
	pos := 0
	for pos < len(text) {
		loc := rpcOpenPattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		body := start + len("<rpc-reply")

		closeAt := strings.Index(text[body:], rpcClose)
		nested := rpcOpenPattern.FindStringIndex(text[body:])

		if nested != nil && (closeAt < 0 || nested[0] < closeAt) {
			cut := body + nested[0]
			block := trimToLastTag(text[start:cut])
			log.WithFields(logrus.Fields{"start": start, "nested_at": cut}).
				Debug("rpc-reply interleaved with the next reply, splitting")
			blocks = append(blocks, closeDangling(block, log))
			pos = cut
			continue
		}
		if closeAt < 0 {
			log.WithField("start", start).Debug("last rpc-reply never closed")
			blocks = append(blocks, closeDangling(trimToLastTag(text[start:]), log))
			break
		}

		end := body + closeAt + len(rpcClose)
		blocks = append(blocks, text[start:end])
		pos = end
	}
	return blocks
}

// closeDangling appends closers for chassis containers left open, based on
// open/close counts, and closes the rpc-reply itself.
func closeDangling(block string, log logrus.FieldLogger) string {
	var b strings.Builder
	b.WriteString(block)
	for _, tag := range danglingTags {
		missing := countOpen(block, tag) - countClose(block, tag)
		for i := 0; i < missing; i++ {
			b.WriteString("</" + tag + ">")
		}
		if missing > 0 {
			log.WithFields(logrus.Fields{"tag": tag, "count": missing}).Debug("synthesized closing tags")
		}
	}
	if countOpen(block, "rpc-reply") > countClose(block, "rpc-reply") {
		b.WriteString(rpcClose)
	}
	return b.String()
}

func trimToLastTag(s string) string {
	if i := strings.LastIndex(s, ">"); i >= 0 {
		return s[:i+1]
	}
	return s
}
