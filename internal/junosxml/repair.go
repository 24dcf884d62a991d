package junosxml

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// tagPattern matches open, close and self-closing tags. Declarations and
// processing instructions never match; tags quoted inside comments or CDATA
// do, so callers match against masked text.
var tagPattern = regexp.MustCompile(`<(/?)([A-Za-z_][\w.:-]*)((?:\s[^<>]*?)?)(/?)>`)

type tagPair struct {
	expected string // element on top of the open stack
	actual   string // closer actually found
}

// knownMismatches lists the closers Junos is known to emit while an inner
// element is still open. Only these get a synthetic closer.
var knownMismatches = map[tagPair]bool{
	{"model", "chassis-re-disk-module"}:                      true,
	{"model", "chassis-re-usb-module"}:                       true,
	{"model", "chassis-module"}:                              true,
	{"model", "chassis-sub-module"}:                          true,
	{"description", "chassis-module"}:                        true,
	{"description", "chassis-sub-module"}:                    true,
	{"description", "chassis-sub-sub-module"}:                true,
	{"serial-number", "chassis-sub-sub-module"}:              true,
	{"part-number", "chassis-sub-sub-module"}:                true,
	{"version", "chassis-sub-module"}:                        true,
	{"chassis-re-disk-module", "chassis-module"}:             true,
	{"chassis-re-usb-module", "chassis-module"}:              true,
	{"chassis-sub-module", "chassis-module"}:                 true,
	{"chassis-sub-sub-module", "chassis-sub-module"}:         true,
	{"chassis-sub-sub-sub-module", "chassis-sub-sub-module"}: true,
}

var (
	openPatternsMu sync.Mutex
	openPatterns   = map[string]*regexp.Regexp{}
)

// openTagPattern returns a regexp matching an opening tag for name,
// including its self-closing form (see countOpen).
func openTagPattern(name string) *regexp.Regexp {
	openPatternsMu.Lock()
	defer openPatternsMu.Unlock()
	if re, ok := openPatterns[name]; ok {
		return re
	}
	re := regexp.MustCompile(`<` + regexp.QuoteMeta(name) + `(?:\s[^<>]*)?>`)
	openPatterns[name] = re
	return re
}

// opaqueSpans are the sections whose content is not markup
var opaqueSpans = []struct{ open, close string }{
	{"<!--", "-->"},
	{"<![CDATA[", "]]>"},
}

// mask blanks the inside of comments and CDATA sections, keeping every
// offset, so tag scans only see real markup. An unterminated section runs
// to the end.
func mask(s string) string {
	if !strings.Contains(s, "<!") {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] != '<' {
			continue
		}
		for _, sp := range opaqueSpans {
			if !strings.HasPrefix(s[i:], sp.open) {
				continue
			}
			start := i + len(sp.open)
			end := len(s)
			if j := strings.Index(s[start:], sp.close); j >= 0 {
				end = start + j
			}
			for k := start; k < end; k++ {
				b[k] = ' '
			}
			i = end - 1
			break
		}
	}
	return string(b)
}

// openPositions returns the offsets of non self-closing opening tags for name
func openPositions(s, name string) []int {
	s = mask(s)
	var out []int
	for _, loc := range openTagPattern(name).FindAllStringIndex(s, -1) {
		if s[loc[1]-2] == '/' {
			continue
		}
		out = append(out, loc[0])
	}
	return out
}

func countOpen(s, name string) int {
	return len(openPositions(s, name))
}

func countClose(s, name string) int {
	return strings.Count(mask(s), "</"+name+">")
}

// RepairMismatched walks the tags of s once and, when a closer does not
// match the innermost open element but the pair is a known Junos defect,
// inserts the missing closer in front of it.
func RepairMismatched(s string, log logrus.FieldLogger) string {
	masked := mask(s)
	matches := tagPattern.FindAllStringSubmatchIndex(masked, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	var stack []string
	last, repaired := 0, 0

	for _, m := range matches {
		closing := m[3] > m[2]
		name := masked[m[4]:m[5]]
		if m[9] > m[8] {
			continue
		}
		if !closing {
			stack = append(stack, name)
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1] != name {
			top := stack[len(stack)-1]
			if !knownMismatches[tagPair{expected: top, actual: name}] {
				break
			}
			b.WriteString(s[last:m[0]])
			b.WriteString("</" + top + ">")
			last = m[0]
			stack = stack[:len(stack)-1]
			repaired++
			log.WithFields(logrus.Fields{"expected": top, "found": name, "offset": m[0]}).
				Debug("inserted closer for mismatched tag")
		}

		// an unknown mismatch resyncs on the matching ancestor, text untouched
		if idx := lastIndexOf(stack, name); idx >= 0 {
			stack = stack[:idx]
		}
	}

	if repaired == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func lastIndexOf(stack []string, name string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == name {
			return i
		}
	}
	return -1
}

// insertion anchors for missing chassis-module closers, earliest wins
var balanceAnchors = []string{"</chassis-inventory>", "</chassis>", "</inventory>", "</fpc-information>"}

// BalanceChassisModules adds the </chassis-module> closers needed to make
// opens and closes equal. They go in front of the first container closer
// that follows the last unclosed opening, else before </rpc-reply>, else at
// the end. Balanced input comes back unchanged.
func BalanceChassisModules(s string, log logrus.FieldLogger) string {
	const closer = "</chassis-module>"

	masked := mask(s)
	opens := openPositions(masked, "chassis-module")
	missing := len(opens) - strings.Count(masked, closer)
	if missing <= 0 {
		return s
	}

	unclosed := unclosedModules(masked, opens)
	after := opens[len(opens)-1]
	if len(unclosed) > 0 {
		after = unclosed[len(unclosed)-1]
	}

	at := -1
	for _, anchor := range balanceAnchors {
		if i := strings.Index(masked[after:], anchor); i >= 0 && (at < 0 || after+i < at) {
			at = after + i
		}
	}
	anchor := "container"
	if at < 0 {
		if i := strings.Index(masked[after:], rpcClose); i >= 0 {
			at, anchor = after+i, "rpc-reply"
		} else {
			at, anchor = len(s), "end"
		}
	}

	log.WithFields(logrus.Fields{
		"missing":   missing,
		"unclosed":  len(unclosed),
		"offset":    at,
		"placement": anchor,
	}).Debug("balanced chassis-module tags")

	return s[:at] + strings.Repeat(closer, missing) + s[at:]
}

// unclosedModules pairs opens with closes in document order and returns the
// offsets of opens left on the stack.
func unclosedModules(s string, opens []int) []int {
	type event struct {
		pos  int
		open bool
	}
	events := make([]event, 0, len(opens)*2)
	for _, p := range opens {
		events = append(events, event{pos: p, open: true})
	}
	for off := 0; ; {
		i := strings.Index(s[off:], "</chassis-module>")
		if i < 0 {
			break
		}
		events = append(events, event{pos: off + i})
		off += i + 1
	}
	sort.Slice(events, func(i, j int) bool { return events[i].pos < events[j].pos })

	var stack []int
	for _, e := range events {
		if e.open {
			stack = append(stack, e.pos)
		} else if len(stack) > 0 {
			stack = stack[:len(stack)-1]
		}
	}
	return stack
}
