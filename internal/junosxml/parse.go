package junosxml

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RootTag wraps merged and salvaged documents
const RootTag = "root"

// salvage candidates for the single-document fallback, tried in order
var salvageTags = []string{
	"chassis-module",
	"fpc",
	"pic-detail",
	"physical-interface",
	"alarm-detail",
	"interface",
	"chassis-sub-module",
}

var declPattern = regexp.MustCompile(`<\?xml[^>]*\?>`)

// Parse repairs and parses the fragments produced by Extract into one
// document. It returns nil when nothing parses; failures only reach the log.
func Parse(fragments []string, log logrus.FieldLogger) (doc *etree.Document) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("xml parse aborted")
			doc = nil
		}
	}()

	var blocks []string
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			blocks = append(blocks, f)
		}
	}

	switch len(blocks) {
	case 0:
		return nil
	case 1:
		return parseSingle(blocks[0], log)
	}

	merged := etree.NewDocument()
	root := merged.CreateElement(RootTag)
	parsed := 0
	for i, block := range blocks {
		d, err := parseString(repair(block, log))
		if err != nil {
			log.WithFields(logrus.Fields{"block": i, "error": err}).Debug("reply failed to parse, salvaging chassis modules")
			d = salvageModules(block, log)
		}
		if d == nil {
			log.WithField("block", i).Debug("reply dropped, nothing salvageable")
			continue
		}
		for _, el := range d.ChildElements() {
			root.AddChild(el.Copy())
		}
		parsed++
	}
	if parsed == 0 {
		return nil
	}
	log.WithFields(logrus.Fields{"replies": len(blocks), "parsed": parsed}).Debug("merged replies under synthetic root")
	return merged
}

// Load runs Extract then Parse over a raw capture
func Load(raw string, log logrus.FieldLogger) *etree.Document {
	return Parse(Extract(raw, log), log)
}

func repair(s string, log logrus.FieldLogger) string {
	return BalanceChassisModules(RepairMismatched(s, log), log)
}

func parseSingle(block string, log logrus.FieldLogger) *etree.Document {
	doc, err := parseString(repair(block, log))
	if err == nil {
		return doc
	}
	log.WithField("error", err).Debug("document failed to parse after repair, salvaging known elements")

	var found []string
	var taken [][2]int
	for _, tag := range salvageTags {
		for _, loc := range elementPattern(tag).FindAllStringIndex(block, -1) {
			if within(taken, loc) {
				continue
			}
			candidate := block[loc[0]:loc[1]]
			if _, err := parseString(wrapRoot(candidate)); err != nil {
				continue
			}
			found = append(found, candidate)
			taken = append(taken, [2]int{loc[0], loc[1]})
		}
	}
	if len(found) == 0 {
		log.Debug("no salvageable elements found")
		return nil
	}

	doc, err = parseString(wrapRoot(strings.Join(found, "\n")))
	if err != nil {
		log.WithField("error", err).Debug("salvaged elements failed to parse together")
		return nil
	}
	log.WithField("elements", len(found)).Debug("salvaged elements under synthetic root")
	return doc
}

// salvageModules rebuilds a minimal chassis inventory from the chassis-module
// blocks of a reply that would not parse.
func salvageModules(block string, log logrus.FieldLogger) *etree.Document {
	var kept []string
	for _, candidate := range elementPattern("chassis-module").FindAllString(block, -1) {
		if _, err := parseString(wrapRoot(candidate)); err != nil {
			log.WithField("error", err).Debug("discarding unparseable chassis-module block")
			continue
		}
		kept = append(kept, candidate)
	}
	if len(kept) == 0 {
		return nil
	}
	synthetic := "<rpc-reply><chassis-inventory><chassis>" + strings.Join(kept, "\n") + "</chassis></chassis-inventory></rpc-reply>"
	doc, err := parseString(synthetic)
	if err != nil {
		log.WithField("error", err).Debug("synthetic chassis inventory failed to parse")
		return nil
	}
	log.WithField("modules", len(kept)).Debug("rebuilt chassis inventory from salvaged modules")
	return doc
}

func parseString(s string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Entity = xml.HTMLEntity
	doc.ReadSettings.ValidateInput = true
	if err := doc.ReadFromString(declPattern.ReplaceAllString(s, "")); err != nil {
		return nil, errors.Wrap(err, "parse xml")
	}
	if doc.Root() == nil {
		return nil, errors.New("parse xml: no root element")
	}
	return doc, nil
}

func wrapRoot(s string) string {
	return fmt.Sprintf("<%s>%s</%s>", RootTag, s, RootTag)
}

// elementPattern lazily matches a whole element by name. It relies on the
// element not nesting itself, which holds for every salvage candidate.
func elementPattern(name string) *regexp.Regexp {
	key := "element:" + name
	openPatternsMu.Lock()
	defer openPatternsMu.Unlock()
	if re, ok := openPatterns[key]; ok {
		return re
	}
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?s)<` + q + `(?:\s[^<>]*)?>.*?</` + q + `>`)
	openPatterns[key] = re
	return re
}

func within(spans [][2]int, loc []int) bool {
	for _, sp := range spans {
		if loc[0] >= sp[0] && loc[1] <= sp[1] {
			return true
		}
	}
	return false
}
