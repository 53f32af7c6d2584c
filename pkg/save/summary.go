package save

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	md "github.com/nao1215/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/collection/pkg/items"
	"github.com/agentstation/collection/pkg/reconciler"
)

// renderSummary returns the markdown review summary of a run.
func renderSummary(result *reconciler.Result, mode Mode) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSummary(&buf, result, mode); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSummary(w io.Writer, result *reconciler.Result, mode Mode) error {
	doc := md.NewMarkdown(w)
	caser := cases.Title(language.English)

	doc.H1("Collection review").LF()
	doc.PlainTextf("Run %s, mode %s.", md.Code(result.Metadata.RunID), md.Bold(mode.String())).LF().LF()

	rows := make([][]string, 0, len(result.Buckets))
	for _, b := range result.Buckets {
		rows = append(rows, []string{
			b.Partner,
			strconv.Itoa(len(b.Passed)),
			strconv.Itoa(len(b.Pending)),
			strconv.Itoa(len(b.New)),
			strconv.Itoa(len(b.Removed)),
		})
	}
	rows = append(rows, []string{
		md.Bold("total"),
		strconv.Itoa(len(result.Passed)),
		strconv.Itoa(len(result.Pending)),
		strconv.Itoa(len(result.New)),
		strconv.Itoa(len(result.Removed)),
	})
	doc.Table(md.TableSet{
		Header: []string{"Partner", "Passed", "Pending", "New", "Removed"},
		Rows:   rows,
	})

	if !result.HasChanges() {
		doc.PlainText("No new or removed items.").LF()
	}

	newByType := reconciler.GroupByType(result.New)
	removedByType := reconciler.GroupByType(result.Removed)
	pendingByType := reconciler.GroupByType(result.Pending)
	for _, t := range items.Types() {
		if len(newByType[t])+len(removedByType[t])+len(pendingByType[t]) == 0 {
			continue
		}
		doc.H2(caser.String(string(t)) + "s").LF()
		idList(doc, "New", newByType[t])
		idList(doc, "Removed", removedByType[t])
		idList(doc, "Pending", pendingByType[t])
	}

	if len(result.Carried) > 0 {
		doc.H2("Carried over").LF()
		doc.PlainText("These partners were not fetched; their previous buckets were kept.").LF()
		doc.BulletList(result.Carried...)
	}
	if len(result.Skipped) > 0 {
		doc.H2("Skipped").LF()
		lines := make([]string, len(result.Skipped))
		for i, s := range result.Skipped {
			lines[i] = fmt.Sprintf("%s %s: %s", s.Partner, md.Code(s.ID), s.Reason)
		}
		doc.BulletList(lines...)
	}
	return doc.Build()
}

func idList(doc *md.Markdown, title string, list []items.Item) {
	if len(list) == 0 {
		return
	}
	doc.H3(fmt.Sprintf("%s (%d)", title, len(list))).LF()
	ids := make([]string, len(list))
	for i, it := range list {
		ids[i] = md.Code(it.ID)
	}
	doc.BulletList(ids...)
}
