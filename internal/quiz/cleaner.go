package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/cascadia"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

// DefaultSelectors match the navigation, grading widgets and answer
// decorations of a submission-history page.
var DefaultSelectors = []string{
	"#content > div.grade-by-question-warning",
	"#content > div.quiz-nav.pagination",
	"#content > div.quizzes-speedgrader-padding",
	"#content > header > h2 > a",
	"#speed_update_scores_container",
	"#update_history_form > div > div.alert",
	"#update_history_form > div > div.quiz_duration",
	"#update_history_form > div > div.quiz_score",
	"div.answer_group",
	"div.answers_wrapper",
	"div.eesy.eesy-tab2-container",
	"div.quiz_comment",
	"div.user_points",
	"span.answer_arrow",
}

// ClassResetSelector matches the questions container, whose classes
// constrain its width.
const ClassResetSelector = "#questions"

// Cleaner removes page elements before printing. Every selector is
// validated when the Cleaner is built.
type Cleaner struct {
	remove []string
	reset  []string

	removeSel cascadia.SelectorGroup
	resetSel  cascadia.SelectorGroup
}

// NewCleaner returns a Cleaner that deletes elements matching remove and
// clears the class attribute of elements matching reset.
func NewCleaner(remove, reset []string) (*Cleaner, error) {
	c := &Cleaner{
		remove: append([]string{}, remove...),
		reset:  append([]string{}, reset...),
	}
	var err error
	if c.removeSel, err = compile(remove); err != nil {
		return nil, err
	}
	if c.resetSel, err = compile(reset); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultCleaner returns the Cleaner for submission-history pages.
func DefaultCleaner() *Cleaner {
	c, err := NewCleaner(DefaultSelectors, []string{ClassResetSelector})
	if err != nil {
		panic(err)
	}
	return c
}

func compile(selectors []string) (cascadia.SelectorGroup, error) {
	group := make(cascadia.SelectorGroup, 0, len(selectors))
	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("quiz: invalid selector %q: %w", s, err)
		}
		group = append(group, sel)
	}
	return group, nil
}

// script returns JavaScript that applies the cleanup to the live document
// and evaluates to the number of elements removed.
func (c *Cleaner) script() string {
	remove, _ := json.Marshal(c.remove)
	reset, _ := json.Marshal(c.reset)
	return fmt.Sprintf(`(() => {
	let removed = 0;
	for (const s of %s) {
		document.querySelectorAll(s).forEach(e => {
			if (e.isConnected) { e.remove(); removed++; }
		});
	}
	for (const s of %s) {
		document.querySelectorAll(s).forEach(e => e.removeAttribute("class"));
	}
	return removed;
})()`, remove, reset)
}

// Clean applies the cleanup to the page loaded in r and returns how many
// elements were removed.
func (c *Cleaner) Clean(ctx context.Context, r Runner) (int, error) {
	var removed int
	if err := r.Run(ctx, chromedp.Evaluate(c.script(), &removed)); err != nil {
		return 0, fmt.Errorf("quiz: cleaning page: %w", err)
	}
	return removed, nil
}

// CleanHTML applies the same cleanup to a saved page read from r and writes
// the result to w. It returns how many elements were removed.
func (c *Cleaner) CleanHTML(r io.Reader, w io.Writer) (int, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, fmt.Errorf("quiz: parsing html: %w", err)
	}

	// Matches come in document order, so an ancestor is removed before any
	// match nested inside it; those nested matches are already gone.
	gone := make(map[*html.Node]bool)
	removed := 0
	for _, n := range cascadia.QueryAll(doc, c.removeSel) {
		if n.Parent == nil || insideAny(n, gone) {
			continue
		}
		n.Parent.RemoveChild(n)
		gone[n] = true
		removed++
	}
	for _, n := range cascadia.QueryAll(doc, c.resetSel) {
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Namespace != "" || a.Key != "class" {
				attrs = append(attrs, a)
			}
		}
		n.Attr = attrs
	}

	if err := html.Render(w, doc); err != nil {
		return removed, fmt.Errorf("quiz: rendering html: %w", err)
	}
	return removed, nil
}

func insideAny(n *html.Node, set map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if set[p] {
			return true
		}
	}
	return false
}
