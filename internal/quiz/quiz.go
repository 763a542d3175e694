// Package quiz knows the quiz site: where a submission history lives, how
// to log in, and which parts of the page to strip before printing.
package quiz

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/chromedp/chromedp"
)

// Runner executes browser actions. *onepage.Session implements it.
type Runner interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
}

// HistoryURL returns the headless submission-history page of user for the
// given quiz.
func HistoryURL(base string, course, quiz, user int) string {
	q := url.Values{}
	q.Set("headless", "1")
	q.Set("user_id", strconv.Itoa(user))
	return fmt.Sprintf("%s/courses/%d/quizzes/%d/history?%s", base, course, quiz, q.Encode())
}

// OutputName is the file name an export is saved under: the quiz ID and
// the zero-padded user ID.
func OutputName(quiz, user int) string {
	return fmt.Sprintf("%d-%06d.pdf", quiz, user)
}
