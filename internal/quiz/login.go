package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// ErrNoCredentials is returned by Login when the username or password is empty.
var ErrNoCredentials = errors.New("quiz: username and password are required")

// Credentials for the single sign-on form.
type Credentials struct {
	Username string
	Password string
}

// LoginPage describes the site's sign-in flow: a landing page with a link
// to the identity provider, whose form has a username field, a password
// field and a submit button. Fields are CSS selectors.
type LoginPage struct {
	URL           string
	LinkText      string
	UsernameField string
	PasswordField string
	SubmitButton  string
}

// Login signs in through the page's single sign-on form. The session keeps
// the resulting cookies for later navigation.
func Login(ctx context.Context, r Runner, creds Credentials, page LoginPage) error {
	if creds.Username == "" || creds.Password == "" {
		return ErrNoCredentials
	}
	if err := r.Run(ctx, loginActions(creds, page)...); err != nil {
		return fmt.Errorf("quiz: logging in to %s: %w", page.URL, err)
	}
	return nil
}

func loginActions(creds Credentials, page LoginPage) []chromedp.Action {
	var actions []chromedp.Action
	actions = append(actions, chromedp.Navigate(page.URL))
	if page.LinkText != "" {
		actions = append(actions,
			chromedp.Click(linkXPath(page.LinkText), chromedp.BySearch, chromedp.NodeVisible))
	}
	return append(actions,
		chromedp.WaitVisible(page.UsernameField, chromedp.ByQuery),
		chromedp.SendKeys(page.UsernameField, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(page.PasswordField, creds.Password, chromedp.ByQuery),
		chromedp.Click(page.SubmitButton, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// linkXPath matches an anchor by its visible text.
func linkXPath(text string) string {
	return "//a[normalize-space(.)=" + xpathLiteral(strings.TrimSpace(text)) + "]"
}

// xpathLiteral quotes s as an XPath 1.0 string literal, which has no escapes.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}
