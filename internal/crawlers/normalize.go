package crawlers

import (
	"regexp"
	"time"

	"github.com/bayue48/pia-scrap/internal/utils"
)

// Surface normalization is a declared table of pattern -> action rules run
// before and after navigations. Running it twice in a row is a no-op: every
// rule only acts when its trigger is still present.

type surfaceAction int

const (
	actionDismiss surfaceAction = iota
)

type surfaceRule struct {
	// pattern is a js-regex literal matched against element text.
	pattern string
	action  surfaceAction
	name    string
}

var surfaceRules = []surfaceRule{
	{pattern: `/^I agree$/i`, action: actionDismiss, name: "consent-i-agree"},
	{pattern: `/^Agree$/i`, action: actionDismiss, name: "consent-agree"},
	{pattern: `/^Accept$/i`, action: actionDismiss, name: "consent-accept"},
	{pattern: `/^Ok$/i`, action: actionDismiss, name: "consent-ok"},
	{pattern: `/^Close$/i`, action: actionDismiss, name: "dialog-close"},
}

var loginRoutePattern = regexp.MustCompile(`(?i)/auth|/login|/signin`)

// NormalizeSurface dismisses consent and overlay dialogs. Idempotent: rules
// whose trigger is absent do nothing.
func (b *Browser) NormalizeSurface() {
	for _, rule := range surfaceRules {
		switch rule.action {
		case actionDismiss:
			if b.clickByText(rule.pattern, 1*time.Second) {
				utils.Debugf("dismissed overlay: %s", rule.name)
				time.Sleep(300 * time.Millisecond)
			}
		}
	}
}

// LooksLoggedOut is the heuristic logged-out check: the page URL matches a
// login route, or a "Sign In" affordance is visible on the surface.
func (b *Browser) LooksLoggedOut() bool {
	if loginRoutePattern.MatchString(b.Location()) {
		return true
	}
	return b.hasVisibleText(`/^\s*Sign In\s*$/i`, 800*time.Millisecond)
}
