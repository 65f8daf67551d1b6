package cli

import (
	"context"
	"fmt"

	"github.com/grantcarthew/cdpctl/internal/browser"
	"github.com/grantcarthew/cdpctl/internal/cdp"
)

// dialTarget resolves a target identifier (or raw ws:// URL) and opens
// a CDP client against it.
func dialTarget(ctx context.Context, idOrURL string) (*cdp.Client, error) {
	wsURL, err := browser.ResolveWebSocketURL(ctx, Host, Port, idOrURL)
	if err != nil {
		return nil, err
	}
	debugf("dialing %s", wsURL)
	return cdp.Dial(ctx, wsURL)
}

// enableDomains enables CDP domains one at a time, awaiting each
// response before issuing the next. Observations that depend on a
// domain must not race its enabling call.
func enableDomains(ctx context.Context, client *cdp.Client, domains ...string) error {
	for _, domain := range domains {
		if _, err := client.CallContext(ctx, domain+".enable", map[string]any{}); err != nil {
			return fmt.Errorf("enable %s: %w", domain, err)
		}
	}
	return nil
}
