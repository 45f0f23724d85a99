// Package main implements the Slack notification hook plugin for
// Packforge. It announces finished releases and reports cancelled ones
// to the channel behind the PACKFORGE_SLACK_WEBHOOK_URL incoming
// webhook.
package main

import (
	"github.com/packforge/packforge/pkg/hook"
)

func main() {
	hook.Serve(&SlackHook{})
}
