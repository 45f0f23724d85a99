// Package main implements the generic webhook hook plugin for Packforge.
// It posts every life-cycle event to the endpoint named by the
// PACKFORGE_WEBHOOK_URL environment variable as a JSON document.
package main

import (
	"github.com/packforge/packforge/pkg/hook"
)

func main() {
	hook.Serve(&WebhookHook{})
}
