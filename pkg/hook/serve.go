package hook

import (
	"github.com/hashicorp/go-plugin"
)

// PluginName keys the hook implementation in the plugin map.
const PluginName = "hook"

// Handshake pairs hook binaries with hosts that speak the same protocol.
// The cookie guards against executing a stray binary from the hooks
// directory that is not a hook at all.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PACKFORGE_PLUGIN",
	MagicCookieValue: "packforge-hook-v1",
}

// PluginMap is the plugin set the host dispenses from.
var PluginMap = map[string]plugin.Plugin{
	PluginName: &HookPlugin{},
}

// Serve hands the hook implementation to the plugin runtime. A hook binary
// calls this from main and blocks until the host shuts it down.
func Serve(impl Hook) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &HookPlugin{Impl: impl},
		},
	})
}
