package hooks

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/packforge/packforge/internal/config"
	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

// Manager resolves configured hook names into ReleaseHook instances.
// Builtin names are matched first; anything else loads an executable of
// that name from the hooks directory as an external plugin process.
type Manager struct {
	cfg     *config.Config
	logger  *log.Logger
	plogger hclog.Logger

	mu      sync.Mutex
	clients []*goplugin.Client
}

// NewManager creates a hook manager for cfg.
func NewManager(cfg *config.Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		plogger: hclog.New(&hclog.LoggerOptions{
			Name:   "hook",
			Level:  hclog.Warn,
			Output: os.Stderr,
		}),
	}
}

// BuiltinNames lists the hooks that ship with the tool.
func BuiltinNames() []string {
	return []string{CommandHookName, RecordHookName}
}

// Load resolves names in declaration order. Loading stops at the first
// failure; hooks must be resolvable before a build or release starts,
// not midway through one.
func (m *Manager) Load(names []string) ([]ReleaseHook, error) {
	const op = "hooks.Load"

	hooks := make([]ReleaseHook, 0, len(names))
	for _, name := range names {
		h, err := m.load(name)
		if err != nil {
			return nil, pferrors.PluginWrap(err, op, fmt.Sprintf("failed to load hook %q", name))
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

func (m *Manager) load(name string) (ReleaseHook, error) {
	switch name {
	case CommandHookName:
		return newCommandHook(m.cfg.Hooks.Command, m.logger), nil
	case RecordHookName:
		return newRecordHook(m.logger), nil
	}
	return m.loadPlugin(name)
}

func (m *Manager) loadPlugin(name string) (ReleaseHook, error) {
	const op = "hooks.loadPlugin"

	path, err := m.findExecutable(name)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("loading hook plugin", "name", name, "path", path)

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  hook.Handshake,
		Plugins:          hook.PluginMap,
		Cmd:              exec.Command(path), // #nosec G204 -- path comes from the configured hooks directory
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger:           m.plogger.Named(name),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, pferrors.PluginWrap(err, op, "failed to start hook process")
	}

	raw, err := rpcClient.Dispense(hook.PluginName)
	if err != nil {
		client.Kill()
		return nil, pferrors.PluginWrap(err, op, "failed to dispense hook")
	}

	impl, ok := raw.(hook.Hook)
	if !ok {
		client.Kill()
		return nil, pferrors.Plugin(op, "executable does not serve the hook interface")
	}

	m.mu.Lock()
	m.clients = append(m.clients, client)
	m.mu.Unlock()

	return &pluginHook{name: name, client: client, impl: impl}, nil
}

// findExecutable locates the plugin binary for name under the hooks
// directory, either as the bare name or with a packforge-hook- prefix.
func (m *Manager) findExecutable(name string) (string, error) {
	const op = "hooks.findExecutable"

	dir := m.cfg.Hooks.Dir
	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, "packforge-hook-"+name),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		return candidate, nil
	}

	return "", pferrors.NotFound(op, fmt.Sprintf(
		"no hook named %q, expected a builtin (%s) or an executable under %s",
		name, strings.Join(BuiltinNames(), ", "), dir))
}

// Close terminates every plugin process started by the manager.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Kill()
	}
	m.clients = nil
}
