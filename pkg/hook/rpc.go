package hook

import (
	"errors"
	"fmt"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// HookPlugin is the go-plugin adapter exposing a Hook over net/rpc.
type HookPlugin struct {
	// Impl is the hook served by the plugin process. Unused on the
	// host side.
	Impl Hook
}

// Server implements plugin.Plugin.
func (p *HookPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

// Client implements plugin.Plugin.
func (p *HookPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// InvokeArgs is the wire request for a hook invocation.
type InvokeArgs struct {
	Event   Event
	Context Context
}

// InvokeReply is the wire response for a hook invocation. Errors travel
// as values so the veto distinction survives the process boundary.
type InvokeReply struct {
	// Cancelling marks the failure as a veto.
	Cancelling bool
	// Message is the failure message, empty on success.
	Message string
}

// RPCServer runs inside the plugin process and dispatches invocations
// to the hook implementation.
type RPCServer struct {
	Impl Hook
}

// Name returns the hook's name.
func (s *RPCServer) Name(_ interface{}, reply *string) error {
	*reply = s.Impl.Name()
	return nil
}

// Handle invokes the hook and encodes its outcome.
func (s *RPCServer) Handle(args InvokeArgs, reply *InvokeReply) error {
	err := s.Impl.Handle(args.Event, args.Context)
	if err == nil {
		return nil
	}

	var cancel *CancelError
	if errors.As(err, &cancel) {
		reply.Cancelling = true
		reply.Message = cancel.Message
		return nil
	}
	reply.Message = err.Error()
	return nil
}

// RPCClient runs inside the host process and forwards invocations to
// the plugin.
type RPCClient struct {
	client *rpc.Client
}

// Name implements Hook. A transport failure yields an empty name, which
// the host treats as a failed load.
func (c *RPCClient) Name() string {
	var name string
	if err := c.client.Call("Plugin.Name", new(interface{}), &name); err != nil {
		return ""
	}
	return name
}

// Handle implements Hook. Veto and failure outcomes come back as
// CancelError and RemoteError values; any other error is a transport
// failure.
func (c *RPCClient) Handle(event Event, hctx Context) error {
	args := InvokeArgs{Event: event, Context: hctx}
	var reply InvokeReply
	if err := c.client.Call("Plugin.Handle", args, &reply); err != nil {
		return fmt.Errorf("hook rpc: %w", err)
	}

	if reply.Cancelling {
		return &CancelError{Message: reply.Message}
	}
	if reply.Message != "" {
		return &RemoteError{Message: reply.Message}
	}
	return nil
}

var _ Hook = (*RPCClient)(nil)
