package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// ExecResolver invokes an external solver binary. The request is written
// to the engine's stdin as JSON; the engine must exit zero and report the
// resolution outcome (including failures) as JSON on stdout. A nonzero
// exit means the engine itself malfunctioned.
type ExecResolver struct {
	command string
	args    []string
	timeout time.Duration
	logger  *log.Logger
}

// NewExecResolver creates a subprocess-backed resolver.
func NewExecResolver(command string, args []string, timeout time.Duration, logger *log.Logger) *ExecResolver {
	return &ExecResolver{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}
}

type execRequest struct {
	Requests     []string `json:"requests"`
	PackagePaths []string `json:"package_paths"`
	Building     bool     `json:"building"`
}

type execResponse struct {
	Status   string            `json:"status"`
	Resolved []ResolvedPackage `json:"resolved"`
	Environ  map[string]string `json:"environ"`
	Failure  string            `json:"failure"`
}

// Resolve implements Resolver.
func (r *ExecResolver) Resolve(ctx context.Context, req Request) (*BuildContext, error) {
	const op = "resolver.Resolve"

	if r.command == "" {
		return nil, pferrors.Config(op, "no resolver command configured")
	}

	payload := execRequest{
		Requests:     make([]string, len(req.Requirements)),
		PackagePaths: req.SearchPaths,
		Building:     req.Building,
	}
	for i, rq := range req.Requirements {
		payload.Requests[i] = string(rq)
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, pferrors.InternalWrap(err, op, "failed to encode resolve request")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Debug("invoking resolution engine",
		"command", r.command, "requests", len(payload.Requests), "building", req.Building)

	cmd := exec.CommandContext(ctx, r.command, r.args...) // #nosec G204 -- command comes from tool config
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, pferrors.ResolveWrap(ctx.Err(), op, "resolution engine timed out")
		}
		e := pferrors.ResolveWrap(err, op, "resolution engine failed")
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			e = e.WithDetail("stderr", msg)
		}
		return nil, e
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, pferrors.ResolveWrap(err, op, "unreadable resolution engine output")
	}
	if resp.Status == "" {
		return nil, pferrors.Resolve(op, "resolution engine reported no status")
	}

	bctx := &BuildContext{
		Status:             Status(resp.Status),
		Requests:           req.Requirements,
		SearchPaths:        req.SearchPaths,
		Building:           req.Building,
		CreatedAt:          time.Now().UTC(),
		Resolved:           resp.Resolved,
		Environ:            resp.Environ,
		FailureDescription: resp.Failure,
	}
	return bctx, nil
}

var _ Resolver = (*ExecResolver)(nil)

// Static is a fixed-outcome resolver. It backs tests and dry runs where
// no engine is available.
type Static struct {
	Context *BuildContext
	Err     error
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, req Request) (*BuildContext, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := *s.Context
	out.Requests = req.Requirements
	out.SearchPaths = req.SearchPaths
	out.Building = req.Building
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	return &out, nil
}

var _ Resolver = (*Static)(nil)
