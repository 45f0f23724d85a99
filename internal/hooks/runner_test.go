package hooks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/pkg/hook"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

// stubHook records every delivered event into a shared journal and fails
// with the configured error for an event, if any.
type stubHook struct {
	name    string
	errs    map[hook.Event]error
	journal *[]string
	last    hook.Context
}

func (s *stubHook) Name() string { return s.name }

func (s *stubHook) record(event hook.Event, hctx hook.Context) error {
	if s.journal != nil {
		*s.journal = append(*s.journal, s.name+":"+string(event))
	}
	s.last = hctx
	return s.errs[event]
}

func (s *stubHook) PreBuild(_ context.Context, hctx hook.Context) error {
	return s.record(hook.EventPreBuild, hctx)
}

func (s *stubHook) PreRelease(_ context.Context, hctx hook.Context) error {
	return s.record(hook.EventPreRelease, hctx)
}

func (s *stubHook) PostRelease(_ context.Context, hctx hook.Context) error {
	return s.record(hook.EventPostRelease, hctx)
}

func (s *stubHook) ReleaseCancelled(_ context.Context, hctx hook.Context) error {
	return s.record(hook.EventReleaseCancelled, hctx)
}

func TestRunnerDeliversInOrder(t *testing.T) {
	var journal []string
	first := &stubHook{name: "first", journal: &journal}
	second := &stubHook{name: "second", journal: &journal}

	runner := NewRunner(discardLogger())
	hctx := hook.Context{PackageName: "maya", PackageVersion: "2024.1.0"}

	err := runner.Run(context.Background(), hook.EventPreRelease, []ReleaseHook{first, second}, hctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"first:pre_release", "second:pre_release"}, journal)
	assert.Equal(t, hctx, first.last)
	assert.Equal(t, hctx, second.last)
}

func TestRunnerCancellingHookAbortsRelease(t *testing.T) {
	var journal []string
	gate := &stubHook{
		name:    "gate",
		errs:    map[hook.Event]error{hook.EventPreRelease: pferrors.HookCancel("hooks.test", "release window closed")},
		journal: &journal,
	}
	after := &stubHook{name: "after", journal: &journal}

	runner := NewRunner(discardLogger())
	err := runner.Run(context.Background(), hook.EventPreRelease, []ReleaseHook{gate, after}, hook.Context{})
	require.Error(t, err)

	assert.True(t, pferrors.IsKind(err, pferrors.KindRelease))
	assert.Contains(t, err.Error(), `release cancelled by "gate" hook`)
	assert.Contains(t, err.Error(), "release window closed")
	assert.Equal(t, []string{"gate:pre_release"}, journal)
}

func TestRunnerCancellingHookNamesBuild(t *testing.T) {
	gate := &stubHook{
		name: "gate",
		errs: map[hook.Event]error{hook.EventPreBuild: pferrors.HookCancel("hooks.test", "nope")},
	}

	runner := NewRunner(discardLogger())
	err := runner.Run(context.Background(), hook.EventPreBuild, []ReleaseHook{gate}, hook.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `build cancelled by "gate" hook`)
}

func TestRunnerLogsEachFailureAndContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	var journal []string
	flaky := &stubHook{
		name:    "flaky",
		errs:    map[hook.Event]error{hook.EventPostRelease: pferrors.Plugin("hooks.test", "endpoint returned 503")},
		journal: &journal,
	}
	noisy := &stubHook{
		name:    "noisy",
		errs:    map[hook.Event]error{hook.EventPostRelease: pferrors.Plugin("hooks.test", "disk full")},
		journal: &journal,
	}
	quiet := &stubHook{name: "quiet", journal: &journal}

	runner := NewRunner(logger)
	err := runner.Run(context.Background(), hook.EventPostRelease, []ReleaseHook{flaky, noisy, quiet}, hook.Context{})
	require.NoError(t, err)

	assert.Equal(t, []string{"flaky:post_release", "noisy:post_release", "quiet:post_release"}, journal)

	// Each failure is logged with that hook's own error, not a shared one.
	var flakyLine, noisyLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "hook=flaky") {
			flakyLine = line
		}
		if strings.Contains(line, "hook=noisy") {
			noisyLine = line
		}
	}
	require.NotEmpty(t, flakyLine)
	require.NotEmpty(t, noisyLine)
	assert.Contains(t, flakyLine, "endpoint returned 503")
	assert.NotContains(t, flakyLine, "disk full")
	assert.Contains(t, noisyLine, "disk full")
	assert.NotContains(t, noisyLine, "endpoint returned 503")
}

func TestRunnerPropagatesBrokenHookErrors(t *testing.T) {
	var journal []string
	broken := &stubHook{
		name:    "broken",
		errs:    map[hook.Event]error{hook.EventPreRelease: errors.New("nil dereference in hook")},
		journal: &journal,
	}
	after := &stubHook{name: "after", journal: &journal}

	runner := NewRunner(discardLogger())
	err := runner.Run(context.Background(), hook.EventPreRelease, []ReleaseHook{broken, after}, hook.Context{})
	require.Error(t, err)

	assert.False(t, pferrors.IsDomain(err))
	assert.Equal(t, []string{"broken:pre_release"}, journal)
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var journal []string
	h := &stubHook{name: "h", journal: &journal}

	runner := NewRunner(discardLogger())
	err := runner.Run(ctx, hook.EventPreBuild, []ReleaseHook{h}, hook.Context{})
	require.Error(t, err)

	assert.True(t, pferrors.IsKind(err, pferrors.KindCanceled))
	assert.Empty(t, journal)
}
