package hooks

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/fileutil"
	"github.com/packforge/packforge/pkg/hook"
)

// RecordHookName is the configuration name of the builtin record hook.
const RecordHookName = "record"

// RecordFileName is the file the record hook writes next to an installed
// release.
const RecordFileName = "release.yaml"

// releaseRecord is the document persisted alongside a released package.
type releaseRecord struct {
	Package          string    `yaml:"package"`
	Version          string    `yaml:"version"`
	User             string    `yaml:"user,omitempty"`
	Time             time.Time `yaml:"time"`
	Message          string    `yaml:"message,omitempty"`
	VCS              string    `yaml:"vcs,omitempty"`
	Revision         string    `yaml:"revision,omitempty"`
	TagName          string    `yaml:"tag_name,omitempty"`
	Changelog        string    `yaml:"changelog,omitempty"`
	PreviousVersion  string    `yaml:"previous_version,omitempty"`
	PreviousRevision string    `yaml:"previous_revision,omitempty"`
	Variants         []int     `yaml:"variants,omitempty"`
}

// recordHook persists a release record into the released package
// directory after a successful release. The release flow itself never
// writes records, so disabling this hook leaves releases unrecorded.
type recordHook struct {
	Base
	logger *log.Logger
	now    func() time.Time
}

func newRecordHook(logger *log.Logger) *recordHook {
	return &recordHook{logger: logger, now: time.Now}
}

func (h *recordHook) Name() string { return RecordHookName }

func (h *recordHook) PostRelease(_ context.Context, hctx hook.Context) error {
	const op = "hooks.record"

	if hctx.InstallPath == "" {
		return pferrors.Plugin(op, "no install path to record the release into")
	}

	record := releaseRecord{
		Package:          hctx.PackageName,
		Version:          hctx.PackageVersion,
		User:             hctx.User,
		Time:             h.now().UTC(),
		Message:          hctx.ReleaseMessage,
		VCS:              hctx.VCS,
		Revision:         hctx.Revision,
		TagName:          hctx.TagName,
		Changelog:        hctx.Changelog,
		PreviousVersion:  hctx.PreviousVersion,
		PreviousRevision: hctx.PreviousRevision,
		Variants:         hctx.Variants,
	}

	data, err := yaml.Marshal(&record)
	if err != nil {
		return pferrors.PluginWrap(err, op, "failed to encode release record")
	}

	path := filepath.Join(hctx.InstallPath, RecordFileName)
	if err := fileutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return pferrors.PluginWrap(err, op, "failed to write release record")
	}

	h.logger.Debug("wrote release record", "path", path)
	return nil
}
