// Package config parses and validates the scheduler configuration document
// (spec §6): targets, job template lists, the working-directory pool, the
// queue pipeline, and the sinks and remote-branch poll selectors that tie
// them together.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/queue"
)

// ErrInvalidConfig is wrapped by every validation failure, so callers can
// distinguish a bad configuration document from any other load error.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// TargetSpec is one `targets[]` entry: a named benchmarking command and the
// custom parameters jobs may supply for it.
type TargetSpec struct {
	Name                    string            `yaml:"target_name"`
	Command                 string            `yaml:"command"`
	AllowedCustomParameters map[string]string `yaml:"allowed_custom_parameters,omitempty"`
}

// JobTemplate is one entry of a `job_template_lists` value: everything
// needed to instantiate a job.Record, apart from the counters that fall
// back to BenchmarkingJobSettings when unset.
type JobTemplate struct {
	Reason               string            `yaml:"reason"`
	TargetName           string            `yaml:"target_name"`
	PreCommand           string            `yaml:"pre_command,omitempty"`
	WorkingDirSubdir     string            `yaml:"working_dir_subdir,omitempty"`
	Commit               string            `yaml:"commit,omitempty"`
	CustomParameters     map[string]string `yaml:"custom_parameters,omitempty"`
	Priority             float64           `yaml:"priority,omitempty"`
	InitialCount         *int              `yaml:"initial_count,omitempty"`
	InitialErrorBudget   *int              `yaml:"initial_error_budget,omitempty"`
}

// Instantiate builds a fresh job.Record from t, falling back to defaults for
// any counter the template left unset.
func (t JobTemplate) Instantiate(defaults BenchmarkingJobSettings) job.Record {
	count := defaults.InitialCount
	if t.InitialCount != nil {
		count = *t.InitialCount
	}
	budget := defaults.InitialErrorBudget
	if t.InitialErrorBudget != nil {
		budget = *t.InitialErrorBudget
	}
	return job.Record{
		Reason: t.Reason,
		RunParameters: job.RunParameters{
			Commit:           t.Commit,
			CustomParameters: t.CustomParameters,
		},
		Command: job.Command{
			TargetName:       t.TargetName,
			PreCommand:       t.PreCommand,
			WorkingDirSubdir: t.WorkingDirSubdir,
		},
		Priority:             t.Priority,
		RemainingCount:       count,
		RemainingErrorBudget: budget,
	}
}

// BenchmarkingJobSettings supplies the counters a JobTemplate doesn't set
// for itself.
type BenchmarkingJobSettings struct {
	InitialCount       int `yaml:"initial_count"`
	InitialErrorBudget int `yaml:"initial_error_budget"`
}

// WorkingDirectoryPoolSpec configures the checkout slot pool (spec §4.5).
type WorkingDirectoryPoolSpec struct {
	Capacity int    `yaml:"capacity"`
	Root     string `yaml:"root"`
}

// NaiveTimeSpec is the document form of queue.NaiveTime.
type NaiveTimeSpec struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

func (n NaiveTimeSpec) toQueue() queue.NaiveTime {
	return queue.NaiveTime{Hour: n.Hour, Minute: n.Minute}
}

// QueueSpec is one `pipeline[]` entry: a queue name, its kind, and the
// kind-specific fields that kind needs.
type QueueSpec struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Priority *float64       `yaml:"priority,omitempty"`
	From     *NaiveTimeSpec `yaml:"from,omitempty"`
	To       *NaiveTimeSpec `yaml:"to,omitempty"`
}

const (
	kindImmediately         = "immediately"
	kindLocalNaiveTimeWindow = "local_naive_time_window"
	kindGraveYard           = "graveyard"
)

// Build constructs the queue.Kind this spec describes.
func (s QueueSpec) Build() (queue.Kind, error) {
	switch s.Kind {
	case kindImmediately:
		q := queue.NewImmediately(s.Name)
		if s.Priority != nil {
			q.Priority = *s.Priority
		}
		return q, nil
	case kindLocalNaiveTimeWindow:
		if s.From == nil || s.To == nil {
			return nil, fmt.Errorf("%w: pipeline queue %q: local_naive_time_window requires from and to", ErrInvalidConfig, s.Name)
		}
		q := queue.NewLocalNaiveTimeWindow(s.Name, s.From.toQueue(), s.To.toQueue())
		if s.Priority != nil {
			q.Priority = *s.Priority
		}
		return q, nil
	case kindGraveYard:
		return queue.NewGraveYard(s.Name), nil
	default:
		return nil, fmt.Errorf("%w: pipeline queue %q: unknown kind %q", ErrInvalidConfig, s.Name, s.Kind)
	}
}

// TemplateSelector is `Ref(name) | Val([JobTemplate])` (spec §6): a scalar
// node names a job_template_lists entry to share, a sequence node is an
// inline template list.
type TemplateSelector struct {
	Ref string
	Val []JobTemplate
}

// UnmarshalYAML implements yaml.Unmarshaler, dispatching on the node kind.
func (s *TemplateSelector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Ref)
	}
	return node.Decode(&s.Val)
}

// MarshalYAML implements yaml.Marshaler, round-tripping whichever arm is set.
func (s TemplateSelector) MarshalYAML() (interface{}, error) {
	if s.Val != nil {
		return s.Val, nil
	}
	return s.Ref, nil
}

// Resolve returns the concrete template list s selects, looking Ref up in
// lists when set.
func (s TemplateSelector) Resolve(lists map[string][]JobTemplate) ([]JobTemplate, error) {
	if s.Val != nil {
		return s.Val, nil
	}
	templates, ok := lists[s.Ref]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job_template_list %q", ErrInvalidConfig, s.Ref)
	}
	return templates, nil
}

// RemoteRepositorySpec configures polling of remote branches for new jobs.
type RemoteRepositorySpec struct {
	RemoteBranchNamesForPoll map[string]TemplateSelector `yaml:"remote_branch_names_for_poll,omitempty"`
}

// Document is the full configuration document (spec §6).
type Document struct {
	Targets                 []TargetSpec             `yaml:"targets"`
	JobTemplateLists        map[string][]JobTemplate `yaml:"job_template_lists,omitempty"`
	BenchmarkingJobSettings BenchmarkingJobSettings  `yaml:"benchmarking_job_settings"`
	WorkingDirectoryPool    WorkingDirectoryPoolSpec `yaml:"working_directory_pool"`
	Pipeline                []QueueSpec              `yaml:"pipeline"`
	FinishedSink            string                   `yaml:"finished_sink,omitempty"`
	ErrorSink               string                   `yaml:"error_sink,omitempty"`
	RemoteRepository        RemoteRepositorySpec     `yaml:"remote_repository,omitempty"`
	StateRoot               string                   `yaml:"state_root,omitempty"`

	// IncludePointEvents and SubtractFlushTiming resolve the open questions
	// spec §9 leaves as configuration rather than hardcoded choices.
	IncludePointEvents  bool `yaml:"include_point_events,omitempty"`
	SubtractFlushTiming bool `yaml:"subtract_flush_timing,omitempty"`
}

const (
	envStateRoot           = "EVOBENCH_STATE_ROOT"
	envWorkdirRoot          = "EVOBENCH_WORKDIR_ROOT"
	envWorkdirCapacity      = "EVOBENCH_WORKDIR_CAPACITY"
	envIncludePointEvents   = "EVOBENCH_INCLUDE_POINT_EVENTS"
	envSubtractFlushTiming  = "EVOBENCH_SUBTRACT_FLUSH_TIMING"
)

var lookupEnv = os.LookupEnv

func defaultStateRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".evobenchd")
}

func defaultDocument() Document {
	return Document{
		StateRoot: defaultStateRoot(),
		BenchmarkingJobSettings: BenchmarkingJobSettings{
			InitialCount:       1,
			InitialErrorBudget: 3,
		},
	}
}

// Load reads the configuration document at path, overlaying it on defaults
// and then on environment overrides, and validates the result. An empty
// path yields defaults plus environment overrides only, same as the
// teacher's no-config-file daemon mode.
func Load(path string) (Document, error) {
	doc := defaultDocument()

	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Document{}, fmt.Errorf("config: read %q: %w", trimmed, err)
			}
		} else if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("config: decode %q: %w", trimmed, err)
		}
	}

	applyEnvOverrides(&doc)

	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func applyEnvOverrides(doc *Document) {
	doc.StateRoot = envString(envStateRoot, doc.StateRoot)
	doc.WorkingDirectoryPool.Root = envString(envWorkdirRoot, doc.WorkingDirectoryPool.Root)
	doc.WorkingDirectoryPool.Capacity = envInt(envWorkdirCapacity, doc.WorkingDirectoryPool.Capacity)
	doc.IncludePointEvents = envBool(envIncludePointEvents, doc.IncludePointEvents)
	doc.SubtractFlushTiming = envBool(envSubtractFlushTiming, doc.SubtractFlushTiming)
}

func envString(key, fallback string) string {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func envInt(key string, fallback int) int {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate enforces the referential and structural invariants spec §7
// classifies as configuration errors: unknown target_name, unknown queue
// name in pipeline, malformed queue specs, and similar.
func (d Document) Validate() error {
	targetNames := make(map[string]bool, len(d.Targets))
	for i, t := range d.Targets {
		if t.Name == "" {
			return fmt.Errorf("%w: targets[%d]: target_name required", ErrInvalidConfig, i)
		}
		if targetNames[t.Name] {
			return fmt.Errorf("%w: targets[%d]: duplicate target_name %q", ErrInvalidConfig, i, t.Name)
		}
		targetNames[t.Name] = true
	}

	queueNames := make(map[string]bool, len(d.Pipeline))
	for i, q := range d.Pipeline {
		if q.Name == "" {
			return fmt.Errorf("%w: pipeline[%d]: name required", ErrInvalidConfig, i)
		}
		if queueNames[q.Name] {
			return fmt.Errorf("%w: pipeline[%d]: duplicate queue name %q", ErrInvalidConfig, i, q.Name)
		}
		queueNames[q.Name] = true
		if _, err := q.Build(); err != nil {
			return err
		}
	}

	if d.FinishedSink != "" && !queueNames[d.FinishedSink] {
		return fmt.Errorf("%w: finished_sink references unknown queue %q", ErrInvalidConfig, d.FinishedSink)
	}
	if d.ErrorSink != "" && !queueNames[d.ErrorSink] {
		return fmt.Errorf("%w: error_sink references unknown queue %q", ErrInvalidConfig, d.ErrorSink)
	}

	for listName, templates := range d.JobTemplateLists {
		for i, tmpl := range templates {
			if tmpl.TargetName != "" && !targetNames[tmpl.TargetName] {
				return fmt.Errorf("%w: job_template_lists[%q][%d]: unknown target_name %q", ErrInvalidConfig, listName, i, tmpl.TargetName)
			}
		}
	}

	for branch, selector := range d.RemoteRepository.RemoteBranchNamesForPoll {
		if selector.Ref == "" {
			continue
		}
		if _, ok := d.JobTemplateLists[selector.Ref]; !ok {
			return fmt.Errorf("%w: remote_repository.remote_branch_names_for_poll[%q]: unknown job_template_list %q", ErrInvalidConfig, branch, selector.Ref)
		}
	}

	if d.WorkingDirectoryPool.Capacity <= 0 {
		return fmt.Errorf("%w: working_directory_pool.capacity must be positive", ErrInvalidConfig)
	}

	return nil
}

// BuildPipeline constructs the ordered queue.Kind list the document's
// pipeline describes, in document order.
func (d Document) BuildPipeline() ([]queue.Kind, error) {
	kinds := make([]queue.Kind, 0, len(d.Pipeline))
	for _, spec := range d.Pipeline {
		kind, err := spec.Build()
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// TargetByName looks up a configured target, returning ok=false when absent.
func (d Document) TargetByName(name string) (TargetSpec, bool) {
	for _, t := range d.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetSpec{}, false
}
