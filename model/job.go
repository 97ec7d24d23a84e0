package model

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var jobNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job maps a route name to a fixed image and optional shell command.
type Job struct {
	Name     string            `yaml:"name" json:"name"`
	Image    string            `yaml:"image" json:"image"`
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"`
	Timeout  string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Schedule string            `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Argv returns the container command, or nil to use the image default.
func (j *Job) Argv() []string {
	if j.Command == "" {
		return nil
	}
	return []string{"sh", "-c", j.Command}
}

// TimeoutOr parses the job timeout, falling back to def when unset or invalid.
func (j *Job) TimeoutOr(def time.Duration) time.Duration {
	if j.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(j.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

type jobFile struct {
	Jobs []*Job `yaml:"jobs"`
}

// JobTable is the immutable, name-indexed set of runnable jobs.
type JobTable struct {
	order  []string
	byName map[string]*Job
}

// DefaultJobs mirrors the routes the service has always exposed.
func DefaultJobs() *JobTable {
	t, _ := NewJobTable([]*Job{
		{Name: "date", Image: "alpine", Command: "date"},
		{Name: "version", Image: "alpine", Command: "cat /etc/alpine-release"},
		{Name: "hello", Image: "hello-world"},
		{Name: "fail", Image: "dummy"},
	})
	return t
}

// NewJobTable validates jobs and indexes them by name.
func NewJobTable(jobs []*Job) (*JobTable, error) {
	t := &JobTable{byName: make(map[string]*Job, len(jobs))}
	var problems []string
	for i, j := range jobs {
		if j == nil {
			problems = append(problems, fmt.Sprintf("jobs[%d]: empty entry", i))
			continue
		}
		for _, f := range ValidateJob(j) {
			problems = append(problems, fmt.Sprintf("jobs[%d].%s: %s", i, f.Field, f.Message))
		}
		if _, dup := t.byName[j.Name]; dup {
			problems = append(problems, fmt.Sprintf("jobs[%d].name: duplicate job %q", i, j.Name))
			continue
		}
		t.byName[j.Name] = j
		t.order = append(t.order, j.Name)
	}
	if len(problems) > 0 {
		return nil, errors.Newf("invalid job table: %s", strings.Join(problems, "; "))
	}
	return t, nil
}

// LoadJobs reads a YAML job table of the form `jobs: [{name, image, ...}]`.
func LoadJobs(path string) (*JobTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read jobs file %s", path)
	}
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse jobs file %s", path)
	}
	if len(f.Jobs) == 0 {
		return nil, errors.Newf("jobs file %s defines no jobs", path)
	}
	return NewJobTable(f.Jobs)
}

// Get returns the job registered under name.
func (t *JobTable) Get(name string) (*Job, bool) {
	j, ok := t.byName[name]
	return j, ok
}

// List returns jobs in file order.
func (t *JobTable) List() []*Job {
	out := make([]*Job, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.byName[n])
	}
	return out
}

// Names returns the sorted job names.
func (t *JobTable) Names() []string {
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	return names
}

// ValidJobName reports whether name is an acceptable job identifier.
func ValidJobName(name string) bool {
	return jobNameRe.MatchString(name)
}

type ValidationFinding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateJob returns every problem found in j; an empty slice means valid.
func ValidateJob(j *Job) []ValidationFinding {
	var out []ValidationFinding
	add := func(field, msg string) {
		out = append(out, ValidationFinding{Field: field, Message: msg})
	}

	if j.Name == "" {
		add("name", "job name is required")
	} else if !jobNameRe.MatchString(j.Name) {
		add("name", "job name must match ^[a-z0-9][a-z0-9-]*$")
	}
	if strings.TrimSpace(j.Image) == "" {
		add("image", "image is required")
	}
	if j.Timeout != "" {
		if d, err := time.ParseDuration(j.Timeout); err != nil {
			add("timeout", fmt.Sprintf("invalid duration: %v", err))
		} else if d <= 0 {
			add("timeout", "timeout must be positive")
		}
	}
	if j.Schedule != "" {
		if _, err := cronParser.Parse(j.Schedule); err != nil {
			add("schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
	}
	return out
}
