package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

type fakeCommand struct {
	dir  string
	name string
	args []string
}

// fakeCommandRunner returns canned results keyed by "name" or "name subcommand"
// and records every invocation. Commands with no canned result exit cleanly.
type fakeCommandRunner struct {
	results  map[string]*CommandResult
	commands []fakeCommand
}

func (r *fakeCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (*CommandResult, error) {
	r.commands = append(r.commands, fakeCommand{dir: dir, name: name, args: args})
	if len(args) > 0 {
		if result, ok := r.results[name+" "+args[0]]; ok {
			return result, nil
		}
	}
	if result, ok := r.results[name]; ok {
		return result, nil
	}
	return &CommandResult{}, nil
}

func (r *fakeCommandRunner) commandLine(i int) string {
	cmd := r.commands[i]
	return strings.Join(append([]string{cmd.name}, cmd.args...), " ")
}

type fakeTreePreparer struct {
	branches []string
	shas     []string
	err      error
}

func (p *fakeTreePreparer) Prepare(ctx context.Context, branch, sha string, buildLog *BuildLog) error {
	p.branches = append(p.branches, branch)
	p.shas = append(p.shas, sha)
	return p.err
}

type fakeLogSink struct {
	fileNames []string
	contents  [][]byte
	url       string
	err       error
}

func (s *fakeLogSink) Store(ctx context.Context, fileName string, content []byte) (string, error) {
	s.fileNames = append(s.fileNames, fileName)
	s.contents = append(s.contents, content)
	return s.url, s.err
}

func newTestExecutor(t *testing.T, runner *fakeCommandRunner, tree *fakeTreePreparer, sink LogSink) *Executor {
	config := ExecutorConfig{
		CielPath:      t.TempDir(),
		CielInstance:  "main",
		Hostname:      "avalon",
		PushpkgHost:   "repo.example.com",
		PushpkgSSHKey: "/etc/buildit/upload_key",
	}
	return NewExecutor(config, runner, tree, sink, NewLocalLogSink(t.TempDir()), nil, clock.NewMock(), logger.NoOpLogFactory)
}

func runnableJob(packages string) *documents.RunnableJob {
	return &documents.RunnableJob{
		Job: &models.Job{
			ID:       models.JobID(42),
			Packages: packages,
			Arch:     "amd64",
		},
		GitBranch: "stable",
		GitSha:    "0123456789abcdef0123456789abcdef01234567",
	}
}

func TestExecutorSuccessfulBuild(t *testing.T) {
	runner := &fakeCommandRunner{results: map[string]*CommandResult{
		"ciel build": {Stdout: []byte(cleanBuildOutput)},
		"pushpkg":    {},
	}}
	tree := &fakeTreePreparer{}
	sink := &fakeLogSink{url: "https://logs.example.com/build.txt"}
	executor := newTestExecutor(t, runner, tree, sink)

	workerID := models.WorkerID(7)
	job := runnableJob("bash")
	report := executor.Run(context.Background(), workerID, job)

	require.Equal(t, workerID, report.WorkerID)
	require.Equal(t, job.ID, report.JobID)
	require.True(t, report.BuildSuccess)
	require.True(t, report.UploadSuccess)
	require.Equal(t, []string{"bash"}, report.SuccessfulPackages)
	require.Nil(t, report.FailedPackage)
	require.Nil(t, report.ErrorMessage)
	require.NotNil(t, report.LogURL)
	require.Equal(t, sink.url, *report.LogURL)
	require.NotNil(t, report.ElapsedSecs)

	require.Equal(t, []string{"stable"}, tree.branches)
	require.Equal(t, []string{job.GitSha}, tree.shas)
	require.Len(t, runner.commands, 3)
	require.Equal(t, "ciel update-os", runner.commandLine(0))
	require.Equal(t, "ciel build -i main bash", runner.commandLine(1))
	require.Equal(t, "pushpkg --host repo.example.com -i /etc/buildit/upload_key maintainers stable", runner.commandLine(2))

	// The uploaded transcript carries the command lines
	require.Len(t, sink.contents, 1)
	require.Contains(t, string(sink.contents[0]), "ciel build -i main bash")
}

func TestExecutorFailedBuild(t *testing.T) {
	runner := &fakeCommandRunner{results: map[string]*CommandResult{
		"ciel build": {Stdout: []byte(failedBuildOutput), ExitCode: 1},
	}}
	tree := &fakeTreePreparer{}
	sink := &fakeLogSink{url: "https://logs.example.com/build.txt"}
	executor := newTestExecutor(t, runner, tree, sink)

	report := executor.Run(context.Background(), models.WorkerID(7), runnableJob("bash,coreutils,llvm,rustc,firefox"))

	require.False(t, report.BuildSuccess)
	require.False(t, report.UploadSuccess)
	require.Nil(t, report.ErrorMessage)
	require.Equal(t, []string{"bash", "coreutils"}, report.SuccessfulPackages)
	require.NotNil(t, report.FailedPackage)
	require.Equal(t, "llvm", *report.FailedPackage)
	require.Equal(t, []string{"rustc", "firefox"}, report.SkippedPackages)

	// A failed build is never uploaded
	for _, cmd := range runner.commands {
		require.NotEqual(t, "pushpkg", cmd.name)
	}
}

func TestExecutorTreeErrorBecomesErrorReport(t *testing.T) {
	runner := &fakeCommandRunner{results: map[string]*CommandResult{}}
	tree := &fakeTreePreparer{err: context.DeadlineExceeded}
	sink := &fakeLogSink{url: "https://logs.example.com/build.txt"}
	executor := newTestExecutor(t, runner, tree, sink)

	report := executor.Run(context.Background(), models.WorkerID(7), runnableJob("bash"))

	require.False(t, report.BuildSuccess)
	require.NotNil(t, report.ErrorMessage)
	require.Contains(t, *report.ErrorMessage, "deadline")
	// The transcript still gets stored for debugging
	require.NotNil(t, report.LogURL)
}

func TestExecutorSinkFailureFallsBackToLocal(t *testing.T) {
	runner := &fakeCommandRunner{results: map[string]*CommandResult{
		"ciel build": {Stdout: []byte(cleanBuildOutput)},
		"pushpkg":    {},
	}}
	tree := &fakeTreePreparer{}
	sink := &fakeLogSink{err: context.DeadlineExceeded}
	executor := newTestExecutor(t, runner, tree, sink)

	report := executor.Run(context.Background(), models.WorkerID(7), runnableJob("bash"))

	require.True(t, report.BuildSuccess)
	require.Nil(t, report.LogURL)
}
