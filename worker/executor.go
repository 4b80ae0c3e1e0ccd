package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alessio/shellescape"
	"github.com/benbjohnson/clock"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

const (
	// uploadAttempts bounds pushpkg retries; attempt n waits 1<<n seconds.
	uploadAttempts = 5
	// logTimestampLayout names finished log files down to the second.
	logTimestampLayout = "2006-01-02-15:04:05"
)

type ExecutorConfig struct {
	// CielPath is the ciel workspace root. The packaging tree lives under
	// TREE and build output under OUTPUT-<branch>.
	CielPath string
	// CielInstance is the ciel container instance builds run in.
	CielInstance string
	// Hostname identifies this worker in log file names.
	Hostname string
	// PushpkgHost is the package repository rsync host.
	PushpkgHost string
	// PushpkgSSHKey authenticates uploads. Uploads are skipped when empty.
	PushpkgSSHKey string
}

// Executor runs one job at a time: prepare the tree, refresh the container,
// build with ciel, upload with pushpkg and persist the transcript. It never
// fails; every outcome, including infrastructure errors, becomes a
// completion report for the coordinator.
type Executor struct {
	config   ExecutorConfig
	runner   CommandRunner
	tree     TreePreparer
	sink     LogSink
	fallback *LocalLogSink
	streamer LineSink
	clock    clock.Clock
	log      logger.Log
}

func NewExecutor(
	config ExecutorConfig,
	runner CommandRunner,
	tree TreePreparer,
	sink LogSink,
	fallback *LocalLogSink,
	streamer LineSink,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *Executor {
	return &Executor{
		config:   config,
		runner:   runner,
		tree:     tree,
		sink:     sink,
		fallback: fallback,
		streamer: streamer,
		clock:    clk,
		log:      logFactory("Executor"),
	}
}

// Run builds a job to completion and returns the report to send back.
func (e *Executor) Run(ctx context.Context, workerID models.WorkerID, job *documents.RunnableJob) *documents.CompleteRequest {
	begin := e.clock.Now()
	buildLog := NewBuildLog(e.streamer)
	report := &documents.CompleteRequest{
		WorkerID: workerID,
		JobID:    job.ID,
	}

	err := e.build(ctx, job, buildLog, report)
	if err != nil {
		e.log.Warnf("Job %s hit an infrastructure error: %s", job.ID, err)
		buildLog.Linef("%s: Infrastructure error: %s", e.clock.Now().Format(time.RFC3339), err)
		message := err.Error()
		report.ErrorMessage = &message
	}

	elapsed := int64(e.clock.Since(begin) / time.Second)
	report.ElapsedSecs = &elapsed

	logURL := e.storeLog(ctx, job, buildLog)
	if logURL != "" {
		report.LogURL = &logURL
	}
	return report
}

// build fills in the report's build and upload outcome. A returned error
// means the job could not be attempted, not that the build failed.
func (e *Executor) build(ctx context.Context, job *documents.RunnableJob, buildLog *BuildLog, report *documents.CompleteRequest) error {
	outputDir := filepath.Join(e.config.CielPath, "OUTPUT-"+job.GitBranch)

	// Leftover artifacts from an earlier build must not be uploaded again
	if _, err := os.Stat(outputDir); err == nil {
		_, err = e.runLogged(ctx, buildLog, outputDir, "rm", "-rf", "debs")
		if err != nil {
			return err
		}
	}

	err := e.tree.Prepare(ctx, job.GitBranch, job.GitSha, buildLog)
	if err != nil {
		return err
	}

	result, err := e.runLogged(ctx, buildLog, e.config.CielPath, "ciel", "update-os")
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("ciel update-os exited with code %d", result.ExitCode)
	}

	cielArgs := append([]string{"build", "-i", e.config.CielInstance}, job.PackageList()...)
	result, err = e.runLogged(ctx, buildLog, e.config.CielPath, "ciel", cielArgs...)
	if err != nil {
		return err
	}
	report.BuildSuccess = result.Success()
	summary := ParseBuildSummary(string(result.Stdout))
	report.SuccessfulPackages = summary.SuccessfulPackages
	report.FailedPackage = summary.FailedPackage
	report.SkippedPackages = summary.SkippedPackages

	if report.BuildSuccess {
		if e.config.PushpkgSSHKey == "" {
			// Uploads disabled; a built job with nowhere to push still counts
			buildLog.Linef("%s: No upload key configured; skipping pushpkg", e.clock.Now().Format(time.RFC3339))
			report.UploadSuccess = true
			return nil
		}
		uploaded, err := e.runLoggedWithRetry(ctx, buildLog, outputDir,
			"pushpkg", "--host", e.config.PushpkgHost, "-i", e.config.PushpkgSSHKey, "maintainers", job.GitBranch)
		if err != nil {
			return err
		}
		report.UploadSuccess = uploaded
	}
	return nil
}

// runLogged runs one command and writes its transcript to the build log.
func (e *Executor) runLogged(ctx context.Context, buildLog *BuildLog, dir string, name string, args ...string) (*CommandResult, error) {
	rendered := shellescape.QuoteCommand(append([]string{name}, args...))
	buildLog.Linef("%s: Running `%s` in `%s`", e.clock.Now().Format(time.RFC3339), rendered, dir)
	e.log.Infof("Running `%s` in `%s`", rendered, dir)
	result, err := e.runner.Run(ctx, dir, name, args...)
	if err != nil {
		buildLog.Linef("%s: `%s` failed to run: %s", e.clock.Now().Format(time.RFC3339), rendered, err)
		return nil, err
	}
	buildLog.Linef("%s: `%s` finished in %s with exit code %d",
		e.clock.Now().Format(time.RFC3339), rendered, result.Elapsed.Round(time.Millisecond), result.ExitCode)
	buildLog.Line("STDOUT:")
	buildLog.Output(result.Stdout)
	buildLog.Line("STDERR:")
	buildLog.Output(result.Stderr)
	return result, nil
}

// runLoggedWithRetry retries a command until it exits cleanly, backing off
// 1<<n seconds between attempts. Returns false when every attempt failed.
func (e *Executor) runLoggedWithRetry(ctx context.Context, buildLog *BuildLog, dir string, name string, args ...string) (bool, error) {
	for i := 0; i < uploadAttempts; i++ {
		if i > 0 {
			e.log.Infof("Attempt #%d to run `%s`", i, name)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-e.clock.After(time.Second << (i - 1)):
			}
		}
		result, err := e.runLogged(ctx, buildLog, dir, name, args...)
		if err != nil {
			return false, err
		}
		if result.Success() {
			return true, nil
		}
		e.log.Warnf("Running `%s` exited with code %d", name, result.ExitCode)
	}
	e.log.Warnf("Failed too many times running `%s`", name)
	return false, nil
}

// storeLog writes the transcript to the sink, falling back to the local
// directory so a failed upload never loses the log. Returns the public URL
// or "" when there is none.
func (e *Executor) storeLog(ctx context.Context, job *documents.RunnableJob, buildLog *BuildLog) string {
	fileName := fmt.Sprintf("%s-%s-%s-%s-%s.txt",
		job.ID, job.GitBranch, job.Arch, e.config.Hostname, e.clock.Now().Format(logTimestampLayout))
	content := buildLog.Bytes()
	if e.sink != nil {
		url, err := e.sink.Store(ctx, fileName, content)
		if err == nil {
			return url
		}
		e.log.Errorf("Error storing build log %q (keeping a local copy): %s", fileName, err)
	}
	_, err := e.fallback.Store(ctx, fileName, content)
	if err != nil {
		e.log.Errorf("Error storing local copy of build log %q: %s", fileName, err)
	}
	return ""
}
