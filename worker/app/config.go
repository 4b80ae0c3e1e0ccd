package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/worker"
)

const (
	defaultCielPath      = "/buildroots/buildit"
	defaultTreeRemoteURL = "https://github.com/AOSC-Dev/aosc-os-abbs.git"
)

// LogSafeFlags is a list of flags by name whose values are safe to log.
var LogSafeFlags = []string{
	"coordinator_endpoint",
	"hostname",
	"arch",
	"performance",
	"heartbeat_interval",
	"poll_interval",
	"ciel_path",
	"ciel_instance",
	"pushpkg_host",
	"tree_remote",
	"failed_log_directory",
	"log_s3_bucket",
	"log_s3_key_prefix",
	"log_s3_region",
	"log_public_base_url",
	"log_levels",
}

type WorkerConfig struct {
	CoordinatorEndpoint string
	WorkerSharedSecret  string
	HeartbeatConfig     worker.HeartbeaterConfig
	PollInterval        time.Duration
	ExecutorConfig      worker.ExecutorConfig
	TreeConfig          worker.TreeKeeperConfig
	// FailedLogDir keeps finished logs that could not reach the sink.
	FailedLogDir     string
	LogS3Bucket      string
	LogS3KeyPrefix   string
	LogS3Region      string
	LogPublicBaseURL string
	LogLevels        logger.LogLevelConfig
}

func ConfigFromFlags() (*WorkerConfig, error) {
	var performance int64
	defaultHostname, _ := os.Hostname()
	config := &WorkerConfig{}

	flag.StringVar(&config.CoordinatorEndpoint, "coordinator_endpoint",
		"http://localhost:8080", "The endpoint of the BuildIt coordinator's REST API.")
	flag.StringVar(&config.WorkerSharedSecret, "worker_shared_secret",
		"", "The shared secret that authenticates this worker to the coordinator.")
	flag.StringVar(&config.HeartbeatConfig.Hostname, "hostname",
		defaultHostname, "The hostname this worker registers under.")
	flag.StringVar(&config.HeartbeatConfig.Arch, "arch",
		"", "The dpkg architecture this worker builds for.")
	flag.Int64Var(&performance, "performance",
		0, "An optional score ranking this worker against its architecture peers. 0 to omit.")
	flag.DurationVar(&config.HeartbeatConfig.Interval, "heartbeat_interval",
		worker.DefaultHeartbeatInterval, "The interval between heartbeats to the coordinator.")
	flag.DurationVar(&config.PollInterval, "poll_interval",
		worker.DefaultPollInterval, "The interval to check for new jobs to run.")
	flag.StringVar(&config.ExecutorConfig.CielPath, "ciel_path",
		defaultCielPath, "The ciel workspace builds run in.")
	flag.StringVar(&config.ExecutorConfig.CielInstance, "ciel_instance",
		"main", "The ciel container instance to build in.")
	flag.StringVar(&config.ExecutorConfig.PushpkgHost, "pushpkg_host",
		"repo.aosc.io", "The package repository host pushpkg uploads to.")
	flag.StringVar(&config.ExecutorConfig.PushpkgSSHKey, "pushpkg_ssh_key",
		"", "The ssh key pushpkg uploads with. Uploads are skipped when unset.")
	flag.StringVar(&config.TreeConfig.RemoteURL, "tree_remote",
		defaultTreeRemoteURL, "The remote the packaging tree is fetched from.")
	flag.StringVar(&config.TreeConfig.SSHKeyFile, "tree_ssh_key",
		"", "An optional ssh key for fetching the packaging tree from a private remote.")
	flag.StringVar(&config.FailedLogDir, "failed_log_directory",
		"./push_failed_logs", "Where finished build logs are kept when the log sink is unreachable.")
	flag.StringVar(&config.LogS3Bucket, "log_s3_bucket",
		"", "The S3 bucket finished build logs are uploaded to. Logs stay local when unset.")
	flag.StringVar(&config.LogS3KeyPrefix, "log_s3_key_prefix",
		"logs", "The key prefix for uploaded build logs.")
	flag.StringVar(&config.LogS3Region, "log_s3_region",
		"us-east-1", "The AWS region of the build log bucket.")
	flag.StringVar(&config.LogPublicBaseURL, "log_public_base_url",
		"", "The public URL uploaded build logs are served from.")
	flag.StringVar((*string)(&config.LogLevels), "log_levels",
		"", fmt.Sprintf("A comma separated list of name=level pairs where name is the name of the logger and level is one of: %s", logger.ListLogLevels()))
	flag.Parse()

	if config.WorkerSharedSecret == "" {
		return nil, errors.New("--worker_shared_secret must be set")
	}
	if config.HeartbeatConfig.Arch == "" {
		return nil, errors.New("--arch must be set")
	}
	if config.HeartbeatConfig.Hostname == "" {
		return nil, errors.New("--hostname must be set")
	}
	if config.LogS3Bucket != "" && config.LogPublicBaseURL == "" {
		return nil, errors.New("--log_public_base_url must be set when --log_s3_bucket is")
	}
	if performance != 0 {
		config.HeartbeatConfig.Performance = &performance
	}
	config.HeartbeatConfig.DiskPath = config.ExecutorConfig.CielPath
	config.ExecutorConfig.Hostname = config.HeartbeatConfig.Hostname
	config.TreeConfig.TreePath = filepath.Join(config.ExecutorConfig.CielPath, "TREE")

	return config, nil
}
