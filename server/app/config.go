package app

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/api/rest/server"
	"github.com/buildit-dev/buildit/server/services/auth"
	"github.com/buildit-dev/buildit/server/services/relay"
	"github.com/buildit-dev/buildit/server/services/resolver"
	"github.com/buildit-dev/buildit/server/store"
)

const defaultSQLiteConnectionString = "file:buildit.db?cache=shared&_foreign_keys=1&parseTime=true"

// LogSafeFlags is a list of flags by name whose values are safe to log.
var LogSafeFlags = []string{
	"api_server_address",
	"database_driver",
	"github_owner",
	"github_repo",
	"github_org",
	"github_app_id",
	"github_commit_statuses",
	"webhook_url",
	"relay_buffer_size",
	"log_levels",
}

// NotifyConfig selects where terminal job and pipeline statuses are pushed.
type NotifyConfig struct {
	// WebhookURL receives JSON events when set.
	WebhookURL string
	// CommitStatuses enables GitHub commit status updates.
	CommitStatuses bool
}

type ServerConfig struct {
	CoreAPIConfig   server.CoreAPIServerConfig
	DatabaseConfig  store.DatabaseConfig
	AuthConfig      auth.AuthServiceConfig
	GitHubConfig    resolver.GitHubResolverConfig
	NotifyConfig    NotifyConfig
	RelayBufferSize int
	LogLevels       logger.LogLevelConfig
}

func ConfigFromFlags() (*ServerConfig, error) {
	var (
		databaseDriverStr        string
		databaseConnectionString string
		jwtSigningSecret         string
		jwtExpiryHours           int
		logLevels                string
	)

	config := &ServerConfig{}

	// Core API
	flag.StringVar(&config.CoreAPIConfig.Address, "api_server_address",
		"0.0.0.0:8080", "The interface and port to bind the API server to.")

	// Auth
	flag.StringVar(&config.AuthConfig.WorkerSharedSecret, "worker_shared_secret",
		"", "The shared secret workers must present on every call.")
	flag.StringVar(&config.AuthConfig.ChatCredential, "chat_credential",
		"", "The credential the chat bridge presents when submitting pipelines.")
	flag.StringVar(&jwtSigningSecret, "jwt_signing_secret",
		"", "The secret used to sign and verify submitter JWTs.")
	flag.IntVar(&jwtExpiryHours, "jwt_expiry_hours",
		int(auth.DefaultJWTExpiryDuration/time.Hour), "The number of hours a submitter JWT stays valid for.")

	// GitHub
	flag.StringVar(&config.GitHubConfig.Owner, "github_owner",
		"", "The owner of the packaging tree repository on GitHub.")
	flag.StringVar(&config.GitHubConfig.Repo, "github_repo",
		"", "The name of the packaging tree repository on GitHub.")
	flag.StringVar(&config.GitHubConfig.Org, "github_org",
		"", "The GitHub organization whose members may submit pipelines.")
	flag.StringVar(&config.GitHubConfig.Token, "github_token",
		"", "A GitHub personal access token to authenticate with.")
	flag.Int64Var(&config.GitHubConfig.AppID, "github_app_id",
		-1, "The GitHub App ID to connect to GitHub as, instead of a token.")
	flag.Int64Var(&config.GitHubConfig.InstallationID, "github_app_installation_id",
		-1, "The GitHub App installation ID for the packaging tree repository.")
	flag.StringVar(&config.GitHubConfig.PrivateKeyPath, "github_app_private_key_file_path",
		"", "The path on the local host to the GitHub app private key file.")

	// Notifications
	flag.StringVar(&config.NotifyConfig.WebhookURL, "webhook_url",
		"", "A URL to POST JSON events to when jobs and pipelines finish.")
	flag.BoolVar(&config.NotifyConfig.CommitStatuses, "github_commit_statuses",
		false, "True to push per-arch commit statuses to GitHub as jobs finish.")

	// Database
	flag.StringVar(&databaseConnectionString, "database_connection_string",
		defaultSQLiteConnectionString, "The connection string for the database")
	flag.StringVar(&databaseDriverStr, "database_driver",
		string(store.Sqlite), "The Database Driver to use (i.e sqlite3|postgres)")
	flag.IntVar(&config.DatabaseConfig.MaxIdleConnections, "database_max_idle_connections",
		store.DefaultDatabaseMaxIdleConnections, "The maximum number of idle database connections to use")
	flag.IntVar(&config.DatabaseConfig.MaxOpenConnections, "database_max_open_connections",
		store.DefaultDatabaseMaxOpenConnections, "The maximum number of open database connections to use")

	// Misc
	flag.IntVar(&config.RelayBufferSize, "relay_buffer_size",
		relay.DefaultBufferSize, "The number of log lines buffered per worker for late-joining viewers.")
	flag.StringVar(&logLevels, "log_levels",
		"", fmt.Sprintf("A comma separated list of name=level pairs where name is the name of the logger and level is one of: %s", logger.ListLogLevels()))
	flag.Parse()

	// Auth
	if config.AuthConfig.WorkerSharedSecret == "" {
		return nil, errors.New("--worker_shared_secret must be set")
	}
	if jwtSigningSecret == "" {
		return nil, errors.New("--jwt_signing_secret must be set")
	}
	config.AuthConfig.JWTSigningSecret = []byte(jwtSigningSecret)
	config.AuthConfig.JWTExpiryDuration = time.Duration(jwtExpiryHours) * time.Hour

	// GitHub
	if config.GitHubConfig.Owner == "" || config.GitHubConfig.Repo == "" {
		return nil, errors.New("--github_owner and --github_repo must be set")
	}

	// Database
	config.DatabaseConfig.Driver = store.DBDriver(databaseDriverStr)
	config.DatabaseConfig.ConnectionString = store.DatabaseConnectionString(databaseConnectionString)

	// Misc
	config.LogLevels = logger.LogLevelConfig(logLevels)

	return config, nil
}
