package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterOSArgs(t *testing.T) {

	var whitelist = []string{
		"api_server_address",
		"database_driver",
		"log_sink_aws_s3_bucket_name",
		"github_app_id",
		"mainline_archs",
	}

	var in = []string{
		"/usr/bin/buildit-server",
		"--api_server_address",
		"0.0.0.0:8000",
		"--database_driver",
		"postgres",
		"--database_connection_string",
		"secret",
		"--worker_shared_secret",
		"secret",
		"--log_sink_aws_s3_bucket_name",
		"buildit-logs",
		"--github_app_id",
		"261622",
		"--session_jwt_key",
		"secret"}

	var out = []string{
		"/usr/bin/buildit-server",
		"--api_server_address",
		"0.0.0.0:8000",
		"--database_driver",
		"postgres",
		"--database_connection_string",
		"******",
		"--worker_shared_secret",
		"******",
		"--log_sink_aws_s3_bucket_name",
		"buildit-logs",
		"--github_app_id",
		"261622",
		"--session_jwt_key",
		"******"}

	filtered := FilterOSArgs(in, whitelist)
	require.Equal(t, out, filtered)
}
