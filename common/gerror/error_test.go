package gerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	err := NewErrAlreadyExists("worker already exists")
	err = err.Wrap(fmt.Errorf("i'm a scary internal error"))
	require.Equal(t, "worker already exists: i'm a scary internal error", err.Error())
	require.Equal(t, "worker already exists", err.Message())

	err = err.EDetail("hostname", "builder-1")
	require.Equal(t, "worker already exists [hostname=builder-1]: i'm a scary internal error", err.Error())
	require.Equal(t, "worker already exists", err.Message())

	err = err.Wrap(NewErrNotFound("job does not exist").EDetail("job_id", "42").Wrap(fmt.Errorf("i'm a scary internal error")))
	require.Equal(t, "worker already exists [hostname=builder-1]: job does not exist [job_id=42]: i'm a scary internal error", err.Error())
	require.Equal(t, "worker already exists", err.Message())
}

func TestErrorStatusCodes(t *testing.T) {
	require.Equal(t, 409, NewErrStale("job is no longer assigned").HTTPStatusCode())
	require.Equal(t, 502, NewErrUpstream("forge unavailable", nil).HTTPStatusCode())
	require.Equal(t, 401, NewErrUnauthorized("bad secret").HTTPStatusCode())
	require.True(t, HasHTTPStatusCode(NewErrNotFound("nope"), 404))
}

func TestMultiError(t *testing.T) {
	// Compose a multierror with our tested error in the middle
	var results *multierror.Error

	results = multierror.Append(results, fmt.Errorf("error 1: %w", errors.New("1")))
	results = multierror.Append(results, NewErrStale("job is no longer assigned"))
	results = multierror.Append(results, fmt.Errorf("error 3: %w", errors.New("3")))

	// Assert that our Is chaining returns an error in the middle of the chain
	err := results.ErrorOrNil()
	require.True(t, IsStale(err))

	// Wrap up the above error with another multierror
	var outerResults *multierror.Error
	outerResults = multierror.Append(err, fmt.Errorf("outer error 1: %w", errors.New("11")))

	// And assert our Is chaining returns the error we are after.
	outerErr := outerResults.ErrorOrNil()
	require.True(t, IsStale(outerErr))
}
