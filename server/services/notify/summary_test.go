package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
)

func strPtr(s string) *string { return &s }
func intPtr(v int64) *int64   { return &v }

func testGraph() *dto.PipelineGraph {
	return &dto.PipelineGraph{
		Pipeline: &models.Pipeline{
			ID:       42,
			Packages: "llvm,rustc",
			Archs:    "amd64,arm64",
			GitSha:   "0123456789abcdef0123456789abcdef01234567",
		},
		Status: models.PipelineStatusFailed,
		Jobs: []*models.Job{
			{
				Arch:   "amd64",
				Status: models.JobStatusSuccess,
				JobResult: models.JobResult{
					ElapsedSecs: intPtr(3725),
					LogURL:      strPtr("https://logs.example.com/42-amd64.log"),
				},
			},
			{
				Arch:   "arm64",
				Status: models.JobStatusFailed,
				JobResult: models.JobResult{
					FailedPackage: strPtr("rustc"),
					ElapsedSecs:   intPtr(60),
				},
			},
		},
	}
}

func TestTextSummary(t *testing.T) {
	expected := "Pipeline #42 [failed] llvm,rustc @ 01234567\n" +
		"✅ amd64: success (1h2m5s)\n" +
		"❌ arm64: failed (1m0s) at rustc\n"
	require.Equal(t, expected, TextSummary(testGraph()))
}

func TestHTMLSummary(t *testing.T) {
	html, err := HTMLSummary(testGraph())
	require.NoError(t, err)
	expected := "<b>Pipeline #42</b> [failed] <code>llvm,rustc</code> @ <code>01234567</code>\n" +
		"✅ <b>amd64</b>: success (1h2m5s) <a href=\"https://logs.example.com/42-amd64.log\">log</a>\n" +
		"❌ <b>arm64</b>: failed (1m0s)"
	require.Equal(t, expected, html)
}

func TestTruncateDescription(t *testing.T) {
	short := "build failed"
	require.Equal(t, short, truncateDescription(short))
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	truncated := truncateDescription(string(long))
	require.LessOrEqual(t, len([]rune(truncated)), 140)
	require.True(t, strings.HasSuffix(truncated, "..."))
}
