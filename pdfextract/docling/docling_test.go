package docling

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
)

// fakeDoclineBinary writes an executable shell script to dir that emits a
// fixed line-delimited JSON page stream, ignoring its arguments, standing
// in for the real docling CLI in tests.
func fakeDoclineBinary(t *testing.T, dir string, exitCode int) string {
	t.Helper()
	script := filepath.Join(dir, "fake-docling.sh")
	body := `#!/bin/sh
echo '{"page_number":1,"text":"GraphRAG combines retrieval with graph structure."}'
echo '{"page_number":2,"text":"Communities are summarized hierarchically."}'
exit ` + string(rune('0'+exitCode)) + `
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func TestExtractDecodesPageStream(t *testing.T) {
	bin := fakeDoclineBinary(t, t.TempDir(), 0)
	doc, err := New(bin).Extract(context.Background(), "ignored.pdf")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Contains(t, doc.Pages[0].Text, "retrieval")
	assert.Equal(t, 2, doc.PageCount)
}

func TestExtractSubprocessFailureReturnsTransientIO(t *testing.T) {
	_, err := New("/nonexistent/docling-binary-does-not-exist").Extract(context.Background(), "ignored.pdf")
	require.Error(t, err)
	assert.Equal(t, kinderr.TransientIO, kinderr.KindOf(err))
}
