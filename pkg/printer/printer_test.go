package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePrinterRendersHeadersAndRows(t *testing.T) {
	var buf bytes.Buffer
	tp := NewTablePrinter(&buf)
	tp.SetHeaders("Login", "Permission", "Status")
	tp.AddRow("sa", "Connect", "Success")
	tp.AddRow(`CORP\alice`, "Alter", "Success")

	require.NoError(t, tp.Render())

	out := buf.String()
	assert.Contains(t, out, "Login")
	assert.Contains(t, out, "Connect")
	assert.Contains(t, out, `CORP\alice`)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactlyten", TruncateString("exactlyten", 10))
	assert.Equal(t, "a long ...", TruncateString("a long string here", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
