package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// not parallel: the logger is process-wide
func TestLogger_Configure(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		require.NoError(t, Configure("info", "json"))
	})

	require.NoError(t, Configure("warn", "json"))
	Info("dropped", nil)
	Warn("bid failed", map[string]any{"auction_id": "auction1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "bid failed", line["message"])
	require.Equal(t, "auction1", line["auction_id"])
	require.Equal(t, serviceName, line["service"])
	require.Equal(t, "warning", line["level"])

	buf.Reset()
	require.NoError(t, Configure("debug", "text"))
	Debug("lock acquired", map[string]any{"auction_id": "auction2"})
	require.Contains(t, buf.String(), "auction_id=auction2")

	require.Error(t, Configure("loud", "json"))
	require.Error(t, Configure("info", "xml"))
}

func TestGenerateSortableID(t *testing.T) {
	t.Parallel()

	a := GenerateSortableID(testTime)
	b := GenerateSortableID(testTime)
	require.Len(t, a, 26)
	require.Less(t, a, b, "ids from the same instant must still sort by creation")
	require.NotEqual(t, GenerateID(), GenerateID())
}
