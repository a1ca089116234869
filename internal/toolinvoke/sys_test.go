package toolinvoke

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSysTimeReturnsRFC3339UTC(t *testing.T) {
	sysTime := NewSysTime()
	result, err := sysTime.Invoke(context.Background(), nil)
	require.NoError(t, err)

	shaped := result.(map[string]any)
	parsed, err := time.Parse(time.RFC3339, shaped["time"].(string))
	require.NoError(t, err)
	_, offset := parsed.Zone()
	assert.Equal(t, 0, offset)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}
