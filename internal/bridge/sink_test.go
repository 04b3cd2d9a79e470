package bridge

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSinkAppends(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	require.NoError(t, sink.Append("hello\n"))
	require.NoError(t, sink.Append("world\n"))
	assert.Equal(t, "hello\nworld\n", buf.String())
}

func TestConsoleSinkConcurrentRecordsStayWhole(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = sink.Append(fmt.Sprintf("record-%02d-%s\n", i, strings.Repeat("x", 100)))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Len(t, line, len("record-00-")+100)
	}
}

func TestSinkFunc(t *testing.T) {
	var got string
	sink := SinkFunc(func(record string) error {
		got = record
		return nil
	})
	require.NoError(t, sink.Append("x\n"))
	assert.Equal(t, "x\n", got)
}
