package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/log"
)

func (p *printer) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.(*bytes.Buffer).String()
}

func TestWatch_ForwardsLogEntries(t *testing.T) {
	defer log.InitWriter(io.Discard)()

	p := &printer{out: &bytes.Buffer{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := forwardLogs(ctx, p)

	log.Info(log.CatWatcher, "document reloaded", "revision", 3)
	p.println("revision 3")
	require.Eventually(t, func() bool {
		return strings.Contains(p.String(), "[watcher] document reloaded revision=3")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	log.Info(log.CatWatcher, "after stop")
	require.NotContains(t, p.String(), "after stop")
	require.Contains(t, p.String(), "revision 3\n")
}

func TestWatch_ForwardingStopsWithLogging(t *testing.T) {
	closeLogger := log.InitWriter(io.Discard)
	done := forwardLogs(context.Background(), &printer{out: &bytes.Buffer{}})

	closeLogger()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "forwarding outlived the logger")
	}
}

func TestWatch_NoLoggerNoForwarding(t *testing.T) {
	done := forwardLogs(context.Background(), &printer{out: io.Discard})
	_, open := <-done
	require.False(t, open)
}
