package scanner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/foundry/internal/artifact"
	"evalgo.org/foundry/internal/container"
	"evalgo.org/foundry/models"
)

type fakeLog struct {
	mu      sync.Mutex
	resets  int
	entries map[string][]models.Message
}

func newFakeLog() *fakeLog {
	return &fakeLog{entries: map[string][]models.Message{}}
}

func (l *fakeLog) Reset(containerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
	l.entries[containerID] = nil
}

func (l *fakeLog) Append(containerID string, msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[containerID] = append(l.entries[containerID], msg)
}

func (l *fakeLog) For(containerID string) []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[containerID]
}

func newScannerFixture(t *testing.T) (*Controller, *container.Instance, *fakeLog) {
	t.Helper()
	runtime := artifact.NewMemoryRuntime()
	releaseID := models.ReleaseID{GroupID: "org.x", ArtifactID: "demo", Version: "1.0"}
	runtime.AddBundle(releaseID)
	handle, err := runtime.NewHandle(releaseID)
	require.NoError(t, err)
	require.NotNil(t, handle)

	instance := container.NewInstance("c1", models.ContainerStarted)
	instance.SetHandle(handle)

	logSink := newFakeLog()
	return NewController(runtime, logSink), instance, logSink
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		state    artifact.ScannerState
		expected models.ScannerStatus
	}{
		{artifact.ScannerStarting, models.ScannerCreated},
		{artifact.ScannerRunning, models.ScannerStarted},
		{artifact.ScannerScanning, models.ScannerScanning},
		{artifact.ScannerUpdating, models.ScannerScanning},
		{artifact.ScannerStopped, models.ScannerStopped},
		{artifact.ScannerShutdown, models.ScannerDisposed},
		{artifact.ScannerState("bogus"), models.ScannerUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MapStatus(tt.state), "state %s", tt.state)
	}
}

func TestCreateScanner(t *testing.T) {
	ctrl, instance, logSink := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerCreated})
	require.True(t, resp.OK(), resp.Msg)
	assert.NotNil(t, instance.Scanner())

	msgs := logSink.For("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SeverityInfo, msgs[0].Severity)
}

func TestCreateScannerTwiceConflicts(t *testing.T) {
	ctrl, instance, logSink := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerCreated}).OK())
	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerCreated})
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Msg, "already exists")

	// The conflicting transition cleared the previous log line and left a
	// single WARN line with its outcome
	msgs := logSink.For("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SeverityWarn, msgs[0].Severity)
}

func TestStartScannerAutoCreates(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	})
	require.True(t, resp.OK(), resp.Msg)
	require.NotNil(t, resp.Scanner)
	assert.Equal(t, models.ScannerStarted, resp.Scanner.Status)
	assert.Equal(t, int64(500), *resp.Scanner.PollInterval)

	// Leave no ticker behind
	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed}).OK())
}

func TestStartScannerRequiresInterval(t *testing.T) {
	ctrl, instance, logSink := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerStarted})
	assert.False(t, resp.OK())

	msgs := logSink.For("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SeverityWarn, msgs[0].Severity)
}

func TestStartScannerWrongState(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	}).OK())

	// Starting an already started scanner is refused
	resp := ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	})
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Msg, "Invalid scanner status")

	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed}).OK())
}

func TestStopScanner(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	}).OK())

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerStopped})
	require.True(t, resp.OK(), resp.Msg)
	assert.Equal(t, models.ScannerStopped, resp.Scanner.Status)
}

func TestStopScannerWithoutScanner(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerStopped})
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Msg, "not instantiated")
}

func TestStopScannerWrongState(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerCreated}).OK())

	// Stopping a scanner that never started is refused and does not
	// mutate the slot
	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerStopped})
	assert.False(t, resp.OK())
	assert.NotNil(t, instance.Scanner())
}

func TestScanNowAutoCreates(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerScanning})
	require.True(t, resp.OK(), resp.Msg)
	assert.NotNil(t, instance.Scanner())
}

func TestDisposeScanner(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	}).OK())

	// Dispose stops a running scanner first, then clears the slot
	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed})
	require.True(t, resp.OK(), resp.Msg)
	assert.Nil(t, instance.Scanner())
	assert.Equal(t, models.ScannerDisposed, resp.Scanner.Status)
}

func TestDisposeScannerIdempotent(t *testing.T) {
	ctrl, instance, _ := newScannerFixture(t)

	resp := ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed})
	assert.True(t, resp.OK())
	resp = ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed})
	assert.True(t, resp.OK())
}

func TestEveryTransitionResetsTheLog(t *testing.T) {
	ctrl, instance, logSink := newScannerFixture(t)

	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerCreated}).OK())
	require.True(t, ctrl.Update(instance, models.ScannerResource{
		Status:       models.ScannerStarted,
		PollInterval: models.PollIntervalMillis(500),
	}).OK())

	// Each successful transition left exactly one line behind
	msgs := logSink.For("c1")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "started")

	require.True(t, ctrl.Update(instance, models.ScannerResource{Status: models.ScannerDisposed}).OK())
}
