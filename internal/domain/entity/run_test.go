package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle(t *testing.T) {
	run := NewRun(DefaultScanParams(), ContainerMP4)
	require.Equal(t, RunStatusIdle, run.Status)

	run.MarkIndexing()
	assert.Equal(t, RunStatusIndexing, run.Status)

	run.MarkProcessing(100, []int{0, 49, 98})
	assert.Equal(t, RunStatusProcessing, run.Status)
	assert.Equal(t, Progress{RunID: run.ID, Completed: 0, Total: 3}, run.Progress())

	run.AddFrame(AnnotatedFrame{Position: 1, FrameIndex: 0, Filename: FrameName(1)})
	p := run.Progress()
	assert.InDelta(t, 1.0/3.0, p.Fraction(), 1e-9)
	assert.Equal(t, "processing 1/3", p.Counter())

	run.MarkArchiving()
	assert.Equal(t, RunStatusArchiving, run.Status)
	assert.False(t, run.Status.Terminal())

	run.MarkDone("/tmp/x/" + ArchiveName)
	assert.Equal(t, RunStatusDone, run.Status)
	assert.True(t, run.Status.Terminal())
	require.NotNil(t, run.CompletedAt)
}

func TestRunMarkFailed(t *testing.T) {
	run := NewRun(DefaultScanParams(), ContainerAVI)
	run.MarkIndexing()
	run.MarkFailed(StageIndexing, "no video stream")

	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, StageIndexing, run.FailedStage)
	assert.Equal(t, "no video stream", run.ErrorMessage)
	assert.True(t, run.Status.Terminal())
}

func TestRunSnapshotIsIndependent(t *testing.T) {
	run := NewRun(DefaultScanParams(), ContainerMP4)
	run.MarkProcessing(10, []int{0, 4, 8})
	run.AddFrame(AnnotatedFrame{Position: 1})

	snap := run.Snapshot()
	run.AddFrame(AnnotatedFrame{Position: 2})
	run.Samples[0] = 7

	assert.Len(t, snap.Frames, 1)
	assert.Equal(t, 0, snap.Samples[0])
}

func TestProgressFractionWithoutSamples(t *testing.T) {
	assert.Zero(t, Progress{}.Fraction())
}

func TestScanParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  ScanParams
		wantErr bool
	}{
		{name: "defaults", params: DefaultScanParams()},
		{name: "lower bounds", params: ScanParams{TargetFrames: 1, Confidence: 0.1}},
		{name: "upper bounds", params: ScanParams{TargetFrames: 50, Confidence: 0.9}},
		{name: "zero frames", params: ScanParams{TargetFrames: 0, Confidence: 0.25}, wantErr: true},
		{name: "too many frames", params: ScanParams{TargetFrames: 51, Confidence: 0.25}, wantErr: true},
		{name: "confidence too low", params: ScanParams{TargetFrames: 10, Confidence: 0.05}, wantErr: true},
		{name: "confidence too high", params: ScanParams{TargetFrames: 10, Confidence: 0.95}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsUploadError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "objek_1.jpg", FrameName(1))
	assert.Equal(t, "objek_12.jpg", FrameName(12))
}

func TestNewScanStatusMessage(t *testing.T) {
	run := NewRun(ScanParams{TargetFrames: 5, Confidence: 0.4}, ContainerMP4)
	run.MarkProcessing(30, []int{0, 7, 14, 21, 28})
	run.AddFrame(AnnotatedFrame{Position: 1})
	run.StopEarly("decode frame 7: eof")
	run.MarkDone("/tmp/run/" + ArchiveName)

	msg := NewScanStatusMessage(run)
	assert.Equal(t, run.ID, msg.RunID)
	assert.Equal(t, RunStatusDone, msg.Status)
	assert.Equal(t, 1, msg.FrameCount)
	assert.Equal(t, 5, msg.TargetFrames)
	assert.True(t, msg.StoppedEarly)
	assert.Equal(t, ArchiveName, msg.ArchiveName)
}
