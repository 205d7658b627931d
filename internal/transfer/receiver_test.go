package transfer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSink struct {
	kind    string
	data    bytes.Buffer
	closed  bool
	aborted bool
	path    string
}

func (s *testSink) Write(p []byte) (int, error) { return s.data.Write(p) }
func (s *testSink) Close() error                { s.closed = true; return nil }
func (s *testSink) Abort() error                { s.aborted = true; return nil }
func (s *testSink) Path() string                { return s.path }

type testFactory struct {
	disk    bool
	diskErr error
	sinks   []*testSink
}

func (f *testFactory) DiskAvailable() bool { return f.disk }

func (f *testFactory) NewDiskSink(meta FileMeta) (Sink, error) {
	if f.diskErr != nil {
		return nil, f.diskErr
	}
	sink := &testSink{kind: "disk", path: "/sink/" + meta.Name}
	f.sinks = append(f.sinks, sink)
	return sink, nil
}

func (f *testFactory) NewMemorySink(meta FileMeta) (Sink, error) {
	sink := &testSink{kind: "ram", path: "/sink/" + meta.Name}
	f.sinks = append(f.sinks, sink)
	return sink, nil
}

func textMessage(t *testing.T, frameType string, meta *FileMeta) Incoming {
	t.Helper()
	var frame []byte
	var err error
	if meta != nil {
		frame, err = EncodeMetaFrame(*meta)
	} else {
		frame, err = EncodeSimpleFrame(frameType)
	}
	require.NoError(t, err)
	return Incoming{IsString: true, Data: frame}
}

func TestReceiverSingleFile(t *testing.T) {
	factory := &testFactory{disk: true}

	var gotMeta FileMeta
	var gotPath string
	var progress []int64
	allDone := false

	r := NewReceiver(factory, ReceiverCallbacks{
		OnMeta:     func(meta FileMeta) { gotMeta = meta },
		OnProgress: func(_ FileMeta, received int64) { progress = append(progress, received) },
		OnFileDone: func(_ FileMeta, path string) { gotPath = path },
		OnAllDone:  func() { allDone = true },
	})

	meta := FileMeta{Name: "notes.txt", Size: 11, MimeType: "text/plain"}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &meta)))
	assert.Equal(t, ReceiverReceiving, r.State())
	assert.Equal(t, "notes.txt", gotMeta.Name)

	require.NoError(t, r.HandleMessage(Incoming{Data: []byte("hello ")}))
	require.NoError(t, r.HandleMessage(Incoming{Data: []byte("world")}))
	assert.Equal(t, []int64{6, 11}, progress)

	require.NoError(t, r.HandleMessage(textMessage(t, FrameEOF, nil)))
	assert.Equal(t, ReceiverIdle, r.State())
	assert.Equal(t, "/sink/notes.txt", gotPath)

	require.Len(t, factory.sinks, 1)
	assert.Equal(t, "hello world", factory.sinks[0].data.String())
	assert.True(t, factory.sinks[0].closed)

	require.NoError(t, r.HandleMessage(textMessage(t, FrameDoneAll, nil)))
	assert.True(t, allDone)
}

func TestReceiverSinkRouting(t *testing.T) {
	cases := []struct {
		name string
		size int64
		disk bool
		want string
	}{
		{"small file stays in RAM", 1024, true, "ram"},
		{"at threshold stays in RAM", DiskSinkThreshold, true, "ram"},
		{"above threshold goes to disk", DiskSinkThreshold + 1, true, "disk"},
		{"no disk available falls back", DiskSinkThreshold + 1, false, "ram"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory := &testFactory{disk: tc.disk}
			r := NewReceiver(factory, ReceiverCallbacks{})

			meta := FileMeta{Name: "f.bin", Size: tc.size}
			require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &meta)))

			require.Len(t, factory.sinks, 1)
			assert.Equal(t, tc.want, factory.sinks[0].kind)
		})
	}
}

func TestReceiverDiskFailureFallsBackToRAM(t *testing.T) {
	factory := &testFactory{disk: true, diskErr: errors.New("disk full")}
	r := NewReceiver(factory, ReceiverCallbacks{})

	meta := FileMeta{Name: "big.bin", Size: DiskSinkThreshold + 1}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &meta)))

	require.Len(t, factory.sinks, 1)
	assert.Equal(t, "ram", factory.sinks[0].kind)
}

func TestReceiverChunkBeforeMeta(t *testing.T) {
	r := NewReceiver(&testFactory{}, ReceiverCallbacks{})

	err := r.HandleMessage(Incoming{Data: []byte("stray bytes")})
	assert.ErrorIs(t, err, ErrChunkBeforeMeta)
}

func TestReceiverMetaWhileActive(t *testing.T) {
	r := NewReceiver(&testFactory{}, ReceiverCallbacks{})

	first := FileMeta{Name: "a.bin", Size: 10}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &first)))

	second := FileMeta{Name: "b.bin", Size: 10}
	err := r.HandleMessage(textMessage(t, FrameMeta, &second))
	assert.ErrorIs(t, err, ErrMetaWhileActive)
}

func TestReceiverFramesOutOfPlace(t *testing.T) {
	r := NewReceiver(&testFactory{}, ReceiverCallbacks{})

	err := r.HandleMessage(textMessage(t, FrameEOF, nil))
	assert.ErrorIs(t, err, ErrFrameOutOfPlace)

	meta := FileMeta{Name: "a.bin", Size: 10}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &meta)))

	err = r.HandleMessage(textMessage(t, FrameDoneAll, nil))
	assert.ErrorIs(t, err, ErrFrameOutOfPlace)
}

func TestReceiverUnknownFrame(t *testing.T) {
	r := NewReceiver(&testFactory{}, ReceiverCallbacks{})

	err := r.HandleMessage(Incoming{IsString: true, Data: []byte(`{"type":"resume"}`)})
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestReceiverAbortDiscardsSink(t *testing.T) {
	factory := &testFactory{disk: true}
	r := NewReceiver(factory, ReceiverCallbacks{})

	meta := FileMeta{Name: "partial.bin", Size: DiskSinkThreshold + 1}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &meta)))
	require.NoError(t, r.HandleMessage(Incoming{Data: []byte("some bytes")}))

	r.Abort()

	assert.Equal(t, ReceiverIdle, r.State())
	require.Len(t, factory.sinks, 1)
	assert.True(t, factory.sinks[0].aborted)
	assert.False(t, factory.sinks[0].closed)

	// A fresh meta starts cleanly after the abort
	next := FileMeta{Name: "next.bin", Size: 10}
	require.NoError(t, r.HandleMessage(textMessage(t, FrameMeta, &next)))
}
