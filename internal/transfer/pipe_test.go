package transfer

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beamdrop/internal/files"
)

// loopbackChannel feeds the sender's frames straight into a receiver,
// exercising the full wire protocol without a peer connection.
type loopbackChannel struct {
	r *Receiver
}

func (c *loopbackChannel) SendText(s string) error {
	return c.r.HandleMessage(Incoming{IsString: true, Data: []byte(s)})
}

func (c *loopbackChannel) Send(p []byte) error {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	return c.r.HandleMessage(Incoming{Data: chunk})
}

func (c *loopbackChannel) BufferedAmount() uint64                 { return 0 }
func (c *loopbackChannel) SetBufferedAmountLowThreshold(_ uint64) {}
func (c *loopbackChannel) OnBufferedAmountLow(_ func())           {}

func checksum(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return sha256.Sum256(data)
}

func TestSenderToReceiverLoopback(t *testing.T) {
	outDir := t.TempDir()

	var received []string
	allDone := false
	receiver := NewReceiver(DirSinkFactory{OutputDir: outDir}, ReceiverCallbacks{
		OnFileDone: func(_ FileMeta, path string) { received = append(received, path) },
		OnAllDone:  func() { allDone = true },
	})

	sender := NewSender(&loopbackChannel{r: receiver}, nil)
	sender.interFileDelay = 0

	batch := []files.FileInfo{
		writeTempFile(t, "empty.bin", 0),
		writeTempFile(t, "tiny.bin", 1),
		writeTempFile(t, "medium.bin", 12*ChunkSize+37),
	}

	require.NoError(t, sender.SendAll(context.Background(), batch))

	assert.True(t, allDone)
	require.Len(t, received, len(batch))

	for i, info := range batch {
		assert.Equal(t, filepath.Join(outDir, info.Name), received[i])
		assert.Equal(t, checksum(t, info.Path), checksum(t, received[i]))
	}
}

func TestLoopbackDuplicateNamesDeduplicated(t *testing.T) {
	outDir := t.TempDir()

	var received []string
	receiver := NewReceiver(DirSinkFactory{OutputDir: outDir}, ReceiverCallbacks{
		OnFileDone: func(_ FileMeta, path string) { received = append(received, path) },
	})

	sender := NewSender(&loopbackChannel{r: receiver}, nil)
	sender.interFileDelay = 0

	first := writeTempFile(t, "report.pdf", 100)
	second := writeTempFile(t, "report.pdf", 200)

	require.NoError(t, sender.SendAll(context.Background(), []files.FileInfo{first, second}))

	require.Len(t, received, 2)
	assert.Equal(t, filepath.Join(outDir, "report.pdf"), received[0])
	assert.Equal(t, filepath.Join(outDir, "report (1).pdf"), received[1])
	assert.Equal(t, checksum(t, second.Path), checksum(t, received[1]))
}

func TestLoopbackHostileNameStripped(t *testing.T) {
	outDir := t.TempDir()

	var received []string
	receiver := NewReceiver(DirSinkFactory{OutputDir: outDir}, ReceiverCallbacks{
		OnFileDone: func(_ FileMeta, path string) { received = append(received, path) },
	})

	meta := FileMeta{Name: "../../escape.txt", Size: 4}
	frame, err := EncodeMetaFrame(meta)
	require.NoError(t, err)

	require.NoError(t, receiver.HandleMessage(Incoming{IsString: true, Data: frame}))
	require.NoError(t, receiver.HandleMessage(Incoming{Data: []byte("data")}))
	eof, err := EncodeSimpleFrame(FrameEOF)
	require.NoError(t, err)
	require.NoError(t, receiver.HandleMessage(Incoming{IsString: true, Data: eof}))

	require.Len(t, received, 1)
	assert.Equal(t, filepath.Join(outDir, "escape.txt"), received[0])
}
