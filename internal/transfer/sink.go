package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"beamdrop/internal/utils"
)

// Sink is the receive-side destination for one file's bytes.
type Sink interface {
	Write(p []byte) (int, error)

	// Close finalizes the sink; after Close the file is complete on disk.
	Close() error

	// Abort discards the sink. A partially written disk file is deleted;
	// there is no partial-completion marker to leave behind.
	Abort() error

	// Path is the destination path, known once the sink is created (disk)
	// or finalized (memory).
	Path() string
}

// SinkFactory chooses between the streaming disk path and the RAM path.
// Injecting it keeps both paths testable without touching the filesystem.
type SinkFactory interface {
	// DiskAvailable reports whether the streaming disk path can be used.
	DiskAvailable() bool

	// NewDiskSink opens a write stream immediately. An error here is not
	// fatal: the receiver falls back to the RAM path.
	NewDiskSink(meta FileMeta) (Sink, error)

	// NewMemorySink buffers chunks in RAM and writes the assembled file on
	// Close.
	NewMemorySink(meta FileMeta) (Sink, error)
}

// DirSinkFactory writes received files into a directory, deduplicating
// names with a " (n)" suffix.
type DirSinkFactory struct {
	OutputDir string
}

func (f DirSinkFactory) DiskAvailable() bool { return true }

func (f DirSinkFactory) destination(meta FileMeta) (string, error) {
	dir := f.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	// Base strips any path separators a hostile sender might embed
	return utils.GetUniqueFilename(filepath.Join(dir, filepath.Base(meta.Name))), nil
}

func (f DirSinkFactory) NewDiskSink(meta FileMeta) (Sink, error) {
	path, err := f.destination(meta)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, NewFileError("open disk sink", meta.Name, err)
	}
	return &fileSink{file: file, path: path}, nil
}

func (f DirSinkFactory) NewMemorySink(meta FileMeta) (Sink, error) {
	return &memorySink{factory: f, meta: meta}, nil
}

type fileSink struct {
	file *os.File
	path string
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *fileSink) Close() error {
	return s.file.Close()
}

func (s *fileSink) Abort() error {
	s.file.Close()
	return os.Remove(s.path)
}

func (s *fileSink) Path() string {
	return s.path
}

type memorySink struct {
	factory DirSinkFactory
	meta    FileMeta
	chunks  [][]byte
	size    int
	path    string
}

func (s *memorySink) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	s.chunks = append(s.chunks, chunk)
	s.size += len(p)
	return len(p), nil
}

func (s *memorySink) Close() error {
	path, err := s.factory.destination(s.meta)
	if err != nil {
		return err
	}

	assembled := make([]byte, 0, s.size)
	for _, chunk := range s.chunks {
		assembled = append(assembled, chunk...)
	}
	if err := os.WriteFile(path, assembled, 0644); err != nil {
		return NewFileError("write file", s.meta.Name, err)
	}

	s.path = path
	s.chunks = nil
	return nil
}

func (s *memorySink) Abort() error {
	s.chunks = nil
	return nil
}

func (s *memorySink) Path() string {
	return s.path
}
