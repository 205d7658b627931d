package transfer

import (
	"encoding/json"
	"fmt"
)

// Control frame types. Control frames travel as JSON text messages in the
// same ordered stream as the raw binary chunks, so a meta always precedes
// the chunks it describes and eof always follows them.
const (
	FrameMeta    = "meta"
	FrameEOF     = "eof"
	FrameDoneAll = "done_all"
)

// FileMeta announces the next file about to stream.
type FileMeta struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Frame is a decoded control frame; Meta is set only for meta frames.
type Frame struct {
	Type string
	Meta FileMeta
}

// Incoming is one message received from the data channel.
type Incoming struct {
	IsString bool
	Data     []byte
}

type metaFrame struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type simpleFrame struct {
	Type string `json:"type"`
}

// EncodeMetaFrame serializes a meta control frame.
func EncodeMetaFrame(meta FileMeta) ([]byte, error) {
	return json.Marshal(metaFrame{
		Type:     FrameMeta,
		Name:     meta.Name,
		Size:     meta.Size,
		MimeType: meta.MimeType,
	})
}

// EncodeSimpleFrame serializes an eof or done_all control frame.
func EncodeSimpleFrame(frameType string) ([]byte, error) {
	return json.Marshal(simpleFrame{Type: frameType})
}

// DecodeFrame parses a JSON text message into a control frame.
func DecodeFrame(data []byte) (Frame, error) {
	var raw metaFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("decode control frame: %w", err)
	}

	switch raw.Type {
	case FrameMeta:
		return Frame{
			Type: FrameMeta,
			Meta: FileMeta{Name: raw.Name, Size: raw.Size, MimeType: raw.MimeType},
		}, nil
	case FrameEOF, FrameDoneAll:
		return Frame{Type: raw.Type}, nil
	default:
		return Frame{}, WrapError("decode control frame", ErrUnknownFrame, raw.Type)
	}
}
