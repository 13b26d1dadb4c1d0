package recording

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"refract/internal/calib"
	"refract/internal/frame"
)

// magic identifies the container format and its revision.
var magic = [8]byte{'R', 'E', 'F', 'R', 'A', 'C', 'T', '1'}

// recordHeaderSize is camera index (2) + timestamp (8) + payload length (4).
const recordHeaderSize = 14

type headerJSON struct {
	Cameras []cameraJSON `json:"cameras"`
}

type cameraJSON struct {
	CameraStreamDescriptor
	Calibration *calib.LensModel `json:"calibration,omitempty"`
}

// File is a recording opened for reading. It satisfies Reader.
type File struct {
	f         *os.File
	cameras   []CameraStreamDescriptor
	models    map[string]calib.LensModel
	indexByID map[string]uint16
	dataStart int64

	// Per-camera scan state: byte offset of the next unread record and the
	// frame index handed out next.
	cursor    map[string]int64
	nextIndex map[string]int
}

// Open reads the container header and prepares per-camera cursors.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	var got [8]byte
	if _, err := io.ReadFull(f, got[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read recording magic: %w", err)
	}
	if got != magic {
		f.Close()
		return nil, fmt.Errorf("%s is not a refract recording", path)
	}

	var headerLen uint32
	if err := binary.Read(f, binary.BigEndian, &headerLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("read recording header length: %w", err)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("read recording header: %w", err)
	}

	var header headerJSON
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("parse recording header: %w", err)
	}
	if len(header.Cameras) == 0 {
		f.Close()
		return nil, fmt.Errorf("recording %s declares no camera streams", path)
	}

	dataStart := int64(len(magic)) + 4 + int64(headerLen)
	file := &File{
		f:         f,
		models:    make(map[string]calib.LensModel, len(header.Cameras)),
		indexByID: make(map[string]uint16, len(header.Cameras)),
		dataStart: dataStart,
		cursor:    make(map[string]int64, len(header.Cameras)),
		nextIndex: make(map[string]int, len(header.Cameras)),
	}
	for i, cam := range header.Cameras {
		file.cameras = append(file.cameras, cam.CameraStreamDescriptor)
		file.indexByID[cam.ID] = uint16(i)
		if cam.Calibration != nil {
			file.models[cam.ID] = *cam.Calibration
		}
		file.cursor[cam.ID] = dataStart
	}
	return file, nil
}

// Cameras lists the camera streams the recording carries.
func (r *File) Cameras() []CameraStreamDescriptor {
	out := make([]CameraStreamDescriptor, len(r.cameras))
	copy(out, r.cameras)
	return out
}

// Calibration returns the embedded lens model for a camera, if any.
func (r *File) Calibration(cameraID string) (calib.LensModel, bool) {
	model, ok := r.models[cameraID]
	return model, ok
}

// NextFrame returns the camera's next frame in capture order, or
// ErrEndOfStream once the recording is exhausted for that camera.
func (r *File) NextFrame(cameraID string) (*frame.Frame, error) {
	wantIdx, ok := r.indexByID[cameraID]
	if !ok {
		return nil, fmt.Errorf("recording has no camera %q", cameraID)
	}
	descriptor := r.cameras[wantIdx]
	expectedLen := descriptor.Width * descriptor.Height * descriptor.Channel.Format().Channels()

	offset := r.cursor[cameraID]
	var header [recordHeaderSize]byte
	for {
		if _, err := r.f.ReadAt(header[:], offset); err != nil {
			if err == io.EOF {
				return nil, ErrEndOfStream
			}
			return nil, fmt.Errorf("read frame record at offset %d: %w", offset, err)
		}
		camIdx := binary.BigEndian.Uint16(header[0:2])
		timestamp := int64(binary.BigEndian.Uint64(header[2:10]))
		payloadLen := binary.BigEndian.Uint32(header[10:14])
		next := offset + recordHeaderSize + int64(payloadLen)

		if camIdx != wantIdx {
			offset = next
			continue
		}
		if int(payloadLen) != expectedLen {
			return nil, fmt.Errorf("frame record for %s has %d payload bytes, want %d",
				cameraID, payloadLen, expectedLen)
		}

		pix := make([]byte, payloadLen)
		if _, err := r.f.ReadAt(pix, offset+recordHeaderSize); err != nil {
			return nil, fmt.Errorf("read frame payload for %s: %w", cameraID, err)
		}

		r.cursor[cameraID] = next
		index := r.nextIndex[cameraID]
		r.nextIndex[cameraID] = index + 1

		return &frame.Frame{
			Index:       index,
			TimestampNs: timestamp,
			Stage:       frame.StageRaw,
			Raster: &frame.Raster{
				Width:  descriptor.Width,
				Height: descriptor.Height,
				Format: descriptor.Channel.Format(),
				Pix:    pix,
			},
		}, nil
	}
}

// Close releases the underlying file handle.
func (r *File) Close() error {
	return r.f.Close()
}
