package recording

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"refract/internal/calib"
)

// CameraSpec declares one camera stream for a new recording.
type CameraSpec struct {
	Descriptor  CameraStreamDescriptor
	Calibration *calib.LensModel
}

// Writer appends frame records to a new recording file. It exists for
// capture tooling and test fixtures; the conversion pipeline only reads.
type Writer struct {
	f         *os.File
	indexByID map[string]uint16
	sizes     map[string]int
}

// Create writes the container header for the declared cameras.
func Create(path string, cameras []CameraSpec) (*Writer, error) {
	if len(cameras) == 0 {
		return nil, fmt.Errorf("a recording needs at least one camera stream")
	}

	header := headerJSON{Cameras: make([]cameraJSON, 0, len(cameras))}
	indexByID := make(map[string]uint16, len(cameras))
	sizes := make(map[string]int, len(cameras))
	for i, cam := range cameras {
		if _, dup := indexByID[cam.Descriptor.ID]; dup {
			return nil, fmt.Errorf("duplicate camera identifier %q", cam.Descriptor.ID)
		}
		indexByID[cam.Descriptor.ID] = uint16(i)
		sizes[cam.Descriptor.ID] = cam.Descriptor.Width * cam.Descriptor.Height *
			cam.Descriptor.Channel.Format().Channels()
		header.Cameras = append(header.Cameras, cameraJSON{
			CameraStreamDescriptor: cam.Descriptor,
			Calibration:            cam.Calibration,
		})
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode recording header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	if _, err := f.Write(magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("write recording magic: %w", err)
	}
	if err := binary.Write(f, binary.BigEndian, uint32(len(headerBytes))); err != nil {
		f.Close()
		return nil, fmt.Errorf("write recording header length: %w", err)
	}
	if _, err := f.Write(headerBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("write recording header: %w", err)
	}

	return &Writer{f: f, indexByID: indexByID, sizes: sizes}, nil
}

// WriteFrame appends one frame record for the camera.
func (w *Writer) WriteFrame(cameraID string, timestampNs int64, pix []byte) error {
	idx, ok := w.indexByID[cameraID]
	if !ok {
		return fmt.Errorf("recording has no camera %q", cameraID)
	}
	if want := w.sizes[cameraID]; len(pix) != want {
		return fmt.Errorf("frame payload for %s is %d bytes, want %d", cameraID, len(pix), want)
	}

	var header [recordHeaderSize]byte
	binary.BigEndian.PutUint16(header[0:2], idx)
	binary.BigEndian.PutUint64(header[2:10], uint64(timestampNs))
	binary.BigEndian.PutUint32(header[10:14], uint32(len(pix)))
	if _, err := w.f.Write(header[:]); err != nil {
		return fmt.Errorf("write frame record: %w", err)
	}
	if _, err := w.f.Write(pix); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Close flushes and closes the recording.
func (w *Writer) Close() error {
	return w.f.Close()
}
