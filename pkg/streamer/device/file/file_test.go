package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func collect(t *testing.T, d *FileDevice) []byte {
	t.Helper()
	var out []byte
	if err := d.Start(context.Background(), func(b []byte) {
		out = append(out, b...)
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return out
}

func TestRawCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq")
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := NewFileDevice(path, 256, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	out := collect(t, d)
	if !bytes.Equal(out, data) {
		t.Fatalf("replayed %d bytes, want %d identical bytes", len(out), len(data))
	}
}

func TestWAVCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	samples := []int{0, -32768, 32767, 256, -256, 0}
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           samples,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	d, err := NewFileDevice(path, 64, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	out := collect(t, d)
	want := []byte{128, 0, 255, 129, 127, 128}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestStopEndsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq")
	if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := NewFileDevice(path, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	blocks := 0
	err = d.Start(context.Background(), func([]byte) {
		blocks++
		if blocks == 3 {
			d.Stop()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if blocks != 3 {
		t.Fatalf("got %d blocks after stop, want 3", blocks)
	}
}

func TestBadReadSize(t *testing.T) {
	if _, err := NewFileDevice("unused", 3, false); err == nil {
		t.Fatal("expected error for odd read size")
	}
}
