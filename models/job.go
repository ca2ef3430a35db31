package models

import (
	"fmt"
	"strings"
)

// Format is a target image format tag.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatBMP  Format = "bmp"
)

// Formats lists every target format the converter knows about.
var Formats = []Format{FormatPNG, FormatJPEG, FormatWebP, FormatAVIF, FormatBMP}

// ParseFormat normalizes a user supplied format name. "jpeg" is accepted as jpg.
func ParseFormat(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "jpeg" {
		n = "jpg"
	}
	for _, f := range Formats {
		if string(f) == n {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Extension returns the file extension (without dot) for outputs of this format.
func (f Format) Extension() string {
	return string(f)
}

// Resolution is a target box in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ExecutionMode says how a job's items are scheduled.
type ExecutionMode int

const (
	ModeParallel ExecutionMode = iota
	ModeSequential
)

func (m ExecutionMode) String() string {
	if m == ModeSequential {
		return "sequential"
	}
	return "parallel"
}

// Item is one uploaded image. Data is owned by whichever task processes it.
type Item struct {
	Index    int    // submission position
	Filename string // as uploaded
	Data     []byte
}

// Size is the raw byte length used for memory admission.
func (i Item) Size() int64 {
	return int64(len(i.Data))
}

// Delivery lists what happens to a finished archive besides returning it.
type Delivery struct {
	StorageKey      string            `json:"storage_key,omitempty"`
	SubDir          string            `json:"sub_dir,omitempty"`
	CallbackURL     string            `json:"callback_url,omitempty"`
	CallbackHeaders map[string]string `json:"-"`
}

// Job is one conversion request.
type Job struct {
	ID        string
	SessionID string
	Items     []Item
	Settings  Settings
	Mode      ExecutionMode
	Delivery  Delivery
}

// Result is a converted item ready for archiving.
type Result struct {
	Index    int
	Filename string
	Data     []byte
}

// Summary is the JSON-friendly job description kept in success/failure records.
type Summary struct {
	JobID       string      `json:"job_id"`
	SessionID   string      `json:"session_id,omitempty"`
	Format      Format      `json:"format"`
	Quality     *int        `json:"quality,omitempty"`
	Compression *int        `json:"compression,omitempty"`
	Resolution  *Resolution `json:"resolution,omitempty"`
	KeepAspect  bool        `json:"keep_aspect_ratio"`
	Files       []string    `json:"files"`
	InputBytes  int64       `json:"input_bytes"`
	Mode        string      `json:"mode"`
	StorageKey  string      `json:"storage_key,omitempty"`
}

// Summarize builds the record form of a job.
func (j Job) Summarize() Summary {
	s := Summary{
		JobID:       j.ID,
		SessionID:   j.SessionID,
		Format:      j.Settings.Format,
		Quality:     j.Settings.Quality,
		Compression: j.Settings.Compression,
		Resolution:  j.Settings.Resolution,
		KeepAspect:  j.Settings.KeepAspectRatio,
		Mode:        j.Mode.String(),
		StorageKey:  j.Delivery.StorageKey,
	}
	for _, it := range j.Items {
		s.Files = append(s.Files, it.Filename)
		s.InputBytes += it.Size()
	}
	return s
}
