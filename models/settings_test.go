package models

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestNewSettingsDefaults(t *testing.T) {
	s, err := NewSettings(SettingsInput{Format: "JPEG"})
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	if s.Format != FormatJPEG {
		t.Errorf("Expected jpg, got %s", s.Format)
	}
	opts, ok := s.Options.(JPEGOptions)
	if !ok {
		t.Fatalf("Expected JPEGOptions, got %T", s.Options)
	}
	if opts.Quality != DefaultQuality {
		t.Errorf("Expected default quality %d, got %d", DefaultQuality, opts.Quality)
	}
	if opts.Preset.Sampling != "4:2:2" || !opts.Preset.Progressive {
		t.Errorf("Expected medium preset, got %+v", opts.Preset)
	}
}

func TestNewSettingsPerFormatMapping(t *testing.T) {
	png, err := NewSettings(SettingsInput{Format: "png", Compression: intPtr(3)})
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	if got := png.Options.(PNGOptions).Level; got != PNGBest {
		t.Errorf("Expected PNGBest, got %d", got)
	}

	jpg, err := NewSettings(SettingsInput{Format: "jpg", Quality: intPtr(60), Compression: intPtr(3)})
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	preset := jpg.Options.(JPEGOptions).Preset
	if preset.Sampling != "4:4:4" || preset.Progressive || preset.Smoothing != 0 {
		t.Errorf("Expected high-fidelity baseline preset, got %+v", preset)
	}

	avif, err := NewSettings(SettingsInput{Format: "avif", Quality: intPtr(50)})
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	if got := avif.Options.(AVIFOptions); got.Speed != 8 || got.Quality != 50 {
		t.Errorf("Expected speed 8 quality 50, got %+v", got)
	}

	bmp, err := NewSettings(SettingsInput{Format: "bmp", Quality: intPtr(10)})
	if err != nil {
		t.Fatalf("NewSettings failed: %v", err)
	}
	if _, ok := bmp.Options.(BMPOptions); !ok {
		t.Errorf("Expected BMPOptions, got %T", bmp.Options)
	}
}

func TestNewSettingsRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   SettingsInput
		want error
	}{
		{"unknown format", SettingsInput{Format: "tga"}, ErrUnsupportedFormat},
		{"quality too high", SettingsInput{Format: "png", Quality: intPtr(101)}, ErrInvalidSettings},
		{"compression zero", SettingsInput{Format: "png", Compression: intPtr(0)}, ErrInvalidSettings},
		{"compression four", SettingsInput{Format: "jpg", Compression: intPtr(4)}, ErrInvalidSettings},
		{"zero width", SettingsInput{Format: "png", Resolution: &Resolution{Width: 0, Height: 10}}, ErrInvalidSettings},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSettings(tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestJobSummarize(t *testing.T) {
	s, _ := NewSettings(SettingsInput{Format: "png"})
	j := Job{
		ID:       "job-1",
		Settings: s,
		Mode:     ModeSequential,
		Items: []Item{
			{Index: 0, Filename: "a.png", Data: make([]byte, 10)},
			{Index: 1, Filename: "b.png", Data: make([]byte, 5)},
		},
	}
	sum := j.Summarize()
	if sum.InputBytes != 15 || len(sum.Files) != 2 || sum.Mode != "sequential" {
		t.Errorf("Unexpected summary %+v", sum)
	}
}
