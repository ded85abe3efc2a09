package services

import (
	"errors"
	"strings"
	"testing"

	"capstan/internal/manifest"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrTransfer, "downloading", "fetch anno", "rclone exited", cause)
	if !errors.Is(err, ErrTransfer) {
		t.Fatal("wrapped error should match ErrTransfer")
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should preserve cause")
	}
	for _, want := range []string{"downloading", "fetch anno", "rclone exited", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapNilMarkerDefaultsToExtraction(t *testing.T) {
	err := Wrap(nil, "extracting", "", "", nil)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction default, got %v", err)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := Wrap(ErrValidation, "", "", "", nil)
	if !strings.Contains(err.Error(), "pipeline failure") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want manifest.Status
	}{
		{Wrap(ErrTransfer, "downloading", "", "", nil), manifest.StatusDownloadFailed},
		{Wrap(ErrStorage, "preflight", "", "", nil), manifest.StatusSkipped},
		{Wrap(ErrFormat, "extracting", "", "", nil), manifest.StatusFailed},
		{Wrap(ErrExtraction, "extracting", "", "", nil), manifest.StatusFailed},
		{errors.New("untagged"), manifest.StatusFailed},
	}
	for _, tc := range cases {
		if got := FailureStatus(tc.err); got != tc.want {
			t.Errorf("FailureStatus(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
