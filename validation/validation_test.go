package validation

import (
	"errors"
	"testing"
)

func TestValidateURL_EdgeCases(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"  https://youtu.be/dQw4w9WgXcQ  ", false},
		{"http://example.com/path?query=1", false},
		{"https://example.com/path#fragment", false},
		{"http://example.com:8080", false},
		{"", true},
		{"   ", true},
		{"http://", true},
		{"ftp://example.com/video.mp4", true},
		{"not a url", true},
		{"https://www.youtube.com/watch?list=abc", true},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%s) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
		var ve *ValidationError
		if err != nil && !errors.As(err, &ve) {
			t.Errorf("ValidateURL(%s) returned %T, want *ValidationError", tt.url, err)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	allowed := []string{"ko", "en"}
	tests := []struct {
		in   string
		want string
	}{
		{"ko", "ko"},
		{"en", "en"},
		{"EN", "en"},
		{"en-US", "en"},
		{"ko_KR", "ko"},
		{"fr", "ko"},
		{"", "ko"},
		{"!!", "ko"},
	}

	for _, tt := range tests {
		if got := NormalizeLanguage(tt.in, allowed, "ko"); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLength(t *testing.T) {
	allowed := []int{100, 200, 500, 1000}
	tests := []struct {
		in   int
		want int
	}{
		{100, 100},
		{1000, 1000},
		{0, 200},
		{300, 200},
		{-5, 200},
	}

	for _, tt := range tests {
		if got := NormalizeLength(tt.in, allowed, 200); got != tt.want {
			t.Errorf("NormalizeLength(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
