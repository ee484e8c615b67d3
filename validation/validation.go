package validation

import (
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateURL checks the shape of a video URL. It never touches the network;
// reachability is the fetch tool's problem.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Message: "유튜브 URL이 제공되지 않았습니다."}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return &ValidationError{Message: "올바르지 않은 URL 형식입니다."}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Message: "URL은 http 또는 https로 시작해야 합니다."}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Message: "URL에 호스트가 없습니다."}
	}

	if strings.Contains(parsedURL.Host, "youtube.com") && parsedURL.Path == "/watch" {
		if parsedURL.Query().Get("v") == "" {
			return &ValidationError{Message: "유튜브 URL에 영상 ID가 없습니다."}
		}
	}

	return nil
}

// NormalizeLanguage reduces code to its base language ("ko-KR" -> "ko") and
// returns fallback when the result is not in allowed.
func NormalizeLanguage(code string, allowed []string, fallback string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return fallback
	}

	tag, err := language.Parse(code)
	if err != nil {
		return fallback
	}
	base, _ := tag.Base()

	if candidate := base.String(); slices.Contains(allowed, candidate) {
		return candidate
	}
	return fallback
}

// NormalizeLength returns length if it is one of allowed, otherwise fallback.
func NormalizeLength(length int, allowed []int, fallback int) int {
	if slices.Contains(allowed, length) {
		return length
	}
	return fallback
}
