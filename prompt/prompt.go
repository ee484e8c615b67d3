package prompt

import (
	"fmt"
	"path/filepath"
	"strings"
)

const instruction = "자막 텍스트와 키프레임 이미지들을 분석해서 영상을 %d자 이내로 요약해."

// Build assembles the summarization prompt. The instruction is fixed; callers
// only choose the length. The subtitle section is present only for non-empty
// subtitles, the keyframe list only for a non-empty list of paths. Keyframe
// paths are written as absolute paths.
func Build(length int, subtitles string, keyframes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, instruction, length)

	if subtitles != "" {
		b.WriteString("\n\n자막 내용:\n")
		b.WriteString(subtitles)
	}

	if len(keyframes) > 0 {
		b.WriteString("\n\n키프레임 이미지 파일들:")
		for i, path := range keyframes {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			fmt.Fprintf(&b, "\n이미지 %d: %s", i+1, path)
		}
	}

	return b.String()
}
