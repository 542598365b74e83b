package services

import (
	"regexp"
	"strings"
)

// 改行、または「文末のピリオド＋改行」を段落の区切りとみなす
var responseSplitPattern = regexp.MustCompile(`\n\s*|\.\s*\n`)

// FormatResponseWithDashes は生成AIの応答を箇条書きに整形する。
// 文末のピリオドと既存の「- 」は取り除くので、再整形しても結果は変わらない。
func FormatResponseWithDashes(response string) string {
	segments := responseSplitPattern.Split(response, -1)

	var points []string
	for _, segment := range segments {
		// マークダウンの強調記号を除去
		segment = strings.NewReplacer(`\`, "", "*", "").Replace(segment)
		segment = strings.TrimSpace(segment)
		segment = strings.TrimPrefix(segment, "- ")
		segment = strings.TrimSuffix(segment, ".")
		if segment == "" {
			continue
		}
		points = append(points, "- "+segment)
	}

	return strings.Join(points, "\n\n")
}
