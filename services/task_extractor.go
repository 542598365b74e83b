package services

import (
	"regexp"
	"strings"
	"time"

	"mslcrm/models"
)

// TaskExtractor はメッセージからタスク下書きを組み立てる。
// 抽出ロジックを差し替えられるようにインターフェースにしてある。
type TaskExtractor interface {
	Extract(message string, userID string) models.TaskDraft
}

var studyDetailsPattern = regexp.MustCompile(`(?i)send (.*?) details of study x`)

// PatternTaskExtractor は正規表現1本の抽出ルール。
// パターンに合わない場合はメッセージ全文をそのまま説明文にする。
type PatternTaskExtractor struct {
	now func() time.Time
}

func NewPatternTaskExtractor() *PatternTaskExtractor {
	return &PatternTaskExtractor{now: time.Now}
}

func (e *PatternTaskExtractor) Extract(message string, userID string) models.TaskDraft {
	draft := models.TaskDraft{
		TaskAssignedTo: userID,
		TaskCreatedBy:  userID,
		Status:         models.TaskStatusPending,
	}

	if m := studyDetailsPattern.FindStringSubmatch(message); m != nil {
		draft.TaskDescription = "Send " + m[1] + " details of study X"
		draft.TaskRequestedBy = strings.TrimSpace(m[1])
	} else {
		draft.TaskDescription = message
		draft.TaskRequestedBy = "User"
	}

	// 期限は常に7日後（日付のみ）
	draft.DueDate = e.now().UTC().AddDate(0, 0, 7).Format("2006-01-02")

	return draft
}
