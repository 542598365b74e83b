package services

import "strings"

// タスク作成の指示とみなすトリガーフレーズ（部分一致・大文字小文字無視）
var taskTriggerPhrases = []string{
	"create task",
	"make a task",
	"new task",
}

// IsTaskCreationPrompt はメッセージがタスク作成依頼かどうかを判定する。
// 単純な部分文字列マッチなので言い換えは拾えない（既知の制限）。
func IsTaskCreationPrompt(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range taskTriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
