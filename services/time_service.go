package services

import "time"

// DynamoDBのソートキーとして文字列比較で正しく並ぶように、
// 小数部を固定桁で保存する（RFC3339だと同一秒でキーが衝突する）
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(s string) time.Time {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t
	}
	// 旧形式（RFC3339）のレコードも読めるようにしておく
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
