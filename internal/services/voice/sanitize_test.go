package voice

import (
	"strings"
	"testing"
)

func TestSpeakableText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "你好，世界", "你好，世界"},
		{"bold stripped", "**重要** 提示", "重要 提示"},
		{"italic stripped", "*emphasis* here", "emphasis here"},
		{"heading stripped", "# 标题\n正文", "标题\n正文"},
		{"link keeps text", "see [the docs](https://example.com) now", "see the docs now"},
		{"image keeps alt", "![示意图](https://example.com/a.png)", "示意图"},
		{"inline code keeps content", "run `go test` locally", "run go test locally"},
		{"list markers stripped", "- one\n- two", "one\ntwo"},
		{"blockquote stripped", "> quoted line", "quoted line"},
		{"emoji stripped", "做得好 👍🎉", "做得好"},
		{"whitespace collapsed", "a    b\n\n\nc", "a b\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeakableText(tt.input); got != tt.want {
				t.Errorf("SpeakableText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSpeakableTextDropsCodeBlocks(t *testing.T) {
	input := "解释如下：\n```go\nfmt.Println(\"hi\")\n```\n就是这样"
	got := SpeakableText(input)

	if strings.Contains(got, "Println") {
		t.Errorf("Code block content should not be vocalized, got %q", got)
	}
	if !strings.Contains(got, "解释如下") || !strings.Contains(got, "就是这样") {
		t.Errorf("Surrounding prose should survive, got %q", got)
	}
}
