package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTitleShortMessage(t *testing.T) {
	assert.Equal(t, "How do I make pasta?", TruncateTitle("How do I make pasta?"))
}

func TestTruncateTitleCollapsesNewlines(t *testing.T) {
	assert.Equal(t, "line one line two", TruncateTitle("line one\nline two"))
}

func TestTruncateTitleLongMessage(t *testing.T) {
	long := strings.Repeat("abcde ", 20)
	got := TruncateTitle(long)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 53)
}

func TestTruncateTitleMultibyteBoundary(t *testing.T) {
	long := strings.Repeat("中文标题测试", 20)
	got := TruncateTitle(long)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 53, len([]rune(got)))
}

func TestTruncateTitleEmpty(t *testing.T) {
	assert.Equal(t, "", TruncateTitle("   "))
}

func TestGenerateTitleWithoutProvider(t *testing.T) {
	svc := NewTitleService(nil)
	assert.Equal(t, "New Chat", svc.Generate(context.Background(), "explain quantum computing"))
}

func TestGenerateTitleEmptyMessage(t *testing.T) {
	svc := NewTitleService(nil)
	assert.Equal(t, "New Chat", svc.Generate(context.Background(), "  "))
}
