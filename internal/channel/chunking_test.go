package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_NoChunkingWhenDisabled(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 5000)
	if got := SplitText(text, ChunkConfig{}); len(got) != 1 || got[0] != text {
		t.Fatalf("expected text unchanged, got %d chunks", len(got))
	}
}

func TestSplitText_Blank(t *testing.T) {
	t.Parallel()
	if got := SplitText("  \n ", ChunkConfig{MaxLength: 10}); got != nil {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

func TestSplitText_ShortUnchanged(t *testing.T) {
	t.Parallel()
	got := SplitText("hello world", ChunkConfig{MaxLength: 100})
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitText_SplitsAtLines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 100) + "\n" + strings.Repeat("b", 100)
	got := SplitText(text, ChunkConfig{MaxLength: 110})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != strings.Repeat("a", 100) || got[1] != strings.Repeat("b", 100) {
		t.Errorf("unexpected chunks: %q", got)
	}
}

func TestSplitText_ForceSplitsLongLine(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("z", 250)
	got := SplitText(text, ChunkConfig{MaxLength: 100})
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if strings.Join(got, "") != text {
		t.Error("force split lost content")
	}
	for i, c := range got {
		if len(c) > 100 {
			t.Errorf("chunk %d has %d bytes", i, len(c))
		}
	}
}

func TestSplitText_NeverSplitsRunes(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("日本語", 40)
	got := SplitText(text, ChunkConfig{MaxLength: 50})
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if len(c) > 50 {
			t.Errorf("chunk %d has %d bytes", i, len(c))
		}
	}
	if strings.Join(got, "") != text {
		t.Error("content lost")
	}
}

func TestSplitText_ReopensCodeBlocks(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("intro\n```go\n")
	for range 30 {
		b.WriteString("fmt.Println(\"hello, world\")\n")
	}
	b.WriteString("```\noutro")

	const maxLen = 200
	got := SplitText(b.String(), ChunkConfig{MaxLength: maxLen, PreserveBlocks: true})
	if len(got) < 3 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for i, c := range got {
		if len(c) > maxLen {
			t.Errorf("chunk %d has %d bytes, max %d", i, len(c), maxLen)
		}
		if n := strings.Count(c, "```"); n%2 != 0 {
			t.Errorf("chunk %d has unbalanced fences (%d):\n%s", i, n, c)
		}
	}
	if !strings.HasPrefix(got[1], "```go\n") {
		t.Errorf("second chunk should reopen the block, got %q", got[1][:10])
	}
	if !strings.HasSuffix(got[len(got)-1], "outro") {
		t.Errorf("last chunk = %q", got[len(got)-1])
	}
}

func TestSendChunked(t *testing.T) {
	t.Parallel()

	tr := &MockTransport{MaxLength: 10}
	err := SendChunked(context.Background(), tr, 9, "aaaaaaaa\nbbbbbbbb", ChunkConfig{MaxLength: 2000})
	if err != nil {
		t.Fatalf("SendChunked: %v", err)
	}
	sent := tr.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].ChannelID != 9 || sent[0].Text != "aaaaaaaa" || sent[1].Text != "bbbbbbbb" {
		t.Errorf("unexpected messages: %+v", sent)
	}
}

func TestSendChunked_Empty(t *testing.T) {
	t.Parallel()
	err := SendChunked(context.Background(), &MockTransport{}, 1, "", ChunkConfig{})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestSendChunked_StopsOnError(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("boom")
	tr := &MockTransport{
		MaxLength: 5,
		SendFunc: func(context.Context, uint64, string) error {
			calls++
			return boom
		},
	}
	err := SendChunked(context.Background(), tr, 1, "aaaa\nbbbb\ncccc", ChunkConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
