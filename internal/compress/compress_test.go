package compress_test

import (
	"strings"
	"testing"

	"github.com/engramd/engram/internal/compress"
)

func TestCompress_ShortTextUnchanged(t *testing.T) {
	t.Parallel()

	text := "the ocean poem was short"
	res := compress.Compress(text, compress.Working)

	if res.CompressedText != text {
		t.Errorf("short text should pass through unchanged, got %q", res.CompressedText)
	}
	if res.CompressionRatio != 1.0 {
		t.Errorf("ratio = %v, want 1.0", res.CompressionRatio)
	}
	if res.OriginalLength != len(text) {
		t.Errorf("OriginalLength = %d, want %d", res.OriginalLength, len(text))
	}
	if res.TokensSaved != 0 {
		t.Errorf("TokensSaved = %d, want 0", res.TokensSaved)
	}
}

func TestCompress_LongTextShrinks(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a long historical record of things that happened. ", 200)
	res := compress.Compress(text, compress.Historical)

	if len(res.CompressedText) >= len(text) {
		t.Fatalf("compressed length %d not smaller than original %d",
			len(res.CompressedText), len(text))
	}
	if res.CompressionRatio >= 1.0 || res.CompressionRatio <= 0 {
		t.Errorf("ratio = %v, want in (0, 1)", res.CompressionRatio)
	}
	if res.TokensSaved <= 0 {
		t.Errorf("TokensSaved = %d, want > 0", res.TokensSaved)
	}
	if !strings.Contains(res.CompressedText, "[...]") {
		t.Error("truncated output should carry the ellipsis marker")
	}
}

func TestCompress_Idempotent(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("repeatable input for deterministic compression checks. ", 50)
	first := compress.Compress(text, compress.Reference)
	second := compress.Compress(text, compress.Reference)

	if first.CompressedText != second.CompressedText {
		t.Error("compressed text differs between identical calls")
	}
	if first.CompressionRatio != second.CompressionRatio {
		t.Errorf("ratio differs: %v vs %v", first.CompressionRatio, second.CompressionRatio)
	}
	if first.SemanticSignature != second.SemanticSignature {
		t.Error("signature differs between identical calls")
	}
}

func TestCompress_EmptyText(t *testing.T) {
	t.Parallel()

	res := compress.Compress("", compress.Core)
	if res.CompressedText != "" {
		t.Errorf("got %q, want empty", res.CompressedText)
	}
	if res.CompressionRatio != 1.0 {
		t.Errorf("ratio = %v, want 1.0", res.CompressionRatio)
	}
}

func TestCompress_UnknownCategoryFallsBack(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("unclassified text ", 500)
	res := compress.Compress(text, compress.Category("bogus"))

	if res.CompressedText != text {
		t.Error("unknown category must return the original uncompressed")
	}
	if res.CompressionRatio != 1.0 {
		t.Errorf("ratio = %v, want 1.0", res.CompressionRatio)
	}
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want compress.Category
	}{
		{
			name: "rule-like text is core",
			text: "Always greet the user by name. Never mention internal ids. This is an important rule.",
			want: compress.Core,
		},
		{
			name: "code block is reference",
			text: "Here is the snippet:\n```go\nfmt.Println(\"hi\")\n```",
			want: compress.Reference,
		},
		{
			name: "plain task note is working",
			text: "started drafting the release notes for the next version",
			want: compress.Working,
		},
		{
			name: "archive markers are historical",
			text: "This project was archived after the migration completed last year.",
			want: compress.Historical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := compress.DetectCategory(tt.text)
			if got != tt.want {
				t.Errorf("DetectCategory() = %v, want %v", got, tt.want)
			}
			// Classification must be stable across calls.
			if again := compress.DetectCategory(tt.text); again != got {
				t.Errorf("DetectCategory() not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, c := range compress.HierarchyCategories {
		got, err := compress.ParseCategory(string(c))
		if err != nil {
			t.Fatalf("ParseCategory(%q): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseCategory(%q) = %v", c, got)
		}
	}

	if _, err := compress.ParseCategory("episodic"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestSignature_Similarity(t *testing.T) {
	t.Parallel()

	a := compress.Signature("the mountain poem about high peaks")
	b := compress.Signature("a poem describing mountains and peaks")
	c := compress.Signature("zzzz qqqq xxxx")

	if a == "" || b == "" {
		t.Fatal("signatures should not be empty for word text")
	}

	near := compress.Similarity(a, b)
	far := compress.Similarity(a, c)
	if near <= far {
		t.Errorf("related texts scored %v, unrelated %v; want related higher", near, far)
	}
	if near < 0 || near > 1 || far < 0 || far > 1 {
		t.Errorf("similarity out of [0,1]: %v, %v", near, far)
	}
	if got := compress.Similarity(a, a); got != 1.0 {
		t.Errorf("self similarity = %v, want 1.0", got)
	}
	if got := compress.Similarity("", a); got != 0 {
		t.Errorf("empty signature similarity = %v, want 0", got)
	}
}

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	text := "the mountain poem describes the mountain wind and the mountain snow"
	got := compress.ExtractKeywords(text, 3)

	if len(got) == 0 || got[0] != "mountain" {
		t.Fatalf("ExtractKeywords() = %v, want mountain first", got)
	}
	if len(got) > 3 {
		t.Errorf("got %d keywords, want at most 3", len(got))
	}
	for _, w := range got {
		if w == "the" || w == "and" {
			t.Errorf("stopword %q leaked into keywords", w)
		}
	}

	if kws := compress.ExtractKeywords("", 5); kws != nil {
		t.Errorf("empty text should yield nil, got %v", kws)
	}
}
