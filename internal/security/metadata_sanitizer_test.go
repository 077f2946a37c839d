package security

import "testing"

// TestNewMetadataSanitizer はMetadataSanitizerの生成をテストする。
func TestNewMetadataSanitizer(t *testing.T) {
	s := NewMetadataSanitizer()
	if s == nil {
		t.Fatal("NewMetadataSanitizer() returned nil")
	}
}

// TestSanitizeText_PlainText はプレーンテキストがそのまま通過することをテストする。
func TestSanitizeText_PlainText(t *testing.T) {
	s := NewMetadataSanitizer()

	got := s.SanitizeText("Blinding Lights")
	if got != "Blinding Lights" {
		t.Errorf("SanitizeText = %q, want %q", got, "Blinding Lights")
	}
}

// TestSanitizeText_StripsTags はHTMLタグが全て除去されることをテストする。
func TestSanitizeText_StripsTags(t *testing.T) {
	s := NewMetadataSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		// bluemondayはscript要素の中身ごと破棄する
		{"scriptタグ", `<script>alert("xss")</script>Song Title`, "Song Title"},
		{"装飾タグ", "<b>The Weeknd</b>", "The Weeknd"},
		{"ネストしたタグ", "<div><span>Daft Punk</span></div>", "Daft Punk"},
		{"imgタグ", `Title<img src="x" onerror="alert(1)">`, "Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_UnescapesEntities はエンティティが二重エスケープされないことをテストする。
func TestSanitizeText_UnescapesEntities(t *testing.T) {
	s := NewMetadataSanitizer()

	got := s.SanitizeText("AC/DC &amp; Friends")
	if got != "AC/DC & Friends" {
		t.Errorf("SanitizeText = %q, want %q", got, "AC/DC & Friends")
	}
}

// TestSanitizeText_TrimsWhitespace は前後の空白が削除されることをテストする。
func TestSanitizeText_TrimsWhitespace(t *testing.T) {
	s := NewMetadataSanitizer()

	got := s.SanitizeText("  \n\tMidnight City \n")
	if got != "Midnight City" {
		t.Errorf("SanitizeText = %q, want %q", got, "Midnight City")
	}
}

// TestSanitizeText_EmptyString は空文字列に空文字列を返すことをテストする。
func TestSanitizeText_EmptyString(t *testing.T) {
	s := NewMetadataSanitizer()

	if got := s.SanitizeText(""); got != "" {
		t.Errorf("SanitizeText(\"\") = %q, want \"\"", got)
	}
}

// TestSanitizeText_Idempotent は同一入力に対して冪等であることをテストする。
func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewMetadataSanitizer()

	input := "<em>One More Time</em> &amp; more"
	first := s.SanitizeText(input)
	second := s.SanitizeText(first)
	if first != second {
		t.Errorf("冪等性が破れている: first=%q second=%q", first, second)
	}
}

// TestMetadataSanitizerInterface はインターフェースを正しく実装していることをテストする。
func TestMetadataSanitizerInterface(t *testing.T) {
	var _ MetadataSanitizerService = NewMetadataSanitizer()
}
