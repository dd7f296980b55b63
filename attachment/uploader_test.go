package attachment

import (
	"testing"
	"time"
)

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	got := objectName("a1_b2", "report.pdf", now, "nonce")
	expected := "chats/a1_b2/attachments/1700000000000-nonce-report.pdf"
	if got != expected {
		t.Errorf("objectName = %q; want %q", got, expected)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain name kept",
			input:    "photo.png",
			expected: "photo.png",
		},
		{
			name:     "path components stripped",
			input:    "../../etc/passwd",
			expected: "passwd",
		},
		{
			name:     "windows path components stripped",
			input:    `C:\Users\me\cv.docx`,
			expected: "cv.docx",
		},
		{
			name:     "spaces replaced",
			input:    "my holiday photo.jpg",
			expected: "my_holiday_photo.jpg",
		},
		{
			name:     "empty name gets placeholder",
			input:    "",
			expected: "file",
		},
		{
			name:     "dot only gets placeholder",
			input:    ".",
			expected: "file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	got := publicURL("demo-bucket", "chats/a1_b2/attachments/1-n-a b.png")
	expected := "https://storage.googleapis.com/demo-bucket/chats/a1_b2/attachments/1-n-a%20b.png"
	if got != expected {
		t.Errorf("publicURL = %q; want %q", got, expected)
	}
}
