package title

import "testing"

func TestClassify(t *testing.T) {
	c := New(DefaultMinSpecificLength, []string{"Terminal Emulator Window"})

	tests := []struct {
		name  string
		app   string
		title string
		want  Specificity
	}{
		{"empty", "org.gnome.Calculator", "", Generic},
		{"whitespace", "org.gnome.Calculator", "   ", Generic},
		{"short", "org.gnome.Calculator", "Calculator", Generic},
		{"14 runes", "app", "abcdefghijklmn", Generic},
		{"15 runes", "app", "abcdefghijklmno", Specific},
		{"multibyte counted as runes", "app", "ééééééééééééééé", Specific},
		{"bare app id", "gnome-system-monitor-app", "gnome-system-monitor-app", Generic},
		{"last dotted component", "org.example.VeryLongApplicationName", "verylongapplicationname", Generic},
		{"placeholder", "app", "Untitled Document", Generic},
		{"configured generic", "app", "terminal   emulator window", Generic},
		{"document title", "org.gnome.TextEditor", "notes.txt - Text Editor", Specific},
		{"evolution inbox", "org.gnome.Evolution", "Inbox (10842 unread)", Specific},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.app, tt.title); got != tt.want {
				t.Fatalf("Classify(%q, %q) = %v, want %v", tt.app, tt.title, got, tt.want)
			}
		})
	}
}

func TestZeroValueClassifierUsesDefaults(t *testing.T) {
	var c Classifier
	if got := c.Classify("app", "Mail"); got != Generic {
		t.Fatalf("got %v", got)
	}
	if got := c.Classify("app", "Loading…"); got != Generic {
		t.Fatalf("got %v", got)
	}
	if got := c.Classify("app", "Quarterly report.ods"); got != Specific {
		t.Fatalf("got %v", got)
	}
}
