package gcs

import "testing"

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		s    *Storage
		key  string
		want string
	}{
		{name: "bucket url", s: &Storage{bucket: "tutorials"}, key: "images/a.png", want: "https://storage.googleapis.com/tutorials/images/a.png"},
		{name: "cdn domain", s: &Storage{bucket: "tutorials", cdnDomain: "media.example.com"}, key: "/audio/a.mp3", want: "https://media.example.com/audio/a.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.PublicURL(tt.key); got != tt.want {
				t.Fatalf("PublicURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCloseNilClient(t *testing.T) {
	if err := (&Storage{}).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
