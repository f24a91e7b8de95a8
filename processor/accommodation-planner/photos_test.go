package accommodationplanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPhotoURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://a0.muscache.com/im/pictures/miso/Hosting-5172/original/4f2c.jpeg", true},
		{"https://images.vrbo.com/d9a2b1/7018475/main.webp?impolicy=fcrop", true},
		{"http://cdn.example.co.uk/lodge/front.PNG", true},
		{"https://media.booking.com/image/12345678.gif", true},

		// Placeholder heuristics.
		{"https://example.com/images/placeholder.jpg", false},
		{"https://example.com/PLACEHOLDER-lodge.webp", false},
		{"https://example.com/listing/photo1.jpg", false},
		{"https://example.com/listing/Photo12.jpeg", false},
		{"https://example.com/listing/image3.png", false},
		{"https://example.com/0001/photo1.webp", false},
		{"https://example.com/img/placeholder2.gif", false},

		// Not a direct image.
		{"https://www.airbnb.com/rooms/12345", false},
		{"https://example.com/lodge.jpg.html", false},
		{"https://example.com/lodge.svg", false},

		// Not a usable domain.
		{"ftp://example.com/lodge.jpg", false},
		{"/relative/lodge.jpg", false},
		{"https://localhost/lodge.jpg", false},
		{"https://10.0.0.1/lodge.jpg", false},
		{"https://bad_host.com/lodge.jpg", false},
		{"https://example.notarealtld/lodge.jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPhotoURL(tt.url))
		})
	}
}

func TestSanitizePhotos(t *testing.T) {
	t.Run("strips sequential placeholders", func(t *testing.T) {
		got := SanitizePhotos([]string{
			"https://example.com/0001/photo1.jpg",
			"https://example.com/0001/photo2.jpg",
			"https://example.com/0001/photo3.jpg",
		})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("keeps order and caps at five", func(t *testing.T) {
		in := []string{
			"https://cdn.lodge.com/a.jpg",
			"https://cdn.lodge.com/placeholder.jpg",
			"https://cdn.lodge.com/b.jpg",
			"https://cdn.lodge.com/c.jpg",
			"https://cdn.lodge.com/d.jpg",
			"https://cdn.lodge.com/e.jpg",
			"https://cdn.lodge.com/f.jpg",
		}
		got := SanitizePhotos(in)
		assert.Equal(t, []string{
			"https://cdn.lodge.com/a.jpg",
			"https://cdn.lodge.com/b.jpg",
			"https://cdn.lodge.com/c.jpg",
			"https://cdn.lodge.com/d.jpg",
			"https://cdn.lodge.com/e.jpg",
		}, got)
	})

	t.Run("nil input yields empty list", func(t *testing.T) {
		got := SanitizePhotos(nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
