package metadata

import (
	"strings"

	mp4tag "github.com/Sorrow446/go-mp4tag"
)

// readM4AExtendedTags reads freeform iTunes atoms from an M4A/MP4 file.
func readM4AExtendedTags(path string, sink Sink) {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return
	}
	defer mp4.Close()

	tags, err := mp4.Read()
	if err != nil {
		return
	}

	if tags.Composer != "" {
		sink.Set("composer", tags.Composer)
	}

	for name, value := range tags.Custom {
		if value == "" {
			continue
		}
		sink.Set(strings.ReplaceAll(strings.ToLower(name), " ", "_"), value)
	}
}
