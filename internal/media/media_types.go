package media

import (
	_ "embed"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed media_types.toml
var mediaTypesTOML []byte

// Category is the semantic file-type category of a media file.
type Category string

const (
	CategoryAudio   Category = "audio"
	CategoryVideo   Category = "video"
	CategoryImage   Category = "image"
	CategoryUnknown Category = ""
)

type typeConfig struct {
	Extensions []string `toml:"extensions"`
	MimeTypes  []string `toml:"mime_types"`
}

type typesConfig struct {
	Audio typeConfig `toml:"audio"`
	Video typeConfig `toml:"video"`
	Image typeConfig `toml:"image"`
}

var (
	byExtension = map[string]Category{}
	byMimeType  = map[string]Category{}
	extForMime  = map[string]string{}
)

func init() {
	var config typesConfig
	if err := toml.Unmarshal(mediaTypesTOML, &config); err != nil {
		panic("media: invalid embedded media_types.toml: " + err.Error())
	}

	load := func(tc typeConfig, cat Category) {
		for _, ext := range tc.Extensions {
			byExtension[ext] = cat
		}
		for i, mime := range tc.MimeTypes {
			byMimeType[mime] = cat
			if len(tc.Extensions) > 0 {
				// Pair mime types with extensions positionally; extra mime
				// types fall back to the category's first extension.
				ext := tc.Extensions[0]
				if i < len(tc.Extensions) {
					ext = tc.Extensions[i]
				}
				extForMime[mime] = "." + ext
			}
		}
	}
	load(config.Audio, CategoryAudio)
	load(config.Video, CategoryVideo)
	load(config.Image, CategoryImage)
}

// CategoryForExtension maps a file extension (with or without the leading
// dot) to its semantic category.
func CategoryForExtension(ext string) Category {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return byExtension[ext]
}

// CategoryForMimeType maps a mime type to its semantic category.
func CategoryForMimeType(mime string) Category {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return byMimeType[mime]
}

// ExtensionFromMimeType returns a dotted extension for the given mime type,
// or the empty string if the type is not recognized.
func ExtensionFromMimeType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return extForMime[mime]
}
