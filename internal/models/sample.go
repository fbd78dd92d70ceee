package models

// SamplePathPrefix is the URL prefix sample photos are served under.
const SamplePathPrefix = "/sample_photos/"

// SampleImages is the response of GET /api/getSampleImages.
type SampleImages struct {
	Images []string `json:"images"`
}

// SampleRef builds the reference the picker stores for a sample name.
func SampleRef(name string) string {
	return SamplePathPrefix + name
}
