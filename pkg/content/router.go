package content

import (
	"context"

	"github.com/Enchanted-Dev-stack/we-study/internal/types"
)

// Router sends video URLs to the transcript source and everything else to
// the page source. A nil source makes its URLs unavailable.
type Router struct {
	Transcripts types.ContentSource
	Pages       types.ContentSource
}

func NewRouter(transcripts, pages types.ContentSource) *Router {
	return &Router{Transcripts: transcripts, Pages: pages}
}

func (r *Router) Extract(ctx context.Context, rawURL string) (string, error) {
	source := r.Pages
	if IsVideoURL(rawURL) {
		source = r.Transcripts
	}
	if source == nil {
		return "", errUnsupported(rawURL)
	}
	return source.Extract(ctx, rawURL)
}
