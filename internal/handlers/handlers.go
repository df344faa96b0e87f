package handlers

import (
	"github.com/zfogg/clipstream/backend/internal/notify"
	"github.com/zfogg/clipstream/backend/internal/search"
	"github.com/zfogg/clipstream/backend/internal/storage"
	"github.com/zfogg/clipstream/backend/internal/video"
)

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	store     storage.MediaStore
	processor *video.Processor
	search    *search.Client
	notifyHub *notify.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(store storage.MediaStore, processor *video.Processor) *Handlers {
	return &Handlers{
		store:     store,
		processor: processor,
	}
}

// SetSearchClient sets the Elasticsearch search client
func (h *Handlers) SetSearchClient(searchClient *search.Client) {
	h.search = searchClient
}

// SetNotifyHub sets the hub used for real-time event pushes
func (h *Handlers) SetNotifyHub(hub *notify.Hub) {
	h.notifyHub = hub
}
