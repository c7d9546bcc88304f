package httpapi

import (
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// soundContentType is raw 16-bit linear PCM at 16kHz mono, the format the
// telephony engine consumes directly.
const soundContentType = "audio/L16;rate=16000;channels=1"

// SoundRegistry hands out one-shot media URLs. A registered stream is consumed
// on the first fetch and then dropped; the engine never replays a sound id.
type SoundRegistry struct {
	mu      sync.Mutex
	streams map[string]io.Reader
}

func NewSoundRegistry() *SoundRegistry {
	return &SoundRegistry{streams: make(map[string]io.Reader)}
}

// Add registers a stream and returns its sound id.
func (sr *SoundRegistry) Add(stream io.Reader) string {
	id := uuid.NewString()
	sr.mu.Lock()
	sr.streams[id] = stream
	sr.mu.Unlock()
	return id
}

// Remove discards a stream that will never be fetched, e.g. when the playback
// it was synthesized for fails before the engine requests the media.
func (sr *SoundRegistry) Remove(id string) {
	sr.mu.Lock()
	delete(sr.streams, id)
	sr.mu.Unlock()
}

func (sr *SoundRegistry) take(id string) (io.Reader, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	stream, ok := sr.streams[id]
	if ok {
		delete(sr.streams, id)
	}
	return stream, ok
}

func (sr *SoundRegistry) Len() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.streams)
}

func (s *Server) handleSound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stream, ok := s.sounds.take(id)
	if !ok {
		respondError(w, http.StatusNotFound, "sound_not_found", "no sound with id "+id)
		return
	}

	w.Header().Set("Content-Type", soundContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, stream)
	if closer, ok := stream.(io.Closer); ok {
		_ = closer.Close()
	}
}
