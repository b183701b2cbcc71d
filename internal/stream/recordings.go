package stream

import (
	"net/http"
	"strconv"

	"github.com/lexiqai/consent-recorder/internal/audio"
)

// HandleRecording serves GET /recordings/{id} from the artifact store
func HandleRecording(store *audio.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := store.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "recording not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", a.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(a.Data)
	}
}
