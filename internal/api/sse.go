package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/graphmart/graphmart/internal/deploy"
)

// writeSSE writes one pipeline event as a server-sent event frame: the event
// type on the event line, the JSON payload on the data line.
func writeSSE(w io.Writer, ev deploy.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("could not serialize %s event: %w", ev.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
