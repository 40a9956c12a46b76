package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Time allowed to write a message to the peer
const writeWait = 10 * time.Second

// Message types of the price stream
const (
	StreamPrices  = "prices"
	StreamSummary = "summary"
)

// StreamMessage is one frame of the price stream. Prices frames carry a
// contiguous slice starting at Offset; the final summary frame carries the report.
type StreamMessage struct {
	Type   string             `json:"type"`
	ID     string             `json:"id"`
	Offset int                `json:"offset,omitempty"`
	Prices []float64          `json:"prices,omitempty"`
	Report *simulation.Report `json:"report,omitempty"`
}

// StreamSimulationHandler streams the prices of a stored run over a websocket
// in chunks, followed by the report and a close frame.
func (h *Handlers) StreamSimulationHandler(c *gin.Context) {
	run, err := h.runs.GetRun(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	id := run.Report.ID
	log := h.log.WithField("run_id", id)
	for offset := 0; offset < len(run.Prices); offset += h.chunkSize {
		end := min(offset+h.chunkSize, len(run.Prices))
		msg := StreamMessage{Type: StreamPrices, ID: id, Offset: offset, Prices: run.Prices[offset:end]}
		if err := writeJSON(conn, msg); err != nil {
			log.Warnf("Stream aborted at offset %d: %v", offset, err)
			return
		}
	}

	if err := writeJSON(conn, StreamMessage{Type: StreamSummary, ID: id, Report: run.Report}); err != nil {
		log.Warnf("Stream aborted before summary: %v", err)
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Debugf("Failed to set close deadline: %v", err)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		log.Debugf("Failed to send close frame: %v", err)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
