package ginserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/services/poller"
)

// LoopInspector is the read-only view of the polling loop the handlers need.
type LoopInspector interface {
	State() poller.State
	Queries() domain.QuerySet
	Iterations() uint64
	LastCycle() time.Time
}

// Handler exposes the loop state over HTTP.
type Handler struct {
	loop LoopInspector
}

// NewHandler wires a loop into gin handlers.
func NewHandler(loop LoopInspector) *Handler {
	return &Handler{loop: loop}
}

type queryView struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
	SQL  string `json:"sql"`
}

type statusView struct {
	LastCycle  *time.Time  `json:"last_cycle,omitempty"`
	State      string      `json:"state"`
	Queries    []queryView `json:"queries"`
	Iterations uint64      `json:"iterations"`
}

// Health handles `GET /healthz`: 200 while the loop is alive, 503 once it terminated.
func (h *Handler) Health(c *gin.Context) {
	st := h.loop.State()
	if st == poller.StateTerminated {
		c.String(http.StatusServiceUnavailable, st.String())
		return
	}
	c.String(http.StatusOK, st.String())
}

// Status handles `GET /queries` with the active query set and loop counters.
func (h *Handler) Status(c *gin.Context) {
	set := h.loop.Queries()
	views := make([]queryView, 0, set.Len())
	for _, q := range set.Queries() {
		_, suffix := domain.SplitKey(q.Key)
		views = append(views, queryView{Key: q.Key, Kind: domain.ParseKind(suffix).String(), SQL: q.SQL})
	}

	out := statusView{
		State:      h.loop.State().String(),
		Iterations: h.loop.Iterations(),
		Queries:    views,
	}
	if lc := h.loop.LastCycle(); !lc.IsZero() {
		out.LastCycle = &lc
	}
	c.JSON(http.StatusOK, out)
}
