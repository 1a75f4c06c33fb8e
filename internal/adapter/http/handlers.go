package http

import (
	"net/http"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type filtersResponse struct {
	Filters domain.FilterState `json:"filters"`
	Key     string             `json:"key"`
	Changed *bool              `json:"changed,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type pendingResponse struct {
	Status    string `json:"status"`
	FilterKey string `json:"filter_key"`
}

type overlayResponse struct {
	*domain.Snapshot
	Source  domain.Source        `json:"source"`
	Items   []domain.RenderItem  `json:"items"`
	Legend  []domain.LegendEntry `json:"legend"`
	Message string               `json:"message,omitempty"`
}

type legendResponse struct {
	Source    domain.Source        `json:"source"`
	MaxWeight float64              `json:"max_weight"`
	Legend    []domain.LegendEntry `json:"legend"`
}

func (s *Server) handleGetFilters(c *gin.Context) {
	f := s.overlay.Filters()
	c.JSON(http.StatusOK, filtersResponse{Filters: f, Key: f.Key()})
}

func (s *Server) handlePatchFilters(c *gin.Context) {
	var patch domain.FilterPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		f := s.overlay.Filters()
		c.JSON(http.StatusBadRequest, filtersResponse{Filters: f, Key: f.Key(), Error: err.Error()})
		return
	}

	f, changed, err := s.overlay.Apply(c.Request.Context(), patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, filtersResponse{Filters: f, Key: f.Key(), Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, filtersResponse{Filters: f, Key: f.Key(), Changed: &changed})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.overlay.Refresh()
	c.JSON(http.StatusAccepted, pendingResponse{Status: "scheduled", FilterKey: s.overlay.Filters().Key()})
}

// current returns the published snapshot, or writes 202 pending when the
// overlay was invalidated and no pass for the new filter key has landed.
func (s *Server) current(c *gin.Context) (*domain.Snapshot, bool) {
	snap, ok := s.overlay.Latest()
	if !ok {
		s.writePending(c)
		return nil, false
	}
	return snap, true
}

func (s *Server) writePending(c *gin.Context) {
	c.JSON(http.StatusAccepted, pendingResponse{Status: "pending", FilterKey: s.overlay.Filters().Key()})
}

func (s *Server) handleOverlay(c *gin.Context) {
	snap, ok := s.current(c)
	if !ok {
		return
	}
	items := snap.RenderItems()
	if items == nil {
		items = []domain.RenderItem{}
	}
	c.JSON(http.StatusOK, overlayResponse{
		Snapshot: snap,
		Source:   snap.Source(),
		Items:    items,
		Legend:   snap.Legend(),
		Message:  snap.Message(),
	})
}

func (s *Server) handleOverlayGeoJSON(c *gin.Context) {
	var viewport *domain.Viewport
	if bbox := c.Query("bbox"); bbox != "" {
		v, err := domain.ParseBBox(bbox)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		viewport = &v
	}

	snap, ok := s.current(c)
	if !ok {
		return
	}
	items := snap.RenderItems()
	if viewport != nil {
		items = viewport.Filter(items)
	}

	data, err := featureCollection(items).MarshalJSON()
	if err != nil {
		s.logger.Error("encode geojson", "pass_id", snap.PassID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode geojson"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (s *Server) handleLegend(c *gin.Context) {
	snap, ok := s.overlay.Latest()
	if snap == nil {
		c.JSON(http.StatusOK, legendResponse{
			Source:    domain.SourceNone,
			MaxWeight: 1,
			Legend:    domain.NewColorScale(domain.DefaultPalette, 1).Legend(),
		})
		return
	}
	if !ok {
		s.writePending(c)
		return
	}
	c.JSON(http.StatusOK, legendResponse{
		Source:    snap.Source(),
		MaxWeight: maxWeight(snap),
		Legend:    snap.Legend(),
	})
}

func maxWeight(snap *domain.Snapshot) float64 {
	if snap.Risk != nil && snap.Risk.Source != domain.SourceNone {
		return snap.Risk.MaxWeight
	}
	if snap.Historical != nil && snap.Historical.MaxWeight > 0 {
		return snap.Historical.MaxWeight
	}
	return 1
}
