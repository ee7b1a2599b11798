package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/engine"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/propagation"
	"github.com/specialistvlad/causalgrid/internal/query"
)

// errBadRequest marks malformed query parameters.
var errBadRequest = errors.New("bad request")

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrSchemaValidation),
		errors.Is(err, model.ErrUnitMismatch):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownNode),
		errors.Is(err, model.ErrUnresolvable),
		errors.Is(err, engine.ErrUnknownIntervention),
		errors.Is(err, query.ErrNoPath):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConsistency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ctxlog.FromContext(c.Request.Context()).Error("Request failed.", "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

// queryOptions reads depth and limit. Zero values fall back to the query
// defaults.
func queryOptions(c *gin.Context) ([]query.Option, error) {
	depth, err := intQuery(c, "depth")
	if err != nil {
		return nil, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return nil, err
	}
	return []query.Option{query.WithMaxDepth(depth), query.WithLimit(limit)}, nil
}

func (a *App) healthHandler(c *gin.Context) {
	ctxlog.FromContext(c.Request.Context()).Debug("Health check endpoint hit.", "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"snapshot_version": a.Engine().Snapshot().Version(),
	})
}

func (a *App) snapshotHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.Engine().Export(c.Request.Context()))
}

func (a *App) validationHandler(c *gin.Context) {
	report := a.Engine().Report()
	if report == nil {
		var err error
		if report, err = a.Engine().Validate(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, report)
}

type nodeResponse struct {
	Node       *model.Node `json:"node"`
	Requested  nodeid.ID   `json:"requested"`
	Chain      []nodeid.ID `json:"chain"`
	Weight     float64     `json:"weight"`
	Redirected bool        `json:"redirected"`
}

func (a *App) nodeHandler(c *gin.Context) {
	id := nodeid.ID(c.Param("id"))
	n, res, err := a.Engine().Snapshot().Node(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodeResponse{
		Node:       n,
		Requested:  id,
		Chain:      res.Chain,
		Weight:     res.Weight,
		Redirected: res.Redirected(),
	})
}

func (a *App) historyHandler(c *gin.Context) {
	id := nodeid.ID(c.Param("id"))
	versions, err := a.Engine().Graph().History(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(versions) == 0 {
		abortWithError(c, model.UnknownNodeError(id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "versions": versions})
}

func (a *App) descendantsHandler(c *gin.Context) {
	opts, err := queryOptions(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := a.Engine().Descendants(c.Request.Context(), nodeid.ID(c.Param("id")), opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *App) ancestorsHandler(c *gin.Context) {
	opts, err := queryOptions(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := a.Engine().Ancestors(c.Request.Context(), nodeid.ID(c.Param("id")), opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *App) strongestPathHandler(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		abortWithError(c, fmt.Errorf("%w: from and to are required", errBadRequest))
		return
	}
	opts, err := queryOptions(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := a.Engine().StrongestPath(c.Request.Context(), nodeid.ID(from), nodeid.ID(to), opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *App) chainsHandler(c *gin.Context) {
	from, err := model.ParseScale(c.Query("from_scale"))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: from_scale: %v", errBadRequest, err))
		return
	}
	to, err := model.ParseScale(c.Query("to_scale"))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: to_scale: %v", errBadRequest, err))
		return
	}
	opts, err := queryOptions(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := a.Engine().ScaleCrossingChains(c.Request.Context(), from, to, opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// simulateRequest names a loaded intervention or carries ad-hoc deltas.
// Option fields left unset keep the server defaults.
type simulateRequest struct {
	Intervention string               `json:"intervention"`
	Deltas       []model.Perturbation `json:"deltas"`
	Uncertainty  string               `json:"uncertainty"`
	Samples      int                  `json:"samples" binding:"gte=0,lte=100000"`
	Seed         *uint64              `json:"seed"`
	TopK         *int                 `json:"top_k" binding:"omitempty,gte=0"`
}

func (r *simulateRequest) options(base propagation.Options) (propagation.Options, error) {
	opts := base
	if r.Uncertainty != "" {
		mode, err := propagation.ParseMode(r.Uncertainty)
		if err != nil {
			return opts, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		opts.Uncertainty = mode
	}
	if r.Samples > 0 {
		opts.Samples = r.Samples
	}
	if r.Seed != nil {
		opts.Seed = *r.Seed
	}
	if r.TopK != nil {
		opts.TopK = *r.TopK
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return opts, nil
}

func (a *App) simulateHandler(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	eng := a.Engine()

	var iv *model.Intervention
	switch {
	case req.Intervention != "" && len(req.Deltas) > 0:
		abortWithError(c, fmt.Errorf("%w: give either intervention or deltas, not both", errBadRequest))
		return
	case req.Intervention != "":
		var err error
		if iv, err = eng.Intervention(req.Intervention); err != nil {
			abortWithError(c, err)
			return
		}
	case len(req.Deltas) > 0:
		iv = &model.Intervention{Name: "adhoc", Perturbations: req.Deltas}
	default:
		abortWithError(c, fmt.Errorf("%w: intervention or deltas is required", errBadRequest))
		return
	}

	opts, err := req.options(eng.SimulationOptions())
	if err != nil {
		abortWithError(c, err)
		return
	}
	report, err := eng.SimulateWith(c.Request.Context(), iv, opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
