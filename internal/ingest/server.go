package ingest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
	"github.com/fr4iser90/FoundryCord-sub001/internal/transport"
)

// Routes served by the backend.
const (
	TokenPath     = "/api/state/token"
	SnapshotPath  = "/api/state/snapshot"
	SnapshotsPath = "/api/state/snapshots"
)

const (
	maxSnapshotBytes = 5 << 20
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handlers serves the token and snapshot endpoints.
type Handlers struct {
	store  *Store
	logger *zap.Logger
}

func NewHandlers(store *Store, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, logger: logger}
}

// NewRouter builds the gin engine with recovery, CORS and request logging.
func NewRouter(h *Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type", transport.HeaderSecurityToken},
	}))
	router.Use(RequestLogger(logger))

	router.GET(TokenPath, h.IssueToken)
	router.POST(SnapshotPath, h.ReceiveSnapshot)
	router.GET(SnapshotsPath, h.ListSnapshots)
	router.GET(SnapshotsPath+"/:id", h.GetSnapshot)
	return router
}

// IssueToken answers {"token": "..."}.
func (h *Handlers) IssueToken(c *gin.Context) {
	t, err := h.store.IssueToken()
	if err != nil {
		h.logger.Error("token_issue_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": t.Value, "expiresAt": t.ExpiresAt})
}

// ReceiveSnapshot validates the security token header and stores the body.
func (h *Handlers) ReceiveSnapshot(c *gin.Context) {
	token := c.GetHeader(transport.HeaderSecurityToken)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		return
	}
	if err := h.store.CheckToken(token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid_token"})
			return
		}
		h.logger.Error("token_check_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSnapshotBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body_too_large"})
		return
	}
	s, err := (&snapshot.JSONParser{}).Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_snapshot"})
		return
	}

	rec := SnapshotRecord{
		Timestamp:  s.Timestamp,
		Collectors: len(s.Names()),
		Payload:    string(body),
	}
	for _, name := range s.Names() {
		if s.Failed(name) {
			rec.Failed++
		}
	}
	if err := h.store.SaveSnapshot(&rec); err != nil {
		h.logger.Error("snapshot_store_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	h.logger.Info("snapshot_received",
		zap.String("id", rec.ID),
		zap.Int("collectors", rec.Collectors),
		zap.Int("failed", rec.Failed),
	)
	c.JSON(http.StatusAccepted, gin.H{"id": rec.ID})
}

// ListSnapshots returns stored snapshot metadata, newest first.
func (h *Handlers) ListSnapshots(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = min(n, maxListLimit)
	}
	recs, err := h.store.Snapshots(limit)
	if err != nil {
		h.logger.Error("snapshot_list_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": recs})
}

// GetSnapshot returns the stored snapshot body unchanged.
func (h *Handlers) GetSnapshot(c *gin.Context) {
	rec, err := h.store.Snapshot(c.Param("id"))
	if errors.Is(err, ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("snapshot_load_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(rec.Payload))
}
