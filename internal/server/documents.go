package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/enforce"
	"github.com/authz-engine/pep-core/internal/store"
	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

// DocumentType declares the reference resource to the PDP.
var DocumentType = enforce.ResourceType{
	Name: "document",
	SupportedProperties: []string{
		scope.PropertyOwnerTenantID,
		scope.PropertyResourceID,
		scope.PropertyOwnerID,
	},
}

// DocumentBackend is the storage surface the handlers need.
type DocumentBackend interface {
	List(ctx context.Context, sc scope.AccessScope) ([]store.Document, error)
	Get(ctx context.Context, id uuid.UUID, sc scope.AccessScope) (*store.Document, error)
	Insert(ctx context.Context, doc *store.Document) error
	Update(ctx context.Context, id uuid.UUID, sc scope.AccessScope, set map[string]any) error
	Delete(ctx context.Context, id uuid.UUID, sc scope.AccessScope) error
}

// DocumentAPI serves the reference documents resource with full enforcement:
// reads carry the compiled scope into the query, mutations run the prefetch
// and scoped-write protocol.
type DocumentAPI struct {
	enforcer *enforce.PolicyEnforcer
	guard    *enforce.MutationGuard
	docs     DocumentBackend
	logger   *zap.Logger
}

// NewDocumentAPI wires the handlers.
func NewDocumentAPI(enforcer *enforce.PolicyEnforcer, guard *enforce.MutationGuard, docs DocumentBackend, logger *zap.Logger) *DocumentAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentAPI{enforcer: enforcer, guard: guard, docs: docs, logger: logger}
}

// RegisterRoutes mounts the document endpoints.
func (a *DocumentAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/documents", a.listDocuments)
	router.GET("/documents/:id", a.getDocument)
	router.POST("/documents", a.createDocument)
	router.PUT("/documents/:id", a.updateDocument)
	router.DELETE("/documents/:id", a.deleteDocument)
}

// tenantContextFrom builds the tenant context from query parameters. The
// root tenant defaults to the caller's own tenant.
func tenantContextFrom(c *gin.Context, sec types.SecurityContext) *types.TenantContext {
	tc := &types.TenantContext{
		Mode:        types.TenantModeSubtree,
		BarrierMode: types.BarrierModeAll,
	}
	if sec.SubjectTenantID != uuid.Nil {
		root := sec.SubjectTenantID
		tc.RootID = &root
	}
	if raw := c.Query("tenant_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			tc.RootID = &id
		}
	}
	if c.Query("mode") == string(types.TenantModeRootOnly) {
		tc.Mode = types.TenantModeRootOnly
	}
	return tc
}

func (a *DocumentAPI) listDocuments(c *gin.Context) {
	sec := SecurityContextFrom(c)

	sc, err := a.enforcer.ResolveScope(c.Request.Context(), sec, DocumentType, enforce.AccessRequest{
		Action:             "list",
		TenantContext:      tenantContextFrom(c, sec),
		RequireConstraints: true,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}

	docs, err := a.docs.List(c.Request.Context(), sc)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (a *DocumentAPI) getDocument(c *gin.Context) {
	sec := SecurityContextFrom(c)
	id, ok := a.pathID(c)
	if !ok {
		return
	}

	sc, err := a.enforcer.ResolveScope(c.Request.Context(), sec, DocumentType, enforce.AccessRequest{
		Action:             "get",
		ResourceID:         &id,
		TenantContext:      tenantContextFrom(c, sec),
		RequireConstraints: true,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}

	doc, err := a.docs.Get(c.Request.Context(), id, sc)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type createDocumentRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body"`
}

func (a *DocumentAPI) createDocument(c *gin.Context) {
	sec := SecurityContextFrom(c)

	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id must be a UUID"})
		return
	}

	doc := &store.Document{
		ID:        uuid.New(),
		TenantID:  tenantID,
		OwnerID:   sec.SubjectID,
		Title:     req.Title,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	proposed := map[string]any{
		scope.PropertyOwnerTenantID: doc.TenantID.String(),
		scope.PropertyResourceID:    doc.ID.String(),
		scope.PropertyOwnerID:       doc.OwnerID.String(),
	}
	if err := a.guard.AuthorizeCreate(c.Request.Context(), sec, proposed, tenantContextFrom(c, sec)); err != nil {
		a.writeError(c, err)
		return
	}

	if err := a.docs.Insert(c.Request.Context(), doc); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

type updateDocumentRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

func (a *DocumentAPI) updateDocument(c *gin.Context) {
	sec := SecurityContextFrom(c)
	id, ok := a.pathID(c)
	if !ok {
		return
	}

	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	set := map[string]any{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Body != nil {
		set["body"] = *req.Body
	}
	if len(set) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	sc, err := a.guard.PrepareUpdate(c.Request.Context(), sec, id, tenantContextFrom(c, sec))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if err := a.docs.Update(c.Request.Context(), id, sc, set); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (a *DocumentAPI) deleteDocument(c *gin.Context) {
	sec := SecurityContextFrom(c)
	id, ok := a.pathID(c)
	if !ok {
		return
	}

	sc, err := a.guard.PrepareDelete(c.Request.Context(), sec, id, tenantContextFrom(c, sec))
	if err != nil {
		a.writeError(c, err)
		return
	}

	if err := a.docs.Delete(c.Request.Context(), id, sc); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (a *DocumentAPI) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps enforcement outcomes to responses. Everything collapses to
// forbidden or not-found; internal failures get a bare 500. No branch ever
// explains why.
func (a *DocumentAPI) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, enforce.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, enforce.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		a.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
