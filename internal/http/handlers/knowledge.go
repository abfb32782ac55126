package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/http/response"
	"github.com/yungbote/bloomie-backend/internal/services"
)

type KnowledgeHandler struct {
	knowledge services.KnowledgeRetriever
}

func NewKnowledgeHandler(knowledge services.KnowledgeRetriever) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge}
}

type knowledgeSearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	K        int    `json:"k"`
}

type knowledgeLoadRequest struct {
	ForceReload bool `json:"force_reload"`
}

// GET /api/knowledge/status
func (h *KnowledgeHandler) Status(c *gin.Context) {
	st, err := h.knowledge.Status(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/knowledge/search?q=&category=&k=
func (h *KnowledgeHandler) SearchQuery(c *gin.Context) {
	k, ok := queryInt(c, "k", 0)
	if !ok {
		return
	}
	h.search(c, knowledgeSearchRequest{Query: c.Query("q"), Category: c.Query("category"), K: k})
}

// POST /api/knowledge/search
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var req knowledgeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}
	if req.K < 0 {
		badRequest(c, "invalid_k", errors.New("k must be a non-negative integer"))
		return
	}
	h.search(c, req)
}

func (h *KnowledgeHandler) search(c *gin.Context, req knowledgeSearchRequest) {
	hits, err := h.knowledge.Search(c.Request.Context(), req.Query, req.Category, req.K)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"query": req.Query, "results": hits, "total": len(hits)})
}

// POST /api/knowledge/load
func (h *KnowledgeHandler) Load(c *gin.Context) {
	var req knowledgeLoadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid_request", err)
		return
	}
	res, err := h.knowledge.Load(c.Request.Context(), req.ForceReload)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
