package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vidparse/internal/service"
)

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "vidparse",
		"routes":  []string{"POST /api/parse", "POST /api/download", "GET /health"},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UnixMilli(),
	})
}

type parseRequest struct {
	Text string `json:"text"`
}

func (s *Server) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数错误")
		return
	}

	result, err := s.svc.Parse(c.Request.Context(), req.Text, clientID(c))
	if err != nil {
		status, desc := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("parse failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
		}
		respondError(c, status, desc)
		return
	}
	respondOK(c, "成功", result)
}

func (s *Server) download(c *gin.Context) {
	var req service.MaterializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数错误")
		return
	}
	req.Client = clientID(c)

	result, err := s.svc.Materialize(c.Request.Context(), req)
	if err != nil {
		status, desc := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("download failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
		}
		respondError(c, status, desc)
		return
	}

	desc := "成功"
	if result.Fallback {
		desc = result.Message
	}
	respondOK(c, desc, result)
}
