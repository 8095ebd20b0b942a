package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidparse/internal/media"
)

// envelope is the response body of every API route.
type envelope struct {
	RetCode int         `json:"retcode"`
	RetDesc string      `json:"retdesc"`
	Data    interface{} `json:"data"`
	Succ    bool        `json:"succ"`
}

func respondOK(c *gin.Context, desc string, data interface{}) {
	c.JSON(http.StatusOK, envelope{RetCode: http.StatusOK, RetDesc: desc, Data: data, Succ: true})
}

func respondError(c *gin.Context, status int, desc string) {
	c.JSON(status, envelope{RetCode: status, RetDesc: desc, Succ: false})
}

// statusFor maps an error kind to the HTTP status clients see. Expected
// failures are 4xx; anything else is a 500 with the generic message.
func statusFor(err error) (int, string) {
	switch media.KindOf(err) {
	case media.KindNoURLFound, media.KindUnsupportedPlatform, media.KindInvalidInput:
		return http.StatusBadRequest, media.MessageOf(err)
	case media.KindExtractionFailed:
		return http.StatusNotFound, media.MessageOf(err)
	default:
		return http.StatusInternalServerError, media.GenericMessage
	}
}
