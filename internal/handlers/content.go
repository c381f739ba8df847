package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) symptoms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symptoms": h.content.Symptoms,
		"footer":   h.content.Footer,
	})
}

func (h *handler) hospitals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"map":             h.content.Map,
		"medical_centers": h.content.MedicalCenters,
	})
}

func (h *handler) greeting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.content.Greeting})
}

func (h *handler) voice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.content.VoiceActivation})
}
