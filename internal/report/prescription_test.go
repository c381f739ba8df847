package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/repository"
)

func TestPrescriptionIsPDF(t *testing.T) {
	analysis := &repository.Analysis{
		RequestID:    "req-1",
		Source:       repository.SourceImage,
		FileName:     "scan.png",
		Label:        inference.LabelBenign,
		Confidence:   0.98,
		ModelVersion: inference.StubModelVersion,
		CreatedAt:    time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
	}
	user := &repository.User{DisplayName: "Zoë Demo"}

	data, err := Prescription(analysis, user)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, bytes.Contains(data, []byte("%%EOF")))
}

func TestPrescriptionRequiresInput(t *testing.T) {
	_, err := Prescription(nil, &repository.User{})
	assert.Error(t, err)
}

func TestRecommendationFallsBackToInconclusive(t *testing.T) {
	assert.Equal(t, recommendations[inference.LabelInconclusive], recommendation("Normal"))
	assert.Equal(t, recommendations[inference.LabelMalignant], recommendation(inference.LabelMalignant))
}
