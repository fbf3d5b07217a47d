package controller

import (
	"context"
	"sync"
	"time"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
)

// mockGenerator は GenerateStyled の呼び出しを記録し、release が閉じられるまで待つのだ。
type mockGenerator struct {
	mu       sync.Mutex
	requests []domain.GenerationRequest
	release  chan struct{}
	generate func(req domain.GenerationRequest) (*domain.ImageResponse, error)
}

func (m *mockGenerator) GenerateStyled(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.release != nil {
		<-m.release
	}
	if m.generate != nil {
		return m.generate(req)
	}
	return &domain.ImageResponse{Data: []byte("X"), MimeType: "image/png"}, nil
}

func (m *mockGenerator) calls() []domain.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GenerationRequest(nil), m.requests...)
}

type mockObserver struct {
	mu       sync.Mutex
	started  int
	outcomes []string
	selected []domain.Slot
}

func (m *mockObserver) GenerationStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockObserver) GenerationFinished(outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockObserver) ImageSelected(slot domain.Slot, source domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = append(m.selected, slot)
}

func subjectImage(previewID string) domain.SelectedImage {
	return domain.SelectedImage{
		Slot:      domain.SlotSubject,
		Filename:  "cat.png",
		MimeType:  "image/png",
		Data:      []byte("subject-bytes"),
		PreviewID: previewID,
		Source:    domain.SourcePicker,
	}
}

func styleImage(previewID string) domain.SelectedImage {
	return domain.SelectedImage{
		Slot:      domain.SlotStyle,
		Filename:  "starry-night.jpg",
		MimeType:  "image/jpeg",
		Data:      []byte("style-bytes"),
		PreviewID: previewID,
		Source:    domain.SourceDrop,
	}
}
