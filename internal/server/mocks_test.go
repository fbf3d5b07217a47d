package server

import (
	"context"
	"sync"
	"time"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

type mockGenerator struct {
	mu       sync.Mutex
	release  chan struct{}
	requests []domain.GenerationRequest
	generate func(req domain.GenerationRequest) (*domain.ImageResponse, error)
}

func (m *mockGenerator) GenerateStyled(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	release := m.release
	m.mu.Unlock()
	if release != nil {
		<-release
	}
	if m.generate != nil {
		return m.generate(req)
	}
	return &domain.ImageResponse{Data: []byte("generated-png"), MimeType: "image/png"}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type uploadRecord struct {
	slot     domain.Slot
	decision imgutil.Decision
}

type mockRecorder struct {
	mu       sync.Mutex
	uploads  []uploadRecord
	requests []string
}

func (m *mockRecorder) RecordUpload(slot domain.Slot, d imgutil.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, uploadRecord{slot: slot, decision: d})
}

func (m *mockRecorder) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, method+" "+route)
}

func (m *mockRecorder) lastUpload() (uploadRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.uploads) == 0 {
		return uploadRecord{}, false
	}
	return m.uploads[len(m.uploads)-1], true
}

func (m *mockRecorder) routes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}
