package loaders

import (
	"github.com/Takedaxz/insurance-rag-chatbot/internal/loaders/excel"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/loaders/pdf"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/loaders/plaintext"
)

// RegisterDefaults registers all built-in loaders with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(pdf.New())
	r.Register(excel.New())
	r.Register(plaintext.New())
}
