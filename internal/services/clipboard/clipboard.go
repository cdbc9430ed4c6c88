// Package clipboard places rendered bundle text on the system clipboard.
package clipboard

import (
	"github.com/atotto/clipboard"
)

// Copier abstracts the system clipboard so commands can be tested without one.
type Copier interface {
	Copy(text string) error
}

// Service copies text to the host clipboard.
type Service struct{}

// NewService returns a clipboard service backed by the host clipboard.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard, replacing its current contents.
func (service *Service) Copy(text string) error {
	return clipboard.WriteAll(text)
}

var _ Copier = (*Service)(nil)
