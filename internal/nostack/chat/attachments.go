package chat

import (
	"fmt"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/attach"
)

// Attachments holds the images queued for the next user message.
type Attachments struct {
	maxSize int
	images  []string
}

// NewAttachments returns an empty queue. Images larger than maxSize
// pixels on either side are scaled down when added.
func NewAttachments(maxSize int) *Attachments {
	return &Attachments{maxSize: maxSize}
}

// Add loads an image file and queues it. It returns a short description
// of the queued image.
func (a *Attachments) Add(path string) (string, error) {
	url, err := attach.LoadFile(path, a.maxSize)
	if err != nil {
		return "", err
	}
	a.images = append(a.images, url)
	return attach.Describe(url), nil
}

// AddDataURL queues an image that is already a data URL.
func (a *Attachments) AddDataURL(url string) error {
	if _, _, ok := nostack.ParseDataURL(url); !ok {
		return fmt.Errorf("not an image data URL")
	}
	a.images = append(a.images, url)
	return nil
}

// Remove drops the image at index i.
func (a *Attachments) Remove(i int) error {
	if i < 0 || i >= len(a.images) {
		return fmt.Errorf("no image at index %d", i)
	}
	a.images = append(a.images[:i], a.images[i+1:]...)
	return nil
}

// Clear drops every queued image.
func (a *Attachments) Clear() {
	a.images = nil
}

// Len returns the number of queued images.
func (a *Attachments) Len() int {
	return len(a.images)
}

// List returns the queued images.
func (a *Attachments) List() []string {
	return append([]string(nil), a.images...)
}

// Apply returns the queued images and empties the queue.
func (a *Attachments) Apply() []string {
	images := a.images
	a.images = nil
	return images
}
